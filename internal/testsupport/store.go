package testsupport

import (
	"context"
	"testing"

	"podscribe/internal/config"
	"podscribe/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewEpisode creates an episode for tests using the provided store.
func NewEpisode(t testing.TB, st *store.Store, sourceURL, title string) *store.Episode {
	t.Helper()

	episode, _, err := st.NewEpisode(context.Background(), sourceURL, title, "Test Show")
	if err != nil {
		t.Fatalf("store.NewEpisode: %v", err)
	}
	return episode
}

// SeedSegments creates count contiguous segments of the given duration for an
// episode, starting at zero.
func SeedSegments(t testing.TB, st *store.Store, episodeID int64, count int, duration float64) []*store.Segment {
	t.Helper()

	specs := make([]store.SegmentSpec, count)
	for i := range specs {
		specs[i] = store.SegmentSpec{
			StartTime: float64(i) * duration,
			EndTime:   float64(i+1) * duration,
		}
	}
	if _, err := st.CreateSegments(context.Background(), episodeID, specs); err != nil {
		t.Fatalf("store.CreateSegments: %v", err)
	}
	segments, err := st.ListSegments(context.Background(), episodeID)
	if err != nil {
		t.Fatalf("store.ListSegments: %v", err)
	}
	return segments
}

// CompleteSegmentWithCue completes one segment with a single cue covering the
// segment's span.
func CompleteSegmentWithCue(t testing.TB, st *store.Store, segment *store.Segment, text string) {
	t.Helper()

	draft := store.CueDraft{
		StartTime: segment.StartTime,
		EndTime:   segment.EndTime,
		Speaker:   "SPEAKER_00",
		Text:      text,
	}
	if err := st.CompleteSegment(context.Background(), segment.ID, []store.CueDraft{draft}); err != nil {
		t.Fatalf("store.CompleteSegment: %v", err)
	}
}
