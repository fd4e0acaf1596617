package rendering_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"podscribe/internal/rendering"
	"podscribe/internal/store"
	"podscribe/internal/testsupport"
)

type recordingNotifier struct {
	reviewReady []string
}

func (n *recordingNotifier) NotifyStageCompleted(ctx context.Context, title, stage string) error {
	return nil
}

func (n *recordingNotifier) NotifyReviewReady(ctx context.Context, title, documentPath string) error {
	n.reviewReady = append(n.reviewReady, documentPath)
	return nil
}

func (n *recordingNotifier) NotifyPublished(ctx context.Context, title string, targets []string) error {
	return nil
}

func (n *recordingNotifier) NotifyError(ctx context.Context, err error, contextLabel string) error {
	return nil
}

func (n *recordingNotifier) TestNotification(ctx context.Context) error {
	return nil
}

func seedReviewableEpisode(t *testing.T, st *store.Store) *store.Episode {
	t.Helper()
	ctx := context.Background()
	episode := testsupport.NewEpisode(t, st, "https://example.com/ep", "Mountains of Data")
	for i, segment := range testsupport.SeedSegments(t, st, episode.ID, 2, 600) {
		testsupport.CompleteSegmentWithCue(t, st, segment, fmt.Sprintf("spoken line %d", i))
	}
	if _, err := st.ReplaceChapters(ctx, episode.ID, []store.ChapterDraft{
		{Title: "Opening", Summary: "How it starts", StartTime: 0, EndTime: 600},
		{Title: "The middle", StartTime: 600, EndTime: 1201},
	}); err != nil {
		t.Fatalf("replace chapters: %v", err)
	}
	if _, err := st.EnsureTranslations(ctx, episode.ID, "zh"); err != nil {
		t.Fatalf("ensure translations: %v", err)
	}
	units, err := st.TranslationsForEpisode(ctx, episode.ID, "zh")
	if err != nil {
		t.Fatalf("translations: %v", err)
	}
	for i, unit := range units {
		if err := st.CompleteTranslation(ctx, unit.Translation.ID, fmt.Sprintf("译文 %d", i)); err != nil {
			t.Fatalf("complete translation: %v", err)
		}
	}
	return episode
}

func TestExecuteWritesReviewDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedReviewableEpisode(t, st)

	notifier := &recordingNotifier{}
	handler := rendering.NewHandler(cfg, st, nil, notifier).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })

	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("execute: %v", err)
	}

	path := rendering.DocumentPath(cfg.Paths.ReviewDir, episode.ID)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	content := string(raw)

	for _, want := range []string{
		fmt.Sprintf("episode_id: %d", episode.ID),
		"approved: false",
		"languages: [zh]",
		"generated_at: 2026-03-01T12:00:00Z",
		"# Mountains of Data",
		"## Opening",
		"_How it starts_",
		"## The middle",
		"spoken line 0",
		"> zh: 译文 0",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("document missing %q:\n%s", want, content)
		}
	}

	cues, _ := st.CuesForEpisode(context.Background(), episode.ID)
	anchor := fmt.Sprintf("[00:00](cue://%d)", cues[0].ID)
	if !strings.Contains(content, anchor) {
		t.Fatalf("document missing cue anchor %q", anchor)
	}
	secondAnchor := fmt.Sprintf("[10:00](cue://%d)", cues[1].ID)
	if !strings.Contains(content, secondAnchor) {
		t.Fatalf("document missing cue anchor %q", secondAnchor)
	}

	if len(notifier.reviewReady) != 1 || notifier.reviewReady[0] != path {
		t.Fatalf("review notification = %v", notifier.reviewReady)
	}
}

func TestExecuteIsRepeatable(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedReviewableEpisode(t, st)

	handler := rendering.NewHandler(cfg, st, nil, nil).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("first execute: %v", err)
	}
	first, _ := os.ReadFile(rendering.DocumentPath(cfg.Paths.ReviewDir, episode.ID))

	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("second execute: %v", err)
	}
	second, _ := os.ReadFile(rendering.DocumentPath(cfg.Paths.ReviewDir, episode.ID))

	if string(first) != string(second) {
		t.Fatal("re-rendering the same state produced a different document")
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		seconds float64
		want    string
	}{
		{0, "00:00"},
		{61.4, "01:01"},
		{600, "10:00"},
		{3661, "1:01:01"},
	}
	for _, test := range tests {
		if got := rendering.FormatTimestamp(test.seconds); got != test.want {
			t.Errorf("FormatTimestamp(%v) = %q, want %q", test.seconds, got, test.want)
		}
	}
}

func TestRenderEscapesMarkdownInText(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := rendering.Document{
		Episode: &store.Episode{ID: 7, Title: "Escapes"},
		Cues: []*store.Cue{
			{ID: 41, StartTime: 0, Speaker: "SPEAKER_00", Text: "- a *list* of [links](x)"},
			{ID: 42, StartTime: 30, Text: "1. ordered `code`"},
		},
		Translations: map[string]map[int64]*store.Translation{
			"zh": {41: {CueID: 41, CurrentText: "I *really* mean `it`"}},
		},
		Languages:   []string{"zh"},
		GeneratedAt: now,
	}
	content := rendering.Render(doc)

	for _, want := range []string{
		`\- a \*list\* of \[links\](x)`,
		"1\\. ordered \\`code\\`",
		"> zh: I \\*really\\* mean \\`it\\`",
	} {
		if !strings.Contains(content, want) {
			t.Fatalf("rendered document missing %q:\n%s", want, content)
		}
	}
}
