package workflow_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"podscribe/internal/stage"
	"podscribe/internal/store"
	"podscribe/internal/testsupport"
	"podscribe/internal/workflow"
)

type fakeHandler struct {
	name       string
	prepareErr error
	executeErr error
	executed   int
	block      chan struct{}
	started    chan struct{}
}

func (h *fakeHandler) Prepare(ctx context.Context, episode *store.Episode) error {
	return h.prepareErr
}

func (h *fakeHandler) Execute(ctx context.Context, episode *store.Episode) error {
	h.executed++
	if h.started != nil {
		close(h.started)
	}
	if h.block != nil {
		<-h.block
	}
	return h.executeErr
}

func (h *fakeHandler) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy(h.name)
}

func newTestManager(t *testing.T) (*workflow.Manager, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	return workflow.NewManager(cfg, st, nil, nil), st
}

func advanceTo(t *testing.T, st *store.Store, episodeID int64, target store.WorkflowStatus) {
	t.Helper()
	ctx := context.Background()
	for status := store.StatusInit; status < target; status++ {
		next, ok := status.Next()
		if !ok {
			t.Fatalf("no successor for %s", status)
		}
		moved, err := st.TransitionStatus(ctx, episodeID, status, next)
		if err != nil || !moved {
			t.Fatalf("transition %s -> %s: moved=%v err=%v", status, next, moved, err)
		}
	}
}

func TestResumeAdvancesSingleStep(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")

	download := &fakeHandler{name: "download"}
	transcribe := &fakeHandler{name: "transcribe"}
	manager.Register(store.StatusInit, "download", download)
	manager.Register(store.StatusDownloaded, "transcribe", transcribe)

	updated, err := manager.Resume(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if updated.WorkflowStatus != store.StatusDownloaded {
		t.Fatalf("status = %s, want %s", updated.WorkflowStatus, store.StatusDownloaded)
	}
	if download.executed != 1 {
		t.Fatalf("download executed %d times, want 1", download.executed)
	}
	if transcribe.executed != 0 {
		t.Fatalf("transcribe ran before its status was reached")
	}
}

func TestResumeFailureLeavesStatusUntouched(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")

	handler := &fakeHandler{name: "download", executeErr: errors.New("network down")}
	manager.Register(store.StatusInit, "download", handler)

	if _, err := manager.Resume(context.Background(), episode.ID); err == nil {
		t.Fatal("expected resume to fail")
	}

	reloaded, err := st.GetEpisode(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("get episode: %v", err)
	}
	if reloaded.WorkflowStatus != store.StatusInit {
		t.Fatalf("status = %s, want %s after failure", reloaded.WorkflowStatus, store.StatusInit)
	}
	if reloaded.ErrorMessage == "" {
		t.Fatal("expected failure message on episode")
	}

	// The stage is retried in place once the fault clears.
	handler.executeErr = nil
	updated, err := manager.Resume(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("retry resume: %v", err)
	}
	if updated.WorkflowStatus != store.StatusDownloaded {
		t.Fatalf("status = %s after retry, want %s", updated.WorkflowStatus, store.StatusDownloaded)
	}
	if updated.ErrorMessage != "" {
		t.Fatalf("error message not cleared on success: %q", updated.ErrorMessage)
	}
}

func TestResumeStopsAtReviewBarrier(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")
	advanceTo(t, st, episode.ID, store.StatusReadyForReview)

	_, err := manager.Resume(context.Background(), episode.ID)
	if !errors.Is(err, workflow.ErrAwaitingReview) {
		t.Fatalf("err = %v, want ErrAwaitingReview", err)
	}
}

func TestResumeRejectsPublishedEpisode(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")
	advanceTo(t, st, episode.ID, store.StatusPublished)

	_, err := manager.Resume(context.Background(), episode.ID)
	if !errors.Is(err, workflow.ErrAlreadyPublished) {
		t.Fatalf("err = %v, want ErrAlreadyPublished", err)
	}
}

func TestResumeRejectsConcurrentInvocation(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")

	handler := &fakeHandler{
		name:    "download",
		block:   make(chan struct{}),
		started: make(chan struct{}),
	}
	manager.Register(store.StatusInit, "download", handler)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = manager.Resume(context.Background(), episode.ID)
	}()
	<-handler.started

	if _, err := manager.Resume(context.Background(), episode.ID); err == nil {
		t.Fatal("expected second resume to be rejected while first holds the lock")
	}

	close(handler.block)
	wg.Wait()
}

func TestRunStopsAtReviewBarrier(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")

	names := []string{"download", "transcribe", "proofread", "segment", "translate", "render"}
	handlers := make([]*fakeHandler, 0, len(names))
	for i, name := range names {
		handler := &fakeHandler{name: name}
		handlers = append(handlers, handler)
		manager.Register(store.StatusInit+store.WorkflowStatus(i), name, handler)
	}

	updated, err := manager.Run(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if updated.WorkflowStatus != store.StatusReadyForReview {
		t.Fatalf("status = %s, want %s", updated.WorkflowStatus, store.StatusReadyForReview)
	}
	for _, handler := range handlers {
		if handler.executed != 1 {
			t.Fatalf("stage %s executed %d times, want 1", handler.name, handler.executed)
		}
	}
}

func TestForceRestartResetsEpisode(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")
	advanceTo(t, st, episode.ID, store.StatusTranslated)
	testsupport.SeedSegments(t, st, episode.ID, 2, 600)

	updated, err := manager.ForceRestart(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("force restart: %v", err)
	}
	if updated.WorkflowStatus != store.StatusInit {
		t.Fatalf("status = %s, want %s", updated.WorkflowStatus, store.StatusInit)
	}
	segments, err := st.ListSegments(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("list segments: %v", err)
	}
	if len(segments) != 0 {
		t.Fatalf("restart left %d segments behind", len(segments))
	}
}

func TestForceResegmentRequiresChapters(t *testing.T) {
	manager, st := newTestManager(t)
	episode := testsupport.NewEpisode(t, st, "https://example.com/a", "Episode A")
	advanceTo(t, st, episode.ID, store.StatusProofread)

	if _, err := manager.ForceResegment(context.Background(), episode.ID); err == nil {
		t.Fatal("expected resegment to be rejected before the chaptering stage ran")
	}

	moved, err := st.TransitionStatus(context.Background(), episode.ID, store.StatusProofread, store.StatusSegmented)
	if err != nil || !moved {
		t.Fatalf("advance to segmented: moved=%v err=%v", moved, err)
	}

	updated, err := manager.ForceResegment(context.Background(), episode.ID)
	if err != nil {
		t.Fatalf("force resegment: %v", err)
	}
	if updated.WorkflowStatus != store.StatusProofread {
		t.Fatalf("status = %s, want %s", updated.WorkflowStatus, store.StatusProofread)
	}
}
