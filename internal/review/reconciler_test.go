package review_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/rendering"
	"podscribe/internal/review"
	"podscribe/internal/store"
	"podscribe/internal/testsupport"
)

func seedReviewedEpisode(t *testing.T, st *store.Store, cfg *config.Config) (*store.Episode, string) {
	t.Helper()
	ctx := context.Background()

	episode := testsupport.NewEpisode(t, st, "https://example.com/ep", "Episode Under Review")
	for i, segment := range testsupport.SeedSegments(t, st, episode.ID, 2, 600) {
		testsupport.CompleteSegmentWithCue(t, st, segment, fmt.Sprintf("original line %d", i))
	}
	if _, err := st.EnsureTranslations(ctx, episode.ID, "zh"); err != nil {
		t.Fatalf("ensure translations: %v", err)
	}
	units, err := st.TranslationsForEpisode(ctx, episode.ID, "zh")
	if err != nil {
		t.Fatalf("translations: %v", err)
	}
	for i, unit := range units {
		if err := st.CompleteTranslation(ctx, unit.Translation.ID, fmt.Sprintf("machine translation %d", i)); err != nil {
			t.Fatalf("complete translation: %v", err)
		}
	}
	for status := store.StatusInit; status < store.StatusReadyForReview; status++ {
		next, _ := status.Next()
		if moved, err := st.TransitionStatus(ctx, episode.ID, status, next); err != nil || !moved {
			t.Fatalf("advance %s: moved=%v err=%v", status, moved, err)
		}
	}

	handler := rendering.NewHandler(cfg, st, nil, nil).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	reloaded, _ := st.GetEpisode(ctx, episode.ID)
	if err := handler.Prepare(ctx, reloaded); err != nil {
		t.Fatalf("render prepare: %v", err)
	}
	if err := handler.Execute(ctx, reloaded); err != nil {
		t.Fatalf("render execute: %v", err)
	}
	return reloaded, rendering.DocumentPath(cfg.Paths.ReviewDir, episode.ID)
}

func rewrite(t *testing.T, path, old, new string) {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	content := strings.Replace(string(raw), old, new, 1)
	if content == string(raw) {
		t.Fatalf("document does not contain %q", old)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestReconcileUnchangedDocumentIsANoOp(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	_, path := seedReviewedEpisode(t, st, cfg)

	reconciler := review.NewReconciler(cfg, st, nil)
	result, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Fatalf("unedited document produced %d changes: %+v", len(result.Changes), result.Changes)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unedited document produced warnings: %+v", result.Warnings)
	}
	if result.Advanced {
		t.Fatal("unapproved document advanced the episode")
	}
}

func TestReconcileAppliesTranslationEditOnce(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode, path := seedReviewedEpisode(t, st, cfg)

	rewrite(t, path, "> zh: machine translation 0", "> zh: a human rewrote this")

	reconciler := review.NewReconciler(cfg, st, nil)
	result, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Changes) != 1 {
		t.Fatalf("got %d changes, want 1: %+v", len(result.Changes), result.Changes)
	}
	change := result.Changes[0]
	if change.Language != "zh" || change.New != "a human rewrote this" {
		t.Fatalf("change = %+v", change)
	}

	edited, err := st.TranslationForCue(context.Background(), change.CueID, "zh")
	if err != nil {
		t.Fatalf("translation: %v", err)
	}
	if edited.CurrentText != "a human rewrote this" {
		t.Fatalf("current text = %q", edited.CurrentText)
	}
	if !edited.IsEdited {
		t.Fatal("is_edited not set")
	}
	if edited.OriginalText != "machine translation 0" {
		t.Fatalf("original text = %q, must stay untouched", edited.OriginalText)
	}

	// The untouched sibling keeps its machine translation and flag.
	cues, _ := st.CuesForEpisode(context.Background(), episode.ID)
	for _, cue := range cues {
		if cue.ID == change.CueID {
			continue
		}
		sibling, _ := st.TranslationForCue(context.Background(), cue.ID, "zh")
		if sibling.IsEdited {
			t.Fatal("untouched translation marked edited")
		}
	}

	// Reconciling the already-merged document changes nothing.
	again, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if len(again.Changes) != 0 {
		t.Fatalf("second reconcile produced %d changes", len(again.Changes))
	}
}

func TestReconcileAppliesTranscriptEdit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	_, path := seedReviewedEpisode(t, st, cfg)

	rewrite(t, path, "original line 1", "a sharper transcript line")

	reconciler := review.NewReconciler(cfg, st, nil)
	result, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Changes) != 1 || result.Changes[0].Language != "" {
		t.Fatalf("changes = %+v, want one transcript edit", result.Changes)
	}

	cue, err := st.GetCue(context.Background(), result.Changes[0].CueID)
	if err != nil {
		t.Fatalf("cue: %v", err)
	}
	if cue.EffectiveText() != "a sharper transcript line" {
		t.Fatalf("effective text = %q", cue.EffectiveText())
	}
	if cue.Text != "original line 1" {
		t.Fatalf("raw transcript text = %q, must stay untouched", cue.Text)
	}
}

func TestReconcileApprovalAdvancesEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode, path := seedReviewedEpisode(t, st, cfg)

	rewrite(t, path, "approved: false", "approved: true")

	reconciler := review.NewReconciler(cfg, st, nil)
	result, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if !result.Advanced {
		t.Fatal("approval marker did not advance the episode")
	}

	reloaded, _ := st.GetEpisode(context.Background(), episode.ID)
	if reloaded.WorkflowStatus != store.StatusApproved {
		t.Fatalf("status = %s, want %s", reloaded.WorkflowStatus, store.StatusApproved)
	}

	// A second sync of the same approved document is a no-op.
	again, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if again.Advanced {
		t.Fatal("approval advanced the episode twice")
	}
}

func TestReconcileIgnoresApprovalBeforeReviewBarrier(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode, path := seedReviewedEpisode(t, st, cfg)

	// Roll the episode back behind the barrier, then approve the stale doc.
	if moved, err := st.TransitionStatus(context.Background(), episode.ID,
		store.StatusReadyForReview, store.StatusTranslated); err != nil || !moved {
		t.Fatalf("roll back: moved=%v err=%v", moved, err)
	}
	rewrite(t, path, "approved: false", "approved: true")

	reconciler := review.NewReconciler(cfg, st, nil)
	result, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if result.Advanced {
		t.Fatal("approval applied outside READY_FOR_REVIEW")
	}
	reloaded, _ := st.GetEpisode(context.Background(), episode.ID)
	if reloaded.WorkflowStatus != store.StatusTranslated {
		t.Fatalf("status = %s, want unchanged", reloaded.WorkflowStatus)
	}
}

func TestReconcileWarnsOnUnresolvableAnchor(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	episode, path := seedReviewedEpisode(t, st, cfg)

	cues, _ := st.CuesForEpisode(context.Background(), episode.ID)
	rewrite(t, path, fmt.Sprintf("cue://%d", cues[0].ID), "cue://999999")
	rewrite(t, path, "> zh: machine translation 1", "> zh: still merges fine")

	reconciler := review.NewReconciler(cfg, st, nil)
	result, err := reconciler.Reconcile(context.Background(), path)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("unresolvable anchor produced no warning")
	}
	if len(result.Changes) != 1 {
		t.Fatalf("rest of document did not reconcile: %+v", result.Changes)
	}
}

func TestSyncReconcilesEveryDocument(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	_, path := seedReviewedEpisode(t, st, cfg)

	rewrite(t, path, "approved: false", "approved: true")
	// A broken document must not block the others.
	testsupport.WriteFile(t, rendering.DocumentPath(cfg.Paths.ReviewDir, 999),
		"---\ntitle: \"no episode id\"\n---\n\nnothing here\n")

	reconciler := review.NewReconciler(cfg, st, nil)
	results, err := reconciler.Sync(context.Background())
	if err != nil {
		t.Fatalf("sync: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want the one valid document", len(results))
	}
	if !results[0].Advanced {
		t.Fatal("sync did not apply the approval")
	}
}

func TestParseDocumentWarnsOnDuplicateAnchor(t *testing.T) {
	content := []byte(`---
episode_id: 7
approved: false
---

### [00:00](cue://12)

first occurrence

### [00:30](cue://12)

second occurrence
`)
	doc, err := review.ParseDocument(content)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(doc.Entries) != 1 {
		t.Fatalf("got %d entries, want the first occurrence only", len(doc.Entries))
	}
	if len(doc.Warnings) != 1 {
		t.Fatalf("warnings = %+v, want one duplicate warning", doc.Warnings)
	}
}

func TestReconcileRoundTripsMarkdownCharacters(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	transcript := "- a *list* of [links](x) and `code` #1"
	translated := "I *really* mean `it`"

	episode := testsupport.NewEpisode(t, st, "https://example.com/md", "Markdown Heavy")
	segments := testsupport.SeedSegments(t, st, episode.ID, 1, 600)
	testsupport.CompleteSegmentWithCue(t, st, segments[0], transcript)
	if _, err := st.EnsureTranslations(ctx, episode.ID, "zh"); err != nil {
		t.Fatalf("ensure translations: %v", err)
	}
	units, err := st.TranslationsForEpisode(ctx, episode.ID, "zh")
	if err != nil || len(units) != 1 {
		t.Fatalf("translations: %v (%d units)", err, len(units))
	}
	if err := st.CompleteTranslation(ctx, units[0].Translation.ID, translated); err != nil {
		t.Fatalf("complete translation: %v", err)
	}
	for status := store.StatusInit; status < store.StatusReadyForReview; status++ {
		next, _ := status.Next()
		if moved, err := st.TransitionStatus(ctx, episode.ID, status, next); err != nil || !moved {
			t.Fatalf("advance %s: moved=%v err=%v", status, moved, err)
		}
	}
	handler := rendering.NewHandler(cfg, st, nil, nil).
		WithClock(func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) })
	reloaded, _ := st.GetEpisode(ctx, episode.ID)
	if err := handler.Prepare(ctx, reloaded); err != nil {
		t.Fatalf("render prepare: %v", err)
	}
	if err := handler.Execute(ctx, reloaded); err != nil {
		t.Fatalf("render execute: %v", err)
	}
	path := rendering.DocumentPath(cfg.Paths.ReviewDir, episode.ID)

	reconciler := review.NewReconciler(cfg, st, nil)
	result, err := reconciler.Reconcile(ctx, path)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(result.Changes) != 0 {
		t.Fatalf("unedited document produced %d changes: %+v", len(result.Changes), result.Changes)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unedited document produced warnings: %+v", result.Warnings)
	}

	cues, err := st.CuesForEpisode(ctx, episode.ID)
	if err != nil || len(cues) != 1 {
		t.Fatalf("cues: %v (%d)", err, len(cues))
	}
	if cues[0].EffectiveText() != transcript {
		t.Fatalf("transcript = %q, want %q", cues[0].EffectiveText(), transcript)
	}
	unit, err := st.TranslationForCue(ctx, cues[0].ID, "zh")
	if err != nil {
		t.Fatalf("translation for cue: %v", err)
	}
	if unit.CurrentText != translated {
		t.Fatalf("current = %q, want %q", unit.CurrentText, translated)
	}
	if unit.IsEdited {
		t.Fatal("round trip flagged a human edit")
	}
}
