package translation_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"podscribe/internal/config"
	"podscribe/internal/services"
	"podscribe/internal/store"
	"podscribe/internal/testsupport"
	"podscribe/internal/translation"
)

type echoTranslator struct {
	calls    int
	failures int
	dropOne  bool
}

func (c *echoTranslator) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	if c.failures > 0 {
		c.failures--
		return "", errors.New("upstream 503")
	}

	var request []struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(userPrompt), &request); err != nil {
		return "", err
	}
	lang := "unknown"
	if strings.Contains(systemPrompt, "German") {
		lang = "de"
	} else if strings.Contains(systemPrompt, "Spanish") {
		lang = "es"
	}

	type item struct {
		ID   int64  `json:"id"`
		Text string `json:"text"`
	}
	response := struct {
		Translations []item `json:"translations"`
	}{}
	for i, unit := range request {
		if c.dropOne && i == 0 {
			continue
		}
		response.Translations = append(response.Translations, item{
			ID:   unit.ID,
			Text: fmt.Sprintf("[%s] %s", lang, unit.Text),
		})
	}
	payload, err := json.Marshal(response)
	return string(payload), err
}

func (c *echoTranslator) HealthCheck(ctx context.Context) error {
	return nil
}

func seedTranscript(t *testing.T, st *store.Store, segments int) *store.Episode {
	t.Helper()
	episode := testsupport.NewEpisode(t, st, "https://example.com/ep", "Episode")
	for i, segment := range testsupport.SeedSegments(t, st, episode.ID, segments, 600) {
		testsupport.CompleteSegmentWithCue(t, st, segment, fmt.Sprintf("line %d", i))
	}
	return episode
}

func newTranslateConfig(t *testing.T, batchSize int, languages ...string) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithLanguages(languages...))
	cfg.Workflow.TranslationBatchSize = batchSize
	return cfg
}

func TestPrepareSeedsUnitsPerLanguage(t *testing.T) {
	cfg := newTranslateConfig(t, 10, "de", "es")
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 3)

	handler := translation.NewHandler(cfg, st, nil).WithCompleter(&echoTranslator{})
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	counts, err := st.TranslationCounts(context.Background(), episode.ID, "")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Total() != 6 {
		t.Fatalf("seeded %d units for 3 cues x 2 languages, want 6", counts.Total())
	}

	// Seeding again is a no-op.
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("re-prepare: %v", err)
	}
	counts, _ = st.TranslationCounts(context.Background(), episode.ID, "")
	if counts.Total() != 6 {
		t.Fatalf("re-prepare grew the unit set to %d", counts.Total())
	}
}

func TestExecuteTranslatesAllLanguages(t *testing.T) {
	cfg := newTranslateConfig(t, 10, "de", "es")
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 2)

	handler := translation.NewHandler(cfg, st, nil).WithCompleter(&echoTranslator{})
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("execute: %v", err)
	}

	units, err := st.TranslationsForEpisode(context.Background(), episode.ID, "de")
	if err != nil {
		t.Fatalf("translations: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("got %d German translations, want 2", len(units))
	}
	for _, unit := range units {
		if unit.Translation.Status != store.UnitCompleted {
			t.Fatalf("translation %d in status %s", unit.Translation.ID, unit.Translation.Status)
		}
		if !strings.HasPrefix(unit.Translation.CurrentText, "[de] ") {
			t.Fatalf("current text = %q", unit.Translation.CurrentText)
		}
		if unit.Translation.OriginalText != unit.Translation.CurrentText {
			t.Fatal("first generation must record original and current identically")
		}
	}
}

func TestExecuteSkipsCompletedUnitsAndKeepsEdits(t *testing.T) {
	cfg := newTranslateConfig(t, 10, "de")
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 2)

	completer := &echoTranslator{}
	handler := translation.NewHandler(cfg, st, nil).WithCompleter(completer)
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("execute: %v", err)
	}

	units, _ := st.TranslationsForEpisode(context.Background(), episode.ID, "de")
	edited := units[0].Translation
	if err := st.ApplyEdit(context.Background(), edited.ID, "A human fixed this."); err != nil {
		t.Fatalf("apply edit: %v", err)
	}

	callsBefore := completer.calls
	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("re-execute: %v", err)
	}
	if completer.calls != callsBefore {
		t.Fatalf("re-execute made %d LLM calls over completed units", completer.calls-callsBefore)
	}

	reloaded, _ := st.TranslationForCue(context.Background(), edited.CueID, "de")
	if reloaded.CurrentText != "A human fixed this." {
		t.Fatalf("current text = %q, human edit lost", reloaded.CurrentText)
	}
	if !reloaded.IsEdited {
		t.Fatal("is_edited flag lost")
	}
	if reloaded.OriginalText == reloaded.CurrentText {
		t.Fatal("original text must keep the machine translation")
	}
}

func TestExecuteRetriesFailedBatches(t *testing.T) {
	cfg := newTranslateConfig(t, 1, "de")
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 2)

	completer := &echoTranslator{failures: 1}
	handler := translation.NewHandler(cfg, st, nil).WithCompleter(completer)
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	err := handler.Execute(context.Background(), episode)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want the partial run reported as retryable", err)
	}

	counts, _ := st.TranslationCounts(context.Background(), episode.ID, "de")
	if counts.Completed != 1 || counts.Failed != 1 {
		t.Fatalf("counts = %+v, want one completed and one failed", counts)
	}

	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("retry execute: %v", err)
	}
	counts, _ = st.TranslationCounts(context.Background(), episode.ID, "de")
	if counts.Completed != 2 {
		t.Fatalf("counts = %+v after retry, want all completed", counts)
	}
}

func TestExecuteRejectsIncompleteResponse(t *testing.T) {
	cfg := newTranslateConfig(t, 2, "de")
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 2)

	completer := &echoTranslator{dropOne: true}
	handler := translation.NewHandler(cfg, st, nil).WithCompleter(completer)
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	err := handler.Execute(context.Background(), episode)
	if err == nil {
		t.Fatal("expected the incomplete response to fail the batch")
	}

	// Nothing from the rejected batch was committed.
	counts, _ := st.TranslationCounts(context.Background(), episode.ID, "de")
	if counts.Completed != 0 || counts.Failed != 2 {
		t.Fatalf("counts = %+v, want the whole batch failed", counts)
	}
}

func TestPrepareRequiresLanguages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithLanguages())
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 1)

	handler := translation.NewHandler(cfg, st, nil).WithCompleter(&echoTranslator{})
	err := handler.Prepare(context.Background(), episode)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("err = %v, want ErrConfiguration", err)
	}
}

type revokedKeyTranslator struct {
	calls int
}

func (c *revokedKeyTranslator) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	c.calls++
	return "", fmt.Errorf("llm request: http 401: Invalid API key: %w", services.ErrConfiguration)
}

func (c *revokedKeyTranslator) HealthCheck(ctx context.Context) error {
	return nil
}

func TestExecuteHaltsOnRevokedCredentials(t *testing.T) {
	cfg := newTranslateConfig(t, 1, "zh")
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 5)

	completer := &revokedKeyTranslator{}
	handler := translation.NewHandler(cfg, st, nil).WithCompleter(completer)
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	err := handler.Execute(context.Background(), episode)
	if err == nil {
		t.Fatal("expected execute to fail")
	}
	if !services.IsFatal(err) {
		t.Fatalf("credential failure classified retryable: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("completer calls = %d, want 1 (halt at the first doomed batch)", completer.calls)
	}

	counts, countErr := st.TranslationCounts(context.Background(), episode.ID, "zh")
	if countErr != nil {
		t.Fatalf("counts: %v", countErr)
	}
	if counts.Completed != 0 {
		t.Fatalf("completed = %d, want 0", counts.Completed)
	}
}

func TestExecuteReclaimsTranslationsStuckInProcessing(t *testing.T) {
	cfg := newTranslateConfig(t, 10, "de")
	st := testsupport.MustOpenStore(t, cfg)
	episode := seedTranscript(t, st, 2)

	completer := &echoTranslator{}
	handler := translation.NewHandler(cfg, st, nil).WithCompleter(completer)
	if err := handler.Prepare(context.Background(), episode); err != nil {
		t.Fatalf("prepare: %v", err)
	}

	// A crash between claiming a batch and recording its outcome leaves the
	// units in processing, invisible to the pending query.
	units, err := st.TranslationsForEpisode(context.Background(), episode.ID, "de")
	if err != nil || len(units) != 2 {
		t.Fatalf("units: %v (%d)", err, len(units))
	}
	ids := []int64{units[0].Translation.ID, units[1].Translation.ID}
	if err := st.MarkTranslationsProcessing(context.Background(), ids); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	if err := handler.Execute(context.Background(), episode); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if completer.calls != 1 {
		t.Fatalf("completer calls = %d, want 1", completer.calls)
	}
	counts, err := st.TranslationCounts(context.Background(), episode.ID, "de")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Completed != 2 {
		t.Fatalf("completed = %d, want 2", counts.Completed)
	}
}
