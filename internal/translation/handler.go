package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"podscribe/internal/batch"
	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/progress"
	"podscribe/internal/services"
	"podscribe/internal/services/llm"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

const (
	stageName        = "translate"
	defaultBatchSize = 10
)

const systemPromptTemplate = `You translate podcast transcripts into %s. You
receive a JSON array of transcript cues. Translate each cue's text faithfully,
keeping names, numbers, and tone. Respond with JSON only, in the form
{"translations":[{"id":<id>,"text":"<translated text>"}]} covering every
input cue.`

// Completer is the LLM boundary the translation stage depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Handler generates translations for every configured target language. Each
// (cue, language) pair is an independent retryable unit; re-running the stage
// translates only what is still pending or failed and never overwrites a
// translation a human has edited.
type Handler struct {
	cfg       *config.Config
	store     *store.Store
	logger    *slog.Logger
	completer Completer
}

// NewHandler constructs the translation stage around the configured LLM.
func NewHandler(cfg *config.Config, st *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:    cfg,
		store:  st,
		logger: logger,
		completer: llm.NewClient(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			BaseURL:        cfg.LLM.BaseURL,
			Model:          cfg.LLM.Model,
			Referer:        cfg.LLM.Referer,
			Title:          cfg.LLM.Title,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		}),
	}
}

// WithCompleter overrides the LLM collaborator (used in tests).
func (h *Handler) WithCompleter(completer Completer) *Handler {
	h.completer = completer
	return h
}

// Prepare seeds the pending translation set for every configured language.
// Seeding is idempotent on the (cue, language) key.
func (h *Handler) Prepare(ctx context.Context, episode *store.Episode) error {
	if strings.TrimSpace(h.cfg.LLM.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "prepare",
			"llm api key is not configured", nil)
	}
	if len(h.cfg.Translation.Languages) == 0 {
		return services.Wrap(services.ErrConfiguration, stageName, "prepare",
			"no target languages configured", nil)
	}
	for _, lang := range h.cfg.Translation.Languages {
		created, err := h.store.EnsureTranslations(ctx, episode.ID, lang)
		if err != nil {
			return fmt.Errorf("seed %s translations: %w", lang, err)
		}
		if created > 0 {
			h.logger.Info("translations seeded",
				logging.String(logging.FieldLanguage, lang),
				logging.Int("created", created),
			)
		}
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, episode *store.Episode) error {
	// Units abandoned in processing by a crash would never be selected again.
	if reclaimed, err := h.store.ResetStuckTranslations(ctx, episode.ID); err != nil {
		return fmt.Errorf("reset stuck translations: %w", err)
	} else if reclaimed > 0 {
		h.logger.Warn("reclaimed stuck translations", logging.Int64("units", reclaimed))
	}

	var lastErr error
	for _, lang := range h.cfg.Translation.Languages {
		if err := h.translateLanguage(ctx, episode, lang); err != nil {
			if services.IsFatal(err) || ctx.Err() != nil {
				return err
			}
			lastErr = err
		}
	}
	if lastErr != nil {
		return lastErr
	}

	counts, err := h.store.TranslationCounts(ctx, episode.ID, "")
	if err != nil {
		return fmt.Errorf("count translations: %w", err)
	}
	if counts.Total() == 0 {
		return services.Wrap(services.ErrValidation, stageName, "translate",
			"episode has no translation units", nil)
	}
	if progress.Compute(counts) != progress.AggregateCompleted {
		return services.Wrap(services.ErrTransient, stageName, "translate",
			fmt.Sprintf("%d of %d translations completed", counts.Completed, counts.Total()), nil)
	}

	h.logger.Info("translation finished", logging.Int("translations", counts.Completed))
	return nil
}

func (h *Handler) translateLanguage(ctx context.Context, episode *store.Episode, lang string) error {
	pending, err := h.store.PendingTranslations(ctx, episode.ID, lang)
	if err != nil {
		return fmt.Errorf("select pending %s translations: %w", lang, err)
	}

	if maxRetries := h.cfg.Workflow.MaxUnitRetries; maxRetries > 0 {
		kept := pending[:0]
		exhausted := 0
		for _, unit := range pending {
			if unit.Translation.RetryCount >= maxRetries {
				exhausted++
				continue
			}
			kept = append(kept, unit)
		}
		pending = kept
		if exhausted > 0 {
			h.logger.Warn("translations out of retries",
				logging.String(logging.FieldLanguage, lang),
				logging.Int("units", exhausted),
			)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	size := h.cfg.Workflow.TranslationBatchSize
	if size <= 0 {
		size = defaultBatchSize
	}
	prompt := fmt.Sprintf(systemPromptTemplate, languageName(lang))

	_, runErr := batch.Run(ctx, pending, batch.Options[*store.TranslationUnit]{
		Size: size,
		MarkProcessing: func(ctx context.Context, units []*store.TranslationUnit) error {
			return h.store.MarkTranslationsProcessing(ctx, translationIDs(units))
		},
		Execute: func(ctx context.Context, units []*store.TranslationUnit) (int, error) {
			return h.translateBatch(ctx, prompt, units)
		},
		RecordFailure: func(ctx context.Context, units []*store.TranslationUnit, callErr error) error {
			return h.store.FailTranslations(ctx, translationIDs(units), callErr.Error())
		},
		Classify: func(err error) batch.Class {
			if services.IsFatal(err) {
				return batch.ClassFatal
			}
			return batch.ClassRetryable
		},
		Logger: h.logger.With(logging.String(logging.FieldLanguage, lang)),
	})
	return runErr
}

type promptCue struct {
	ID   int64  `json:"id"`
	Text string `json:"text"`
}

type translationResponse struct {
	Translations []promptCue `json:"translations"`
}

func (h *Handler) translateBatch(ctx context.Context, systemPrompt string, units []*store.TranslationUnit) (int, error) {
	request := make([]promptCue, len(units))
	for i, unit := range units {
		request[i] = promptCue{ID: unit.Translation.ID, Text: unit.Cue.EffectiveText()}
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return 0, err
	}

	content, err := h.completer.CompleteJSON(ctx, systemPrompt, string(payload))
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, stageName, "complete",
			fmt.Sprintf("translate batch of %d cues", len(units)), err)
	}

	var response translationResponse
	if err := llm.DecodeLLMJSON(content, &response); err != nil {
		return 0, services.Wrap(services.ErrValidation, stageName, "decode",
			"translation response is not valid JSON", err)
	}

	translated := make(map[int64]string, len(response.Translations))
	for _, item := range response.Translations {
		if text := strings.TrimSpace(item.Text); text != "" {
			translated[item.ID] = text
		}
	}
	// Reject the batch before committing anything so a partial response
	// retries as a whole instead of leaving holes.
	for _, unit := range units {
		if _, ok := translated[unit.Translation.ID]; !ok {
			return 0, services.Wrap(services.ErrValidation, stageName, "validate",
				fmt.Sprintf("translation %d missing from response", unit.Translation.ID), nil)
		}
	}

	completed := 0
	for _, unit := range units {
		if err := h.store.CompleteTranslation(ctx, unit.Translation.ID, translated[unit.Translation.ID]); err != nil {
			return completed, err
		}
		completed++
	}
	return completed, nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.completer.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}

func translationIDs(units []*store.TranslationUnit) []int64 {
	ids := make([]int64, len(units))
	for i, unit := range units {
		ids[i] = unit.Translation.ID
	}
	return ids
}

// languageName renders a BCP 47 tag as an English display name for prompts.
func languageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	name := display.English.Languages().Name(tag)
	if name == "" {
		return code
	}
	return name
}
