package proofreading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"podscribe/internal/batch"
	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/services"
	"podscribe/internal/services/llm"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

const (
	stageName        = "proofread"
	defaultBatchSize = 20
)

const systemPrompt = `You are a transcript proofreader. You receive raw automatic
speech recognition output as a JSON array of cues. Fix recognition errors,
punctuation, and casing. Never merge, split, reorder, or drop cues, and never
change what the speaker meant. Respond with JSON only, in the form
{"cues":[{"id":<id>,"text":"<corrected text>"}]} covering every input cue.`

// Completer is the LLM boundary the proofreading stage depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Handler corrects raw transcript cues in batches with an LLM. Corrections
// are stored next to the raw text, never over it, so the original recognition
// output stays auditable.
type Handler struct {
	cfg       *config.Config
	store     *store.Store
	logger    *slog.Logger
	completer Completer
}

// NewHandler constructs the proofreading stage around the configured LLM.
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

func (h *Handler) Prepare(ctx context.Context, episode *store.Episode) error {
	if strings.TrimSpace(h.cfg.LLM.APIKey) == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "prepare",
			"llm api key is not configured", nil)
	}
	return nil
}

// Execute corrects every cue that has not been proofread yet. Cues carry an
// is_corrected flag instead of a retry counter: a failed batch simply stays
// uncorrected and is selected again on the next resume.
func (h *Handler) Execute(ctx context.Context, episode *store.Episode) error {
	cues, err := h.store.UncorrectedCues(ctx, episode.ID)
	if err != nil {
		return fmt.Errorf("select uncorrected cues: %w", err)
	}
	if len(cues) == 0 {
		total, err := h.store.CuesForEpisode(ctx, episode.ID)
		if err != nil {
			return err
		}
		if len(total) == 0 {
			return services.Wrap(services.ErrValidation, stageName, "proofread",
				"episode has no transcript cues", nil)
		}
		return nil
	}

	size := h.cfg.Workflow.ProofreadBatchSize
	if size <= 0 {
		size = defaultBatchSize
	}

	validationFailures := 0
	threshold := h.cfg.Workflow.ValidationThreshold

	summary, runErr := batch.Run(ctx, cues, batch.Options[*store.Cue]{
		Size: size,
		Execute: func(ctx context.Context, units []*store.Cue) (int, error) {
			completed, err := h.proofreadBatch(ctx, units)
			if err != nil && errors.Is(err, services.ErrValidation) {
				validationFailures++
			}
			return completed, err
		},
		Classify: func(err error) batch.Class {
			if services.IsFatal(err) {
				return batch.ClassFatal
			}
			if threshold > 0 && validationFailures >= threshold {
				return batch.ClassFatal
			}
			return batch.ClassRetryable
		},
		Logger: h.logger,
	})
	if runErr != nil {
		return runErr
	}

	remaining, err := h.store.UncorrectedCues(ctx, episode.ID)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		return services.Wrap(services.ErrTransient, stageName, "proofread",
			fmt.Sprintf("%d cues still uncorrected", len(remaining)), summary.LastErr)
	}

	h.logger.Info("proofreading finished", logging.Int("cues", summary.Completed))
	return nil
}

type promptCue struct {
	ID      int64  `json:"id"`
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
}

type correctionResponse struct {
	Cues []promptCue `json:"cues"`
}

func (h *Handler) proofreadBatch(ctx context.Context, units []*store.Cue) (int, error) {
	request := make([]promptCue, len(units))
	for i, cue := range units {
		request[i] = promptCue{ID: cue.ID, Speaker: cue.Speaker, Text: cue.Text}
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return 0, err
	}

	content, err := h.completer.CompleteJSON(ctx, systemPrompt, string(payload))
	if err != nil {
		return 0, services.Wrap(services.ErrExternalTool, stageName, "complete",
			fmt.Sprintf("proofread batch of %d cues", len(units)), err)
	}

	var response correctionResponse
	if err := llm.DecodeLLMJSON(content, &response); err != nil {
		return 0, services.Wrap(services.ErrValidation, stageName, "decode",
			"proofread response is not valid JSON", err)
	}

	corrected := make(map[int64]string, len(response.Cues))
	for _, cue := range response.Cues {
		if strings.TrimSpace(cue.Text) != "" {
			corrected[cue.ID] = strings.TrimSpace(cue.Text)
		}
	}

	completed := 0
	for _, cue := range units {
		text, ok := corrected[cue.ID]
		if !ok {
			// An omitted cue keeps its raw text but still counts as reviewed.
			text = cue.Text
		}
		if err := h.store.SetCorrectedText(ctx, cue.ID, text); err != nil {
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
