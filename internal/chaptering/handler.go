package chaptering

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/services"
	"podscribe/internal/services/llm"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

const stageName = "segment"

const systemPrompt = `You segment podcast transcripts into chapters. You receive
a JSON array of timed transcript cues. Group them into coherent chapters that
cover the whole episode in order, with no gaps and no overlaps. Respond with
JSON only, in the form {"chapters":[{"title":"...","summary":"...",
"start_time":<seconds>,"end_time":<seconds>}]}. Chapter boundaries must fall
on cue start times.`

// Completer is the LLM boundary the chaptering stage depends on.
type Completer interface {
	CompleteJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	HealthCheck(ctx context.Context) error
}

// Handler derives the chapter list for a proofread transcript. The whole
// list is replaced on every run, so re-running after a reset simply derives
// a fresh segmentation without touching cues or translations.
type Handler struct {
	cfg       *config.Config
	store     *store.Store
	logger    *slog.Logger
	completer Completer
}

// NewHandler constructs the chaptering stage around the configured LLM.
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

type promptCue struct {
	ID        int64   `json:"id"`
	StartTime float64 `json:"start_time"`
	Text      string  `json:"text"`
}

type chapterResponse struct {
	Chapters []struct {
		Title     string  `json:"title"`
		Summary   string  `json:"summary"`
		StartTime float64 `json:"start_time"`
		EndTime   float64 `json:"end_time"`
	} `json:"chapters"`
}

func (h *Handler) Execute(ctx context.Context, episode *store.Episode) error {
	cues, err := h.store.CuesForEpisode(ctx, episode.ID)
	if err != nil {
		return fmt.Errorf("load cues: %w", err)
	}
	if len(cues) == 0 {
		return services.Wrap(services.ErrValidation, stageName, "segment",
			"episode has no transcript cues", nil)
	}

	request := make([]promptCue, len(cues))
	for i, cue := range cues {
		request[i] = promptCue{ID: cue.ID, StartTime: cue.StartTime, Text: cue.EffectiveText()}
	}
	payload, err := json.Marshal(request)
	if err != nil {
		return err
	}

	content, err := h.completer.CompleteJSON(ctx, systemPrompt, string(payload))
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "complete",
			"derive chapters", err)
	}

	var response chapterResponse
	if err := llm.DecodeLLMJSON(content, &response); err != nil {
		return services.Wrap(services.ErrValidation, stageName, "decode",
			"chapter response is not valid JSON", err)
	}

	drafts, err := buildDrafts(response, cues)
	if err != nil {
		return services.Wrap(services.ErrValidation, stageName, "validate",
			"chapter response rejected", err)
	}

	chapters, err := h.store.ReplaceChapters(ctx, episode.ID, drafts)
	if err != nil {
		return fmt.Errorf("replace chapters: %w", err)
	}

	h.logger.Info("chapters derived", logging.Int("chapters", len(chapters)))
	return nil
}

// buildDrafts validates the model output against the transcript: chapters
// must be ordered, non-overlapping, and cover the cue span. The final
// chapter's end is stretched to the last cue so rounding in the model output
// cannot orphan trailing cues.
func buildDrafts(response chapterResponse, cues []*store.Cue) ([]store.ChapterDraft, error) {
	if len(response.Chapters) == 0 {
		return nil, fmt.Errorf("no chapters in response")
	}

	lastEnd := cues[len(cues)-1].EndTime
	drafts := make([]store.ChapterDraft, 0, len(response.Chapters))
	previousEnd := 0.0
	for i, chapter := range response.Chapters {
		title := strings.TrimSpace(chapter.Title)
		if title == "" {
			return nil, fmt.Errorf("chapter %d has no title", i)
		}
		if chapter.EndTime <= chapter.StartTime {
			return nil, fmt.Errorf("chapter %q spans %.1f-%.1f", title, chapter.StartTime, chapter.EndTime)
		}
		if chapter.StartTime < previousEnd {
			return nil, fmt.Errorf("chapter %q overlaps the previous chapter", title)
		}
		previousEnd = chapter.EndTime
		drafts = append(drafts, store.ChapterDraft{
			Title:     title,
			Summary:   strings.TrimSpace(chapter.Summary),
			StartTime: chapter.StartTime,
			EndTime:   chapter.EndTime,
		})
	}
	if drafts[0].StartTime != 0 {
		drafts[0].StartTime = 0
	}
	if drafts[len(drafts)-1].EndTime < lastEnd {
		drafts[len(drafts)-1].EndTime = lastEnd + 1
	}
	return drafts, nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if err := h.completer.HealthCheck(ctx); err != nil {
		return stage.Unhealthy(stageName, err.Error())
	}
	return stage.Healthy(stageName)
}
