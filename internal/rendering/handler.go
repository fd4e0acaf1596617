package rendering

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/notifications"
	"podscribe/internal/services"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

const stageName = "render"

// Handler writes the human review document for a fully translated episode.
// Rendering is a pure projection of the database, so re-running it simply
// regenerates the file.
type Handler struct {
	cfg      *config.Config
	store    *store.Store
	logger   *slog.Logger
	notifier notifications.Service
	now      func() time.Time
}

// NewHandler constructs the rendering stage.
func NewHandler(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{cfg: cfg, store: st, logger: logger, notifier: notifier, now: time.Now}
}

// WithClock overrides the timestamp source (used in tests).
func (h *Handler) WithClock(now func() time.Time) *Handler {
	h.now = now
	return h
}

func (h *Handler) Prepare(ctx context.Context, episode *store.Episode) error {
	if strings.TrimSpace(h.cfg.Paths.ReviewDir) == "" {
		return services.Wrap(services.ErrConfiguration, stageName, "prepare",
			"review directory is not configured", nil)
	}
	if err := os.MkdirAll(h.cfg.Paths.ReviewDir, 0o755); err != nil {
		return fmt.Errorf("ensure review dir: %w", err)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, episode *store.Episode) error {
	doc, err := Load(ctx, h.store, h.cfg.Translation.Languages, episode)
	if err != nil {
		return err
	}
	doc.GeneratedAt = h.now()

	path := DocumentPath(h.cfg.Paths.ReviewDir, episode.ID)
	if err := writeAtomic(path, Render(doc)); err != nil {
		return fmt.Errorf("write review document: %w", err)
	}

	h.logger.Info("review document written",
		logging.String("path", path),
		logging.Int("cues", len(doc.Cues)),
	)
	if h.notifier != nil {
		_ = h.notifier.NotifyReviewReady(ctx, episode.Title, path)
	}
	return nil
}

// Load assembles the full document view of an episode from the database.
// Publishing reuses this to build export bundles.
func Load(ctx context.Context, st *store.Store, languages []string, episode *store.Episode) (Document, error) {
	var doc Document

	cues, err := st.CuesForEpisode(ctx, episode.ID)
	if err != nil {
		return doc, fmt.Errorf("load cues: %w", err)
	}
	if len(cues) == 0 {
		return doc, services.Wrap(services.ErrValidation, stageName, "render",
			"episode has no transcript cues", nil)
	}
	chapters, err := st.ListChapters(ctx, episode.ID)
	if err != nil {
		return doc, fmt.Errorf("load chapters: %w", err)
	}

	translations := make(map[string]map[int64]*store.Translation, len(languages))
	for _, lang := range languages {
		units, err := st.TranslationsForEpisode(ctx, episode.ID, lang)
		if err != nil {
			return doc, fmt.Errorf("load %s translations: %w", lang, err)
		}
		byCue := make(map[int64]*store.Translation, len(units))
		for _, unit := range units {
			if unit.Translation.Status == store.UnitCompleted {
				translation := unit.Translation
				byCue[translation.CueID] = &translation
			}
		}
		translations[lang] = byCue
	}

	return Document{
		Episode:      episode,
		Chapters:     chapters,
		Cues:         cues,
		Translations: translations,
		Languages:    languages,
	}, nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if strings.TrimSpace(h.cfg.Paths.ReviewDir) == "" {
		return stage.Unhealthy(stageName, "review directory is not configured")
	}
	return stage.Healthy(stageName)
}

func writeAtomic(path, content string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".render-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
