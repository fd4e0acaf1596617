package publishing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/notifications"
	"podscribe/internal/rendering"
	"podscribe/internal/services"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

const stageName = "publish"

// Handler delivers an approved episode to every configured target. Each
// target's outcome is recorded per (episode, target); a re-run after a
// partial failure republishes only the targets that have not succeeded.
type Handler struct {
	cfg        *config.Config
	store      *store.Store
	logger     *slog.Logger
	notifier   notifications.Service
	publishers []Publisher
}

// NewHandler constructs the publishing stage with the targets enabled in
// configuration.
func NewHandler(cfg *config.Config, st *store.Store, logger *slog.Logger, notifier notifications.Service) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	h := &Handler{cfg: cfg, store: st, logger: logger, notifier: notifier}
	if strings.TrimSpace(cfg.Publishing.ExportDir) != "" {
		h.publishers = append(h.publishers, NewMarkdownExporter(cfg.Publishing.ExportDir))
	}
	if strings.TrimSpace(cfg.Publishing.WebhookURL) != "" {
		h.publishers = append(h.publishers,
			NewWebhookPublisher(cfg.Publishing.WebhookURL, cfg.Publishing.WebhookTimeoutSeconds))
	}
	return h
}

// WithPublishers overrides the target list (used in tests).
func (h *Handler) WithPublishers(publishers ...Publisher) *Handler {
	h.publishers = publishers
	return h
}

func (h *Handler) Prepare(ctx context.Context, episode *store.Episode) error {
	if len(h.publishers) == 0 {
		return services.Wrap(services.ErrConfiguration, stageName, "prepare",
			"no publishing targets configured", nil)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, episode *store.Episode) error {
	doc, err := rendering.Load(ctx, h.store, h.cfg.Translation.Languages, episode)
	if err != nil {
		return err
	}

	records, err := h.store.ListPublications(ctx, episode.ID)
	if err != nil {
		return fmt.Errorf("list publications: %w", err)
	}
	succeeded := make(map[string]bool)
	for _, record := range records {
		if record.Status == StatusSucceeded {
			succeeded[record.Target] = true
		}
	}

	var delivered []string
	var failures []string
	for _, publisher := range h.publishers {
		if succeeded[publisher.Name()] {
			delivered = append(delivered, publisher.Name())
			continue
		}
		detail, err := publisher.Publish(ctx, doc)
		if err != nil {
			failures = append(failures, publisher.Name())
			h.logger.Warn("publish target failed",
				logging.String("target", publisher.Name()),
				logging.Error(err),
			)
			if recordErr := h.store.RecordPublication(ctx, episode.ID,
				publisher.Name(), StatusFailed, err.Error()); recordErr != nil {
				return recordErr
			}
			continue
		}
		delivered = append(delivered, publisher.Name())
		h.logger.Info("publish target delivered",
			logging.String("target", publisher.Name()),
			logging.String("detail", detail),
		)
		if err := h.store.RecordPublication(ctx, episode.ID,
			publisher.Name(), StatusSucceeded, detail); err != nil {
			return err
		}
	}

	if len(failures) > 0 {
		return services.Wrap(services.ErrTransient, stageName, "publish",
			fmt.Sprintf("targets failed: %s", strings.Join(failures, ", ")), nil)
	}

	if h.notifier != nil {
		_ = h.notifier.NotifyPublished(ctx, episode.Title, delivered)
	}
	return nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if len(h.publishers) == 0 {
		return stage.Unhealthy(stageName, "no publishing targets configured")
	}
	return stage.Healthy(stageName)
}
