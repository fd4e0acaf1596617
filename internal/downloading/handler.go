package downloading

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/media"
	"podscribe/internal/services"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

const stageName = "download"

// Handler fetches episode audio from the source URL and records the local
// path, duration, and title on the episode.
type Handler struct {
	cfg        *config.Config
	logger     *slog.Logger
	downloader media.Downloader
}

// NewHandler constructs the download stage around yt-dlp.
func NewHandler(cfg *config.Config, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:        cfg,
		logger:     logger,
		downloader: media.NewYtDlpDownloader(cfg.Download.Binary, cfg.Download.AudioFormat),
	}
}

// WithDownloader overrides the download collaborator (used in tests).
func (h *Handler) WithDownloader(downloader media.Downloader) *Handler {
	h.downloader = downloader
	return h
}

func (h *Handler) Prepare(ctx context.Context, episode *store.Episode) error {
	if strings.TrimSpace(episode.SourceURL) == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare",
			"episode has no source url", nil)
	}
	return nil
}

func (h *Handler) Execute(ctx context.Context, episode *store.Episode) error {
	if seconds := h.cfg.Download.TimeoutSeconds; seconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
		defer cancel()
	}

	result, err := h.downloader.Download(ctx, episode.SourceURL, h.cfg.AudioDir())
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "fetch",
			fmt.Sprintf("download %s", episode.SourceURL), err)
	}
	if result.DurationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, stageName, "fetch",
			fmt.Sprintf("downloader reported no duration for %s", result.LocalPath), nil)
	}

	episode.AudioPath = result.LocalPath
	episode.DurationSeconds = result.DurationSeconds
	if strings.TrimSpace(episode.Title) == "" && result.Title != "" {
		episode.Title = result.Title
	}

	h.logger.Info("episode audio downloaded",
		logging.String("audio_path", result.LocalPath),
		logging.Float64("duration_seconds", result.DurationSeconds),
	)
	return nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	binary := h.cfg.Download.Binary
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if _, err := exec.LookPath(binary); err != nil {
		return stage.Unhealthy(stageName, fmt.Sprintf("%s not found in PATH", binary))
	}
	return stage.Healthy(stageName)
}
