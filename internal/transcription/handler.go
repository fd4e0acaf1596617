package transcription

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"podscribe/internal/batch"
	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/media"
	"podscribe/internal/progress"
	"podscribe/internal/services"
	"podscribe/internal/services/whisperx"
	"podscribe/internal/stage"
	"podscribe/internal/store"
)

const (
	stageName              = "transcribe"
	defaultSegmentDuration = 600
)

// Handler slices episode audio into segments and transcribes each slice with
// WhisperX. Segments are independent retryable units: a failed slice keeps
// its extracted audio and is retried on the next resume without touching
// completed segments.
type Handler struct {
	cfg         *config.Config
	store       *store.Store
	logger      *slog.Logger
	slicer      media.Slicer
	transcriber whisperx.Transcriber
}

// NewHandler constructs the transcription stage around ffmpeg and WhisperX.
func NewHandler(cfg *config.Config, st *store.Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handler{
		cfg:    cfg,
		store:  st,
		logger: logger,
		slicer: media.NewFFmpegSlicer(cfg.FFmpegBinary()),
		transcriber: whisperx.NewService(whisperx.Config{
			Model:       cfg.WhisperX.Model,
			CUDAEnabled: cfg.WhisperX.CUDAEnabled,
			VADMethod:   cfg.WhisperX.VADMethod,
			Diarize:     cfg.WhisperX.Diarize,
			CacheDir:    cfg.WhisperX.CacheDir,
		}),
	}
}

// WithSlicer overrides the slice extractor (used in tests).
func (h *Handler) WithSlicer(slicer media.Slicer) *Handler {
	h.slicer = slicer
	return h
}

// WithTranscriber overrides the transcription collaborator (used in tests).
func (h *Handler) WithTranscriber(transcriber whisperx.Transcriber) *Handler {
	h.transcriber = transcriber
	return h
}

// Prepare plans the segment set from the episode duration. Creation is
// idempotent on the (episode, start time) key, so a rerun after a partial
// failure never duplicates segments.
func (h *Handler) Prepare(ctx context.Context, episode *store.Episode) error {
	if strings.TrimSpace(episode.AudioPath) == "" {
		return services.Wrap(services.ErrValidation, stageName, "prepare",
			"episode has no audio file", nil)
	}
	if episode.DurationSeconds <= 0 {
		return services.Wrap(services.ErrValidation, stageName, "prepare",
			"episode has no duration", nil)
	}

	segmentSeconds := float64(h.cfg.Workflow.SegmentDurationSeconds)
	if segmentSeconds <= 0 {
		segmentSeconds = defaultSegmentDuration
	}

	var specs []store.SegmentSpec
	for start := 0.0; start < episode.DurationSeconds; start += segmentSeconds {
		end := start + segmentSeconds
		if end > episode.DurationSeconds {
			end = episode.DurationSeconds
		}
		specs = append(specs, store.SegmentSpec{StartTime: start, EndTime: end})
	}

	created, err := h.store.CreateSegments(ctx, episode.ID, specs)
	if err != nil {
		return fmt.Errorf("plan segments: %w", err)
	}
	if created > 0 {
		h.logger.Info("segments planned",
			logging.Int("created", created),
			logging.Int("total", len(specs)),
		)
	}
	return nil
}

// Execute transcribes every pending segment, one slice per external call.
// The stage only succeeds once every segment for the episode is completed.
func (h *Handler) Execute(ctx context.Context, episode *store.Episode) error {
	// A crash after marking a batch leaves units in processing with nobody
	// working on them; reclaim them before selecting work.
	if reclaimed, err := h.store.ResetStuckSegments(ctx, episode.ID); err != nil {
		return fmt.Errorf("reset stuck segments: %w", err)
	} else if reclaimed > 0 {
		h.logger.Warn("reclaimed stuck segments", logging.Int64("segments", reclaimed))
	}

	pending, err := h.store.PendingSegments(ctx, episode.ID)
	if err != nil {
		return fmt.Errorf("select pending segments: %w", err)
	}

	summary, runErr := batch.Run(ctx, pending, batch.Options[*store.Segment]{
		Size: 1,
		MarkProcessing: func(ctx context.Context, units []*store.Segment) error {
			return h.store.MarkSegmentsProcessing(ctx, segmentIDs(units))
		},
		Execute: func(ctx context.Context, units []*store.Segment) (int, error) {
			completed := 0
			for _, segment := range units {
				if err := h.transcribeSegment(ctx, episode, segment); err != nil {
					return completed, err
				}
				completed++
			}
			return completed, nil
		},
		RecordFailure: func(ctx context.Context, units []*store.Segment, callErr error) error {
			return h.store.FailSegments(ctx, segmentIDs(units), callErr.Error())
		},
		Classify: classify,
		Logger:   h.logger,
	})
	if runErr != nil {
		return runErr
	}

	counts, err := h.store.SegmentCounts(ctx, episode.ID)
	if err != nil {
		return fmt.Errorf("count segments: %w", err)
	}
	if progress.Compute(counts) != progress.AggregateCompleted {
		return services.Wrap(services.ErrTransient, stageName, "transcribe",
			fmt.Sprintf("%d of %d segments completed", counts.Completed, counts.Total()),
			summary.LastErr)
	}

	h.logger.Info("transcription finished",
		logging.Int("segments", counts.Completed),
	)
	return nil
}

func (h *Handler) transcribeSegment(ctx context.Context, episode *store.Episode, segment *store.Segment) error {
	slicePath := segment.SlicePath
	if slicePath == "" {
		slicePath = media.SlicePath(h.cfg.SliceDir(), episode.ID, segment.StartTime)
	}
	if _, err := os.Stat(slicePath); err != nil {
		if err := h.slicer.ExtractSlice(ctx, episode.AudioPath, segment.StartTime, segment.EndTime, slicePath); err != nil {
			return services.Wrap(services.ErrExternalTool, stageName, "slice",
				fmt.Sprintf("extract %.0f-%.0fs", segment.StartTime, segment.EndTime), err)
		}
	}
	if err := h.store.SetSegmentSlice(ctx, segment.ID, slicePath); err != nil {
		return err
	}

	cues, err := h.transcriber.TranscribeSlice(ctx, slicePath, h.cfg.SliceDir(), episode.Language)
	if err != nil {
		return services.Wrap(services.ErrExternalTool, stageName, "transcribe",
			fmt.Sprintf("transcribe slice at %.0fs", segment.StartTime), err)
	}

	drafts := make([]store.CueDraft, 0, len(cues))
	for _, cue := range cues {
		drafts = append(drafts, store.CueDraft{
			StartTime: segment.StartTime + cue.Start,
			EndTime:   segment.StartTime + cue.End,
			Speaker:   cue.Speaker,
			Text:      cue.Text,
		})
	}
	if err := h.store.CompleteSegment(ctx, segment.ID, drafts); err != nil {
		return err
	}
	// The slice has served its purpose once its cues are committed.
	_ = os.Remove(slicePath)
	return nil
}

func (h *Handler) HealthCheck(ctx context.Context) stage.Health {
	if _, err := exec.LookPath(h.cfg.FFmpegBinary()); err != nil {
		return stage.Unhealthy(stageName, "ffmpeg not found in PATH")
	}
	if _, err := exec.LookPath(whisperx.UVXCommand); err != nil {
		return stage.Unhealthy(stageName, "uvx not found in PATH")
	}
	return stage.Healthy(stageName)
}

func segmentIDs(units []*store.Segment) []int64 {
	ids := make([]int64, len(units))
	for i, unit := range units {
		ids[i] = unit.ID
	}
	return ids
}

func classify(err error) batch.Class {
	if services.IsFatal(err) {
		return batch.ClassFatal
	}
	return batch.ClassRetryable
}
