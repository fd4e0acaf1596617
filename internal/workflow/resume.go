package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"podscribe/internal/logging"
	"podscribe/internal/services"
	"podscribe/internal/store"
)

// ErrAwaitingReview is returned by Resume when an episode sits at
// READY_FOR_REVIEW; only the review sync moves it forward.
var ErrAwaitingReview = errors.New("episode is awaiting human review")

// ErrAlreadyPublished is returned by Resume for terminal episodes.
var ErrAlreadyPublished = errors.New("episode is already published")

// Resume advances one episode by exactly one workflow step: it dispatches the
// handler registered for the current status and, only when the handler
// succeeds, persists the next status with a compare-and-swap. A handler
// failure leaves the status untouched, so calling Resume again retries the
// same stage over exactly the unfinished work.
func (m *Manager) Resume(ctx context.Context, episodeID int64) (*store.Episode, error) {
	unlock, err := m.lockEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	episode, err := m.requireEpisode(ctx, episodeID, "resume")
	if err != nil {
		return nil, err
	}

	status := episode.WorkflowStatus
	if status.Terminal() {
		return episode, ErrAlreadyPublished
	}
	if status == store.StatusReadyForReview {
		return episode, ErrAwaitingReview
	}

	registered, ok := m.stageFor(status)
	if !ok {
		return episode, fmt.Errorf("no stage registered for status %s", status)
	}
	next, ok := status.Next()
	if !ok {
		return episode, ErrAlreadyPublished
	}

	runID := uuid.NewString()
	stageCtx := services.WithEpisodeID(ctx, episode.ID)
	stageCtx = services.WithStage(stageCtx, registered.name)
	stageCtx = services.WithRunID(stageCtx, runID)
	stageLogger := logging.WithContext(stageCtx, m.logger)

	stageStart := time.Now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("episode_title", episode.Title),
	)

	if err := registered.handler.Prepare(stageCtx, episode); err != nil {
		return episode, m.failStage(stageCtx, stageLogger, episode, registered.name, err)
	}
	if err := m.store.UpdateEpisode(stageCtx, episode); err != nil {
		return episode, fmt.Errorf("persist stage preparation: %w", err)
	}

	if err := registered.handler.Execute(stageCtx, episode); err != nil {
		if errors.Is(err, context.Canceled) {
			stageLogger.Debug("stage interrupted")
			return episode, err
		}
		return episode, m.failStage(stageCtx, stageLogger, episode, registered.name, err)
	}
	if err := m.store.UpdateEpisode(stageCtx, episode); err != nil {
		return episode, fmt.Errorf("persist stage result: %w", err)
	}

	advanced, err := m.store.TransitionStatus(stageCtx, episode.ID, status, next)
	if err != nil {
		return episode, err
	}
	if !advanced {
		return episode, fmt.Errorf("episode %d advanced concurrently from %s", episode.ID, status)
	}

	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.String("next_status", next.String()),
		logging.Duration("stage_duration", time.Since(stageStart)),
	)
	if m.notifier != nil {
		_ = m.notifier.NotifyStageCompleted(stageCtx, episode.Title, registered.name)
	}

	return m.store.GetEpisode(ctx, episodeID)
}

// Run resumes an episode repeatedly until it reaches the review barrier, the
// terminal status, or a stage failure. Cancellation is honoured between
// stages.
func (m *Manager) Run(ctx context.Context, episodeID int64) (*store.Episode, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		episode, err := m.Resume(ctx, episodeID)
		if errors.Is(err, ErrAwaitingReview) || errors.Is(err, ErrAlreadyPublished) {
			return episode, nil
		}
		if err != nil {
			return episode, err
		}
	}
}

func (m *Manager) failStage(ctx context.Context, logger *slog.Logger, episode *store.Episode, stageName string, err error) error {
	logger.Error("stage failed",
		logging.String(logging.FieldEventType, "stage_failed"),
		logging.Error(err),
	)
	if storeErr := m.store.SetEpisodeError(ctx, episode.ID, err.Error()); storeErr != nil {
		logger.Error("failed to record stage error", logging.Error(storeErr))
	}
	if m.notifier != nil {
		_ = m.notifier.NotifyError(ctx, err, stageName)
	}
	return err
}
