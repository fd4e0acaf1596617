package workflow

import (
	"context"
	"fmt"

	"podscribe/internal/logging"
	"podscribe/internal/services"
	"podscribe/internal/store"
)

// ForceRestart resets an episode to INIT and deletes all derived artifacts:
// segments, cues, chapters, translations, and publication records. The source
// URL and hash survive so the episode can be resumed from scratch.
func (m *Manager) ForceRestart(ctx context.Context, episodeID int64) (*store.Episode, error) {
	unlock, err := m.lockEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	episode, err := m.requireEpisode(ctx, episodeID, "force restart")
	if err != nil {
		return nil, err
	}

	if err := m.store.ResetEpisode(ctx, episodeID); err != nil {
		return nil, fmt.Errorf("reset episode %d: %w", episodeID, err)
	}

	m.logger.Info("episode restarted",
		logging.Int64("episode_id", episodeID),
		logging.String("previous_status", episode.WorkflowStatus.String()),
	)
	return m.store.GetEpisode(ctx, episodeID)
}

// ForceResegment rolls an episode back to PROOFREAD so the chaptering stage
// reruns. Chapters are deleted and cues detach from them; translations keep
// every human edit because segmentation never touches cue or translation rows.
func (m *Manager) ForceResegment(ctx context.Context, episodeID int64) (*store.Episode, error) {
	unlock, err := m.lockEpisode(episodeID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	episode, err := m.requireEpisode(ctx, episodeID, "force resegment")
	if err != nil {
		return nil, err
	}
	if episode.WorkflowStatus < store.StatusSegmented {
		return nil, fmt.Errorf("episode %d has no chapters to discard (status %s)",
			episodeID, episode.WorkflowStatus)
	}

	if err := m.store.ResegmentEpisode(ctx, episodeID); err != nil {
		return nil, fmt.Errorf("resegment episode %d: %w", episodeID, err)
	}

	m.logger.Info("episode rolled back for resegmentation",
		logging.Int64("episode_id", episodeID),
		logging.String("previous_status", episode.WorkflowStatus.String()),
	)
	return m.store.GetEpisode(ctx, episodeID)
}

func (m *Manager) requireEpisode(ctx context.Context, episodeID int64, op string) (*store.Episode, error) {
	episode, err := m.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, services.Wrap(services.ErrNotFound, "workflow", op,
			fmt.Sprintf("episode %d not found", episodeID), nil)
	}
	return episode, nil
}
