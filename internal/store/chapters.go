package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ReplaceChapters swaps an episode's chapter list and re-attaches cues to the
// new chapters by time range, all in one transaction. Chaptering is cheap to
// re-derive, so the stage always writes the full list.
func (s *Store) ReplaceChapters(ctx context.Context, episodeID int64, drafts []ChapterDraft) ([]*Chapter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin chapters tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FK ON DELETE SET NULL detaches existing cues.
	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE episode_id = ?`, episodeID); err != nil {
		return nil, fmt.Errorf("delete chapters: %w", err)
	}

	chapters := make([]*Chapter, 0, len(drafts))
	for index, draft := range drafts {
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO chapters (episode_id, chapter_index, title, summary, start_time, end_time)
             VALUES (?, ?, ?, ?, ?, ?)`,
			episodeID,
			index,
			draft.Title,
			nullableString(draft.Summary),
			draft.StartTime,
			draft.EndTime,
		)
		if err != nil {
			return nil, fmt.Errorf("insert chapter: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, fmt.Errorf("last insert id: %w", err)
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE cues SET chapter_id = ?, updated_at = ?
             WHERE episode_id = ? AND start_time >= ? AND start_time < ?`,
			id,
			nowStamp(),
			episodeID,
			draft.StartTime,
			draft.EndTime,
		); err != nil {
			return nil, fmt.Errorf("attach cues: %w", err)
		}

		chapters = append(chapters, &Chapter{
			ID:           id,
			EpisodeID:    episodeID,
			ChapterIndex: index,
			Title:        draft.Title,
			Summary:      draft.Summary,
			StartTime:    draft.StartTime,
			EndTime:      draft.EndTime,
		})
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit chapters: %w", err)
	}
	return chapters, nil
}

// ListChapters returns an episode's chapters in order.
func (s *Store) ListChapters(ctx context.Context, episodeID int64) ([]*Chapter, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, episode_id, chapter_index, title, summary, start_time, end_time
         FROM chapters WHERE episode_id = ? ORDER BY chapter_index`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	defer rows.Close()

	var chapters []*Chapter
	for rows.Next() {
		var (
			chapter Chapter
			summary sql.NullString
		)
		if err := rows.Scan(
			&chapter.ID,
			&chapter.EpisodeID,
			&chapter.ChapterIndex,
			&chapter.Title,
			&summary,
			&chapter.StartTime,
			&chapter.EndTime,
		); err != nil {
			return nil, err
		}
		chapter.Summary = summary.String
		chapters = append(chapters, &chapter)
	}
	return chapters, rows.Err()
}

// ResegmentEpisode rewinds an episode to just before the chaptering stage:
// chapters are deleted, cues detach from them, and the workflow status drops
// to proofread. Transcription, proofreading, and completed translations
// survive for re-association with the new chapters.
func (s *Store) ResegmentEpisode(ctx context.Context, episodeID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin resegment tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chapters WHERE episode_id = ?`, episodeID); err != nil {
		return fmt.Errorf("delete chapters: %w", err)
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE episodes
         SET workflow_status = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND workflow_status >= ?`,
		int(StatusProofread),
		nowStamp(),
		episodeID,
		int(StatusSegmented),
	); err != nil {
		return fmt.Errorf("rewind status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit resegment: %w", err)
	}
	return nil
}
