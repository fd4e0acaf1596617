package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// RecordPublication upserts the delivery outcome for one (episode, target)
// pair. Re-publishing overwrites the previous outcome for that target.
func (s *Store) RecordPublication(ctx context.Context, episodeID int64, target, status, detail string) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO publications (episode_id, target, status, detail, published_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT (episode_id, target) DO UPDATE SET
             status = excluded.status,
             detail = excluded.detail,
             published_at = excluded.published_at`,
		episodeID,
		target,
		status,
		nullableString(detail),
		nowStamp(),
	)
	if err != nil {
		return fmt.Errorf("record publication: %w", err)
	}
	return nil
}

// ListPublications returns delivery records for an episode.
func (s *Store) ListPublications(ctx context.Context, episodeID int64) ([]*Publication, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, episode_id, target, status, detail, published_at
         FROM publications WHERE episode_id = ? ORDER BY target`,
		episodeID,
	)
	if err != nil {
		return nil, fmt.Errorf("list publications: %w", err)
	}
	defer rows.Close()

	var records []*Publication
	for rows.Next() {
		var (
			record      Publication
			detail      sql.NullString
			publishedAt string
		)
		if err := rows.Scan(
			&record.ID,
			&record.EpisodeID,
			&record.Target,
			&record.Status,
			&detail,
			&publishedAt,
		); err != nil {
			return nil, err
		}
		record.Detail = detail.String
		if ts, err := parseTimeString(publishedAt); err == nil {
			record.PublishedAt = ts
		} else {
			record.PublishedAt = time.Time{}
		}
		records = append(records, &record)
	}
	return records, rows.Err()
}
