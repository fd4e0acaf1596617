package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"podscribe/internal/progress"
)

// CreateSegments bulk-inserts virtual segments for an episode. The ordering
// key (episode_id, start_time) is unique, and conflicts are ignored so the
// transcription stage can re-run prepare without duplicating rows. Returns the
// number of segments actually inserted.
func (s *Store) CreateSegments(ctx context.Context, episodeID int64, specs []SegmentSpec) (int, error) {
	if len(specs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin segments tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	timestamp := nowStamp()
	inserted := 0
	for _, spec := range specs {
		if spec.EndTime <= spec.StartTime {
			return 0, fmt.Errorf("segment end %.2f not after start %.2f", spec.EndTime, spec.StartTime)
		}
		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO segments (episode_id, start_time, end_time, status, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT (episode_id, start_time) DO NOTHING`,
			episodeID,
			spec.StartTime,
			spec.EndTime,
			UnitPending,
			timestamp,
			timestamp,
		)
		if err != nil {
			return 0, fmt.Errorf("insert segment: %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("rows affected: %w", err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit segments: %w", err)
	}
	return inserted, nil
}

// ListSegments returns all segments for an episode ordered by start time.
func (s *Store) ListSegments(ctx context.Context, episodeID int64) ([]*Segment, error) {
	return s.querySegments(ctx,
		`SELECT `+segmentColumns+` FROM segments WHERE episode_id = ? ORDER BY start_time`,
		episodeID,
	)
}

// PendingSegments returns the segments still needing work, in ordering-key
// order. Selecting pending plus failed is what makes a resumed run pick up
// exactly the unfinished units.
func (s *Store) PendingSegments(ctx context.Context, episodeID int64) ([]*Segment, error) {
	return s.querySegments(ctx,
		`SELECT `+segmentColumns+` FROM segments
         WHERE episode_id = ? AND status IN (?, ?)
         ORDER BY start_time`,
		episodeID, UnitPending, UnitFailed,
	)
}

// ResetStuckSegments returns segments abandoned in processing back to
// pending. A crash between marking a batch and recording its outcome would
// otherwise leave the units invisible to PendingSegments forever.
func (s *Store) ResetStuckSegments(ctx context.Context, episodeID int64) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET status = ?, updated_at = ?
         WHERE episode_id = ? AND status = ?`,
		UnitPending, nowStamp(), episodeID, UnitProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck segments: %w", err)
	}
	return res.RowsAffected()
}

// MarkSegmentsProcessing flips a batch of segments to processing. Completed
// segments are left untouched.
func (s *Store) MarkSegmentsProcessing(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{UnitProcessing, nowStamp()}, idArgs(ids)...)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET status = ?, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(ids))+`) AND status != 'completed'`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark segments processing: %w", err)
	}
	return nil
}

// SetSegmentSlice records the extracted audio slice for a segment.
func (s *Store) SetSegmentSlice(ctx context.Context, id int64, slicePath string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE segments SET slice_path = ?, updated_at = ? WHERE id = ?`,
		nullableString(slicePath),
		nowStamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set segment slice: %w", err)
	}
	return nil
}

// CompleteSegment flips a segment to completed and inserts its cues in a
// single transaction, so a crash can never leave cues without the status flip
// or vice versa. The slice path is cleared because the extracted audio is no
// longer needed. A segment that is already completed is left alone.
func (s *Store) CompleteSegment(ctx context.Context, segmentID int64, drafts []CueDraft) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var episodeID int64
	var status string
	row := tx.QueryRowContext(ctx, `SELECT episode_id, status FROM segments WHERE id = ?`, segmentID)
	if err := row.Scan(&episodeID, &status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("segment %d not found", segmentID)
		}
		return fmt.Errorf("load segment: %w", err)
	}
	if UnitStatus(status) == UnitCompleted {
		return nil
	}

	timestamp := nowStamp()
	for _, draft := range drafts {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO cues (episode_id, segment_id, start_time, end_time, speaker, text, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			episodeID,
			segmentID,
			draft.StartTime,
			draft.EndTime,
			nullableString(draft.Speaker),
			draft.Text,
			timestamp,
			timestamp,
		); err != nil {
			return fmt.Errorf("insert cue: %w", err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE segments
         SET status = ?, error_message = NULL, slice_path = NULL, updated_at = ?
         WHERE id = ?`,
		UnitCompleted,
		timestamp,
		segmentID,
	); err != nil {
		return fmt.Errorf("complete segment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit complete: %w", err)
	}
	return nil
}

// FailSegments marks a batch of segments failed, recording the error and
// bumping retry counts. Slice paths are retained so retries skip re-extraction.
func (s *Store) FailSegments(ctx context.Context, ids []int64, message string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{UnitFailed, nullableString(message), nowStamp()}, idArgs(ids)...)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE segments
         SET status = ?, error_message = ?, retry_count = retry_count + 1, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(ids))+`) AND status != 'completed'`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("fail segments: %w", err)
	}
	return nil
}

// SegmentCounts tallies an episode's segments by status.
func (s *Store) SegmentCounts(ctx context.Context, episodeID int64) (progress.Counts, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT status, COUNT(1) FROM segments WHERE episode_id = ? GROUP BY status`,
		episodeID,
	)
	if err != nil {
		return progress.Counts{}, fmt.Errorf("segment counts: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

func scanCounts(rows *sql.Rows) (progress.Counts, error) {
	var counts progress.Counts
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return progress.Counts{}, err
		}
		switch UnitStatus(status) {
		case UnitPending:
			counts.Pending += count
		case UnitProcessing:
			counts.Processing += count
		case UnitCompleted:
			counts.Completed += count
		case UnitFailed:
			counts.Failed += count
		}
	}
	return counts, rows.Err()
}

func (s *Store) querySegments(ctx context.Context, query string, args ...any) ([]*Segment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	var segments []*Segment
	for rows.Next() {
		segment, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, segment)
	}
	return segments, rows.Err()
}

const segmentColumns = "id, episode_id, start_time, end_time, status, error_message, retry_count, slice_path, created_at, updated_at"

func scanSegment(scanner rowScanner) (*Segment, error) {
	var (
		id           int64
		episodeID    int64
		startTime    float64
		endTime      float64
		status       string
		errorMessage sql.NullString
		retryCount   int
		slicePath    sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&episodeID,
		&startTime,
		&endTime,
		&status,
		&errorMessage,
		&retryCount,
		&slicePath,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	segment := &Segment{
		ID:           id,
		EpisodeID:    episodeID,
		StartTime:    startTime,
		EndTime:      endTime,
		Status:       UnitStatus(status),
		ErrorMessage: errorMessage.String,
		RetryCount:   retryCount,
		SlicePath:    slicePath.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		segment.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		segment.UpdatedAt = updated
	}
	return segment, nil
}
