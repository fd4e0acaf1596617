package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CuesForEpisode returns an episode's transcript lines ordered by start time.
func (s *Store) CuesForEpisode(ctx context.Context, episodeID int64) ([]*Cue, error) {
	return s.queryCues(ctx,
		`SELECT `+cueColumns+` FROM cues WHERE episode_id = ? ORDER BY start_time`,
		episodeID,
	)
}

// GetCue fetches a single cue by identifier.
func (s *Store) GetCue(ctx context.Context, id int64) (*Cue, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+cueColumns+` FROM cues WHERE id = ?`, id)
	cue, err := scanCue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cue: %w", err)
	}
	return cue, nil
}

// UncorrectedCues returns cues that have not been through proofreading yet,
// ordered by start time.
func (s *Store) UncorrectedCues(ctx context.Context, episodeID int64) ([]*Cue, error) {
	return s.queryCues(ctx,
		`SELECT `+cueColumns+` FROM cues
         WHERE episode_id = ? AND is_corrected = 0
         ORDER BY start_time`,
		episodeID,
	)
}

// SetCorrectedText records the proofread version of a cue. The raw transcript
// text is never overwritten.
func (s *Store) SetCorrectedText(ctx context.Context, cueID int64, corrected string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE cues SET corrected_text = ?, is_corrected = 1, updated_at = ? WHERE id = ?`,
		corrected,
		nowStamp(),
		cueID,
	)
	if err != nil {
		return fmt.Errorf("set corrected text: %w", err)
	}
	return nil
}

func (s *Store) queryCues(ctx context.Context, query string, args ...any) ([]*Cue, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cues: %w", err)
	}
	defer rows.Close()

	var cues []*Cue
	for rows.Next() {
		cue, err := scanCue(rows)
		if err != nil {
			return nil, err
		}
		cues = append(cues, cue)
	}
	return cues, rows.Err()
}

const cueColumns = "id, episode_id, segment_id, chapter_id, start_time, end_time, speaker, text, corrected_text, is_corrected, created_at, updated_at"

func scanCue(scanner rowScanner) (*Cue, error) {
	var (
		id          int64
		episodeID   int64
		segmentID   sql.NullInt64
		chapterID   sql.NullInt64
		startTime   float64
		endTime     float64
		speaker     sql.NullString
		text        string
		corrected   sql.NullString
		isCorrected int
		createdRaw  sql.NullString
		updatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&episodeID,
		&segmentID,
		&chapterID,
		&startTime,
		&endTime,
		&speaker,
		&text,
		&corrected,
		&isCorrected,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	cue := &Cue{
		ID:            id,
		EpisodeID:     episodeID,
		SegmentID:     segmentID.Int64,
		ChapterID:     chapterID.Int64,
		StartTime:     startTime,
		EndTime:       endTime,
		Speaker:       speaker.String,
		Text:          text,
		CorrectedText: corrected.String,
		IsCorrected:   isCorrected != 0,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		cue.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		cue.UpdatedAt = updated
	}
	return cue, nil
}
