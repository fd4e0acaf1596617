package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"podscribe/internal/progress"
)

// EnsureTranslations creates one pending translation row per (cue, language)
// for an episode. Existing rows, including completed ones from a previous
// run, are left untouched. Returns the number of rows created.
func (s *Store) EnsureTranslations(ctx context.Context, episodeID int64, language string) (int, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO translations (cue_id, language, status, created_at, updated_at)
         SELECT id, ?, ?, ?, ?
         FROM cues WHERE episode_id = ?
         ON CONFLICT (cue_id, language) DO NOTHING`,
		language,
		UnitPending,
		nowStamp(),
		nowStamp(),
		episodeID,
	)
	if err != nil {
		return 0, fmt.Errorf("ensure translations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return int(affected), nil
}

// PendingTranslations returns the unfinished translation units for one
// language, each paired with its cue, ordered by cue start time.
func (s *Store) PendingTranslations(ctx context.Context, episodeID int64, language string) ([]*TranslationUnit, error) {
	return s.queryTranslationUnits(ctx,
		`SELECT `+translationColumns+`, `+prefixedCueColumns+`
         FROM translations t JOIN cues c ON c.id = t.cue_id
         WHERE c.episode_id = ? AND t.language = ? AND t.status IN (?, ?)
         ORDER BY c.start_time`,
		episodeID, language, UnitPending, UnitFailed,
	)
}

// ResetStuckTranslations returns translation units abandoned in processing
// back to pending, across every language of the episode. See
// ResetStuckSegments for why.
func (s *Store) ResetStuckTranslations(ctx context.Context, episodeID int64) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE translations SET status = ?, updated_at = ?
         WHERE status = ? AND cue_id IN (SELECT id FROM cues WHERE episode_id = ?)`,
		UnitPending, nowStamp(), UnitProcessing, episodeID,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck translations: %w", err)
	}
	return res.RowsAffected()
}

// TranslationsForEpisode returns every translation unit for one language
// ordered by cue start time, for rendering and reconciliation.
func (s *Store) TranslationsForEpisode(ctx context.Context, episodeID int64, language string) ([]*TranslationUnit, error) {
	return s.queryTranslationUnits(ctx,
		`SELECT `+translationColumns+`, `+prefixedCueColumns+`
         FROM translations t JOIN cues c ON c.id = t.cue_id
         WHERE c.episode_id = ? AND t.language = ?
         ORDER BY c.start_time`,
		episodeID, language,
	)
}

// TranslationForCue fetches the translation record for one cue and language.
func (s *Store) TranslationForCue(ctx context.Context, cueID int64, language string) (*Translation, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+translationColumns+` FROM translations t WHERE t.cue_id = ? AND t.language = ?`,
		cueID, language,
	)
	translation, err := scanTranslation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("translation for cue: %w", err)
	}
	return translation, nil
}

// MarkTranslationsProcessing flips a batch of translations to processing.
func (s *Store) MarkTranslationsProcessing(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{UnitProcessing, nowStamp()}, idArgs(ids)...)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE translations SET status = ?, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(ids))+`) AND status != 'completed'`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("mark translations processing: %w", err)
	}
	return nil
}

// CompleteTranslation records a generated translation. The original text is
// write-once: COALESCE keeps the first successful generation even if the unit
// is somehow completed again, and the current text only follows the new value
// while no human edit has landed. A unit already completed is never touched.
func (s *Store) CompleteTranslation(ctx context.Context, id int64, text string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE translations
         SET original_text = COALESCE(original_text, ?),
             current_text = ?,
             status = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND status != 'completed'`,
		text,
		text,
		UnitCompleted,
		nowStamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("complete translation: %w", err)
	}
	return nil
}

// FailTranslations marks a batch failed, recording the error and bumping
// retry counts. Completed units are never downgraded.
func (s *Store) FailTranslations(ctx context.Context, ids []int64, message string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{UnitFailed, nullableString(message), nowStamp()}, idArgs(ids)...)
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE translations
         SET status = ?, error_message = ?, retry_count = retry_count + 1, updated_at = ?
         WHERE id IN (`+makePlaceholders(len(ids))+`) AND status != 'completed'`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("fail translations: %w", err)
	}
	return nil
}

// ApplyEdit writes a human edit into the live translation text. The edited
// flag is set and never cleared again, and the original text is untouched, so
// the first generated value survives any number of later edits.
func (s *Store) ApplyEdit(ctx context.Context, id int64, text string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE translations
         SET current_text = ?, is_edited = 1, updated_at = ?
         WHERE id = ?`,
		text,
		nowStamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("apply edit: %w", err)
	}
	return nil
}

// TranslationCounts tallies an episode's translation units by status for one
// language, or across all languages when language is empty.
func (s *Store) TranslationCounts(ctx context.Context, episodeID int64, language string) (progress.Counts, error) {
	query := `SELECT t.status, COUNT(1)
         FROM translations t JOIN cues c ON c.id = t.cue_id
         WHERE c.episode_id = ?`
	args := []any{episodeID}
	if language != "" {
		query += ` AND t.language = ?`
		args = append(args, language)
	}
	query += ` GROUP BY t.status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return progress.Counts{}, fmt.Errorf("translation counts: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

func (s *Store) queryTranslationUnits(ctx context.Context, query string, args ...any) ([]*TranslationUnit, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query translation units: %w", err)
	}
	defer rows.Close()

	var units []*TranslationUnit
	for rows.Next() {
		unit, err := scanTranslationUnit(rows)
		if err != nil {
			return nil, err
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

const translationColumns = "t.id, t.cue_id, t.language, t.original_text, t.current_text, t.is_edited, t.status, t.error_message, t.retry_count, t.created_at, t.updated_at"

const prefixedCueColumns = "c.id, c.episode_id, c.segment_id, c.chapter_id, c.start_time, c.end_time, c.speaker, c.text, c.corrected_text, c.is_corrected, c.created_at, c.updated_at"

func scanTranslation(scanner rowScanner) (*Translation, error) {
	var (
		id           int64
		cueID        int64
		language     string
		original     sql.NullString
		current      sql.NullString
		isEdited     int
		status       string
		errorMessage sql.NullString
		retryCount   int
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&cueID,
		&language,
		&original,
		&current,
		&isEdited,
		&status,
		&errorMessage,
		&retryCount,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	translation := &Translation{
		ID:           id,
		CueID:        cueID,
		Language:     language,
		OriginalText: original.String,
		CurrentText:  current.String,
		IsEdited:     isEdited != 0,
		Status:       UnitStatus(status),
		ErrorMessage: errorMessage.String,
		RetryCount:   retryCount,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		translation.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		translation.UpdatedAt = updated
	}
	return translation, nil
}

func scanTranslationUnit(scanner rowScanner) (*TranslationUnit, error) {
	var (
		tID          int64
		cueID        int64
		language     string
		original     sql.NullString
		current      sql.NullString
		isEdited     int
		tStatus      string
		tError       sql.NullString
		retryCount   int
		tCreatedRaw  sql.NullString
		tUpdatedRaw  sql.NullString
		cID          int64
		episodeID    int64
		segmentID    sql.NullInt64
		chapterID    sql.NullInt64
		startTime    float64
		endTime      float64
		speaker      sql.NullString
		text         string
		corrected    sql.NullString
		isCorrected  int
		cCreatedRaw  sql.NullString
		cUpdatedRaw  sql.NullString
	)
	if err := scanner.Scan(
		&tID, &cueID, &language, &original, &current, &isEdited,
		&tStatus, &tError, &retryCount, &tCreatedRaw, &tUpdatedRaw,
		&cID, &episodeID, &segmentID, &chapterID, &startTime, &endTime,
		&speaker, &text, &corrected, &isCorrected, &cCreatedRaw, &cUpdatedRaw,
	); err != nil {
		return nil, err
	}

	unit := &TranslationUnit{
		Translation: Translation{
			ID:           tID,
			CueID:        cueID,
			Language:     language,
			OriginalText: original.String,
			CurrentText:  current.String,
			IsEdited:     isEdited != 0,
			Status:       UnitStatus(tStatus),
			ErrorMessage: tError.String,
			RetryCount:   retryCount,
		},
		Cue: Cue{
			ID:            cID,
			EpisodeID:     episodeID,
			SegmentID:     segmentID.Int64,
			ChapterID:     chapterID.Int64,
			StartTime:     startTime,
			EndTime:       endTime,
			Speaker:       speaker.String,
			Text:          text,
			CorrectedText: corrected.String,
			IsCorrected:   isCorrected != 0,
		},
	}
	if created, err := parseTimeString(tCreatedRaw.String); err == nil {
		unit.Translation.CreatedAt = created
	}
	if updated, err := parseTimeString(tUpdatedRaw.String); err == nil {
		unit.Translation.UpdatedAt = updated
	}
	if created, err := parseTimeString(cCreatedRaw.String); err == nil {
		unit.Cue.CreatedAt = created
	}
	if updated, err := parseTimeString(cUpdatedRaw.String); err == nil {
		unit.Cue.UpdatedAt = updated
	}
	return unit, nil
}
