package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SourceHash derives the dedupe key for a source locator.
func SourceHash(sourceURL string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(sourceURL)))
	return hex.EncodeToString(sum[:])
}

// NewEpisode inserts an episode for a source URL. When an episode with the
// same source hash already exists it is returned instead of inserting a
// duplicate.
func (s *Store) NewEpisode(ctx context.Context, sourceURL, title, showName string) (*Episode, bool, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, false, errors.New("source url is empty")
	}

	hash := SourceHash(sourceURL)
	if existing, err := s.FindBySourceHash(ctx, hash); err != nil {
		return nil, false, err
	} else if existing != nil {
		return existing, false, nil
	}

	timestamp := nowStamp()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO episodes (
            title, show_name, source_url, source_hash, workflow_status, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullableString(title),
		nullableString(showName),
		sourceURL,
		hash,
		int(StatusInit),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert episode: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, false, fmt.Errorf("last insert id: %w", err)
	}

	episode, err := s.GetEpisode(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return episode, true, nil
}

// GetEpisode fetches an episode by identifier.
func (s *Store) GetEpisode(ctx context.Context, id int64) (*Episode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE id = ?`, id)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get episode: %w", err)
	}
	return episode, nil
}

// FindBySourceHash returns the episode matching a source hash, if any.
func (s *Store) FindBySourceHash(ctx context.Context, hash string) (*Episode, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+episodeColumns+` FROM episodes WHERE source_hash = ? LIMIT 1`,
		hash,
	)
	episode, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by source hash: %w", err)
	}
	return episode, nil
}

// ListEpisodes returns episodes filtered by workflow status (all when no
// status is provided), ordered by creation time.
func (s *Store) ListEpisodes(ctx context.Context, statuses ...WorkflowStatus) ([]*Episode, error) {
	baseQuery := `SELECT ` + episodeColumns + ` FROM episodes`
	orderClause := ` ORDER BY created_at`

	var (
		rows *sql.Rows
		err  error
	)
	if len(statuses) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(statuses))
		args := make([]any, len(statuses))
		for i, status := range statuses {
			args[i] = int(status)
		}
		rows, err = s.db.QueryContext(ctx, baseQuery+` WHERE workflow_status IN (`+placeholders+`)`+orderClause, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	var episodes []*Episode
	for rows.Next() {
		episode, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		episodes = append(episodes, episode)
	}
	return episodes, rows.Err()
}

// UpdateEpisode persists the mutable metadata fields of an episode. Workflow
// status is deliberately excluded; it only moves through TransitionStatus and
// the explicit reset operations.
func (s *Store) UpdateEpisode(ctx context.Context, episode *Episode) error {
	if episode == nil {
		return errors.New("episode is nil")
	}
	episode.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes
         SET title = ?, show_name = ?, audio_path = ?, duration_seconds = ?,
             language = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(episode.Title),
		nullableString(episode.ShowName),
		nullableString(episode.AudioPath),
		episode.DurationSeconds,
		episode.Language,
		nullableString(episode.ErrorMessage),
		episode.UpdatedAt.Format(time.RFC3339Nano),
		episode.ID,
	)
	if err != nil {
		return fmt.Errorf("update episode: %w", err)
	}
	return nil
}

// TransitionStatus advances an episode's workflow status with a
// compare-and-swap on the current value. It reports false when the episode was
// not in the expected status, which means another run already moved it.
func (s *Store) TransitionStatus(ctx context.Context, id int64, from, to WorkflowStatus) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes
         SET workflow_status = ?, error_message = NULL, updated_at = ?
         WHERE id = ? AND workflow_status = ?`,
		int(to),
		nowStamp(),
		id,
		int(from),
	)
	if err != nil {
		return false, fmt.Errorf("transition status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// SetEpisodeError records a stage failure without touching workflow status, so
// the episode stays resumable at the same stage.
func (s *Store) SetEpisodeError(ctx context.Context, id int64, message string) error {
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE episodes SET error_message = ?, updated_at = ? WHERE id = ?`,
		nullableString(message),
		nowStamp(),
		id,
	)
	if err != nil {
		return fmt.Errorf("set episode error: %w", err)
	}
	return nil
}

// ResetEpisode rewinds an episode to INIT and cascades away every derived
// artifact: segments, cues, translations, chapters, publications. The source
// locator and metadata survive so the pipeline can re-derive everything.
func (s *Store) ResetEpisode(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Cue and translation rows follow segments via FK cascade.
	statements := []string{
		`DELETE FROM segments WHERE episode_id = ?`,
		`DELETE FROM cues WHERE episode_id = ?`,
		`DELETE FROM chapters WHERE episode_id = ?`,
		`DELETE FROM publications WHERE episode_id = ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
			return fmt.Errorf("reset episode artifacts: %w", err)
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE episodes
         SET workflow_status = ?, audio_path = NULL, error_message = NULL, updated_at = ?
         WHERE id = ?`,
		int(StatusInit),
		nowStamp(),
		id,
	); err != nil {
		return fmt.Errorf("reset episode status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reset: %w", err)
	}
	return nil
}

// RemoveEpisode deletes an episode and everything derived from it.
func (s *Store) RemoveEpisode(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete episode: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const episodeColumns = "id, title, show_name, source_url, source_hash, audio_path, duration_seconds, language, workflow_status, error_message, created_at, updated_at"

func scanEpisode(scanner rowScanner) (*Episode, error) {
	var (
		id           int64
		title        sql.NullString
		showName     sql.NullString
		sourceURL    string
		sourceHash   string
		audioPath    sql.NullString
		duration     float64
		language     string
		statusInt    int
		errorMessage sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&showName,
		&sourceURL,
		&sourceHash,
		&audioPath,
		&duration,
		&language,
		&statusInt,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	episode := &Episode{
		ID:              id,
		Title:           title.String,
		ShowName:        showName.String,
		SourceURL:       sourceURL,
		SourceHash:      sourceHash,
		AudioPath:       audioPath.String,
		DurationSeconds: duration,
		Language:        language,
		WorkflowStatus:  WorkflowStatus(statusInt),
		ErrorMessage:    errorMessage.String,
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		episode.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		episode.UpdatedAt = updated
	}
	return episode, nil
}
