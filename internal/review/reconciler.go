package review

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/services"
	"podscribe/internal/store"
)

// ChangeRecord describes one edit merged back from a review document.
// Language is empty for transcript text edits.
type ChangeRecord struct {
	CueID    int64
	Language string
	Old      string
	New      string
}

// Result reports what reconciling one document did.
type Result struct {
	EpisodeID int64
	Path      string
	Changes   []ChangeRecord
	Warnings  []Warning
	Approved  bool
	// Advanced is true when the approval marker moved the episode from
	// READY_FOR_REVIEW to APPROVED during this reconciliation.
	Advanced bool
}

// Reconciler merges human edits from review documents back into the
// database. Anchors embedded in the document are the only key; a document
// can be reorganized freely without losing edits.
type Reconciler struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger
}

// NewReconciler constructs a review reconciler.
func NewReconciler(cfg *config.Config, st *store.Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Reconciler{cfg: cfg, store: st, logger: logger}
}

// Scan parses a document without touching the database: the anchors it
// declares and whether the reviewer set the approval marker.
func (r *Reconciler) Scan(path string) (*ParsedDocument, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read review document: %w", err)
	}
	return ParseDocument(content)
}

// Reconcile applies every diverging edit in the document and, when the
// approval marker is set on an episode sitting at READY_FOR_REVIEW, advances
// it to APPROVED. Running it again on the same document yields zero changes.
func (r *Reconciler) Reconcile(ctx context.Context, path string) (*Result, error) {
	doc, err := r.Scan(path)
	if err != nil {
		return nil, err
	}

	episode, err := r.store.GetEpisode(ctx, doc.Meta.EpisodeID)
	if err != nil {
		return nil, err
	}
	if episode == nil {
		return nil, services.Wrap(services.ErrNotFound, "review", "reconcile",
			fmt.Sprintf("document %s references unknown episode %d", filepath.Base(path), doc.Meta.EpisodeID), nil)
	}

	result := &Result{
		EpisodeID: episode.ID,
		Path:      path,
		Warnings:  doc.Warnings,
		Approved:  doc.Meta.Approved,
	}

	for _, entry := range doc.Entries {
		if err := r.reconcileEntry(ctx, entry, result); err != nil {
			return nil, err
		}
	}

	if doc.Meta.Approved && episode.WorkflowStatus == store.StatusReadyForReview {
		advanced, err := r.store.TransitionStatus(ctx, episode.ID,
			store.StatusReadyForReview, store.StatusApproved)
		if err != nil {
			return nil, err
		}
		result.Advanced = advanced
	}

	if len(result.Changes) > 0 || result.Advanced {
		r.logger.Info("review document reconciled",
			logging.Int64(logging.FieldEpisodeID, episode.ID),
			logging.Int("changes", len(result.Changes)),
			logging.Bool("advanced", result.Advanced),
		)
	}
	for _, warning := range result.Warnings {
		r.logger.Warn("review document warning",
			logging.Int64(logging.FieldEpisodeID, episode.ID),
			logging.Int64("cue_id", warning.CueID),
			logging.String("detail", warning.Message),
		)
	}

	return result, nil
}

func (r *Reconciler) reconcileEntry(ctx context.Context, entry Entry, result *Result) error {
	cue, err := r.store.GetCue(ctx, entry.CueID)
	if err != nil {
		return err
	}
	if cue == nil {
		result.Warnings = append(result.Warnings, Warning{
			CueID:   entry.CueID,
			Message: "anchor does not resolve to a cue",
		})
		return nil
	}

	if entry.Text != "" && entry.Text != cue.EffectiveText() {
		if err := r.store.SetCorrectedText(ctx, cue.ID, entry.Text); err != nil {
			return err
		}
		result.Changes = append(result.Changes, ChangeRecord{
			CueID: cue.ID,
			Old:   cue.EffectiveText(),
			New:   entry.Text,
		})
	}

	languages := make([]string, 0, len(entry.Translations))
	for lang := range entry.Translations {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	for _, lang := range languages {
		edited := entry.Translations[lang]
		translation, err := r.store.TranslationForCue(ctx, cue.ID, lang)
		if err != nil {
			return err
		}
		if translation == nil {
			result.Warnings = append(result.Warnings, Warning{
				CueID:   cue.ID,
				Message: fmt.Sprintf("no %s translation for anchored cue", lang),
			})
			continue
		}
		if edited == translation.CurrentText {
			continue
		}
		if err := r.store.ApplyEdit(ctx, translation.ID, edited); err != nil {
			return err
		}
		result.Changes = append(result.Changes, ChangeRecord{
			CueID:    cue.ID,
			Language: lang,
			Old:      translation.CurrentText,
			New:      edited,
		})
	}
	return nil
}

// Sync reconciles every review document in the review directory. Per-file
// failures are logged and skipped so one broken document cannot block the
// approvals in the rest.
func (r *Reconciler) Sync(ctx context.Context) ([]*Result, error) {
	pattern := filepath.Join(r.cfg.Paths.ReviewDir, "episode_*.md")
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("scan review dir: %w", err)
	}
	sort.Strings(paths)

	results := make([]*Result, 0, len(paths))
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := r.Reconcile(ctx, path)
		if err != nil {
			r.logger.Warn("review document skipped",
				logging.String("path", path),
				logging.Error(err),
			)
			continue
		}
		results = append(results, result)
	}
	return results, nil
}
