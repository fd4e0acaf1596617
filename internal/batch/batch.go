package batch

import (
	"context"
	"fmt"
	"log/slog"

	"podscribe/internal/logging"
)

// Class categorizes a batch failure for the continue-or-halt decision.
type Class int

const (
	// ClassRetryable marks failures worth retrying on a later run; the
	// processor records the failure and continues with the next batch.
	ClassRetryable Class = iota
	// ClassFatal marks failures that poison the whole run (bad credentials,
	// exhausted quota); the processor halts immediately.
	ClassFatal
)

// Options configures a single processor run over one kind of work unit.
//
// Execute performs the external call for a batch and commits its results;
// it reports how many units it completed. RecordFailure persists the failure
// for every unit in the batch (error message, retry counter) so a later run
// can select exactly the unfinished work again.
type Options[U any] struct {
	// Size is the number of units dispatched per external call.
	Size int
	// Done reports whether a unit is already completed and must be skipped.
	// Optional; callers normally select only unfinished units to begin with.
	Done func(U) bool
	// MarkProcessing persists the in-flight status for a batch before the
	// external call runs. Optional.
	MarkProcessing func(ctx context.Context, units []U) error
	// Execute performs the external call and commits per-unit results.
	Execute func(ctx context.Context, units []U) (completed int, err error)
	// RecordFailure persists a batch failure for each unit.
	RecordFailure func(ctx context.Context, units []U, callErr error) error
	// Classify decides whether a failure halts the run. Optional; when nil
	// every failure is treated as retryable.
	Classify func(error) Class
	Logger   *slog.Logger
}

// Summary reports what a processor run accomplished.
type Summary struct {
	Batches   int
	Completed int
	Failed    int
	Skipped   int
	// Halted is true when a fatal failure or cancellation stopped the run
	// before every batch was attempted.
	Halted bool
	// LastErr is the most recent batch failure, fatal or not.
	LastErr error
}

// Run executes the external operation over units in consecutive batches,
// preserving input order. Units are expected to be pre-filtered to the
// unfinished set, so calling Run again after a partial failure retries only
// what is left; together with per-batch commits this makes re-invocation
// idempotent and convergent.
//
// Cancellation is honoured between batches, never mid-commit.
func Run[U any](ctx context.Context, units []U, opts Options[U]) (Summary, error) {
	var summary Summary
	if opts.Execute == nil {
		return summary, fmt.Errorf("batch: execute callback is required")
	}
	size := opts.Size
	if size <= 0 {
		size = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	for start := 0; start < len(units); start += size {
		if err := ctx.Err(); err != nil {
			summary.Halted = true
			return summary, err
		}

		end := start + size
		if end > len(units) {
			end = len(units)
		}
		full := units[start:end]

		pending := full
		if opts.Done != nil {
			pending = make([]U, 0, len(full))
			for _, unit := range full {
				if opts.Done(unit) {
					summary.Skipped++
					continue
				}
				pending = append(pending, unit)
			}
		}
		if len(pending) == 0 {
			continue
		}
		summary.Batches++

		if opts.MarkProcessing != nil {
			if err := opts.MarkProcessing(ctx, pending); err != nil {
				summary.Halted = true
				return summary, fmt.Errorf("batch: mark processing: %w", err)
			}
		}

		completed, callErr := opts.Execute(ctx, pending)
		summary.Completed += completed
		if callErr == nil {
			continue
		}
		summary.LastErr = callErr
		summary.Failed += len(pending)

		if opts.RecordFailure != nil {
			if err := opts.RecordFailure(ctx, pending, callErr); err != nil {
				summary.Halted = true
				return summary, fmt.Errorf("batch: record failure: %w", err)
			}
		}

		class := ClassRetryable
		if opts.Classify != nil {
			class = opts.Classify(callErr)
		}
		if class == ClassFatal {
			logger.Error("batch run halted",
				logging.Int("batch", summary.Batches),
				logging.Int("units", len(pending)),
				logging.Error(callErr),
			)
			summary.Halted = true
			return summary, callErr
		}
		logger.Warn("batch failed; continuing",
			logging.Int("batch", summary.Batches),
			logging.Int("units", len(pending)),
			logging.Error(callErr),
		)
	}

	return summary, nil
}
