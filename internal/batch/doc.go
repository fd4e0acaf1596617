// Package batch implements the resumable batch execution engine shared by the
// transcription and translation stages.
//
// A run partitions unfinished work units into consecutive batches, dispatches
// each batch to an external call, and persists per-batch outcomes through
// caller-supplied callbacks. Failures are classified as retryable (the run
// continues with the next batch) or fatal (the run halts), so one bad unit
// never blocks unrelated work while a dead credential stops the run at once.
package batch
