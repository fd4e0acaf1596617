// Package workflow advances episodes through the processing state machine.
//
// Each workflow status has at most one registered stage handler. Resume
// performs a single step: run the handler for the current status, then move
// the episode to the next status with a compare-and-swap so concurrent
// invocations cannot double-advance. READY_FOR_REVIEW is a hard barrier that
// only the review sync crosses.
package workflow
