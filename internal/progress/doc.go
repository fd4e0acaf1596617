// Package progress derives coarse per-episode progress from the statuses of
// fine-grained work units. Aggregates are computed on demand from counts and
// never stored, so they cannot drift from the underlying unit rows.
package progress
