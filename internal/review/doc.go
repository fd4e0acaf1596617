// Package review merges human edits from rendered Markdown documents back
// into the database. Every editable section carries a cue:// anchor with the
// durable record id; anchors, not positions, drive reconciliation, and the
// frontmatter approval marker is the sole path from READY_FOR_REVIEW to
// APPROVED.
package review
