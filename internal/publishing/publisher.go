package publishing

import (
	"context"

	"podscribe/internal/rendering"
)

// Statuses recorded per (episode, target) delivery attempt.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Publisher delivers an approved episode to one target. Targets are
// independent: one failing never blocks the others, and a succeeded target
// is skipped on republish.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, doc rendering.Document) (detail string, err error)
}
