package stage

import (
	"context"

	"podscribe/internal/store"
)

// Handler describes the contract the workflow manager needs from each stage.
type Handler interface {
	Prepare(context.Context, *store.Episode) error
	Execute(context.Context, *store.Episode) error
	HealthCheck(context.Context) Health
}
