package workflow

import (
	"context"
	"sort"

	"podscribe/internal/stage"
)

// HealthChecks probes every registered stage handler and returns the results
// ordered by stage name. Used by the status command before long runs.
func (m *Manager) HealthChecks(ctx context.Context) []stage.Health {
	results := make([]stage.Health, 0, len(m.handlers))
	for _, registered := range m.handlers {
		results = append(results, registered.handler.HealthCheck(ctx))
	}
	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})
	return results
}

// Ready reports whether every registered stage passed its health check.
func Ready(results []stage.Health) bool {
	for _, result := range results {
		if !result.Ready {
			return false
		}
	}
	return true
}
