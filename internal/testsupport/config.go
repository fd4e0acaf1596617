package testsupport

import (
	"path/filepath"
	"testing"

	"podscribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(base, "work")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.ReviewDir = filepath.Join(base, "review")
	cfg.Publishing.ExportDir = filepath.Join(base, "export")
	cfg.LLM.APIKey = "test"

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithLanguages overrides the target translation languages.
func WithLanguages(languages ...string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Translation.Languages = languages
	}
}

// WithSegmentDuration overrides the virtual segment duration in seconds.
func WithSegmentDuration(seconds int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Workflow.SegmentDurationSeconds = seconds
	}
}
