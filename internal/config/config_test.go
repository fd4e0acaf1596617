package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podscribe/internal/config"
)

func TestLoadDefaultsAndExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("PODSCRIBE_CONFIG", "")
	t.Setenv("PODSCRIBE_LLM_API_KEY", "env-key")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWork := filepath.Join(tempHome, ".local", "share", "podscribe", "work")
	if cfg.Paths.WorkDir != wantWork {
		t.Fatalf("unexpected work dir: got %q want %q", cfg.Paths.WorkDir, wantWork)
	}
	if cfg.LLM.APIKey != "env-key" {
		t.Fatalf("expected LLM key from env, got %q", cfg.LLM.APIKey)
	}
	if cfg.LLM.BaseURL != config.Default().LLM.BaseURL {
		t.Fatalf("unexpected LLM base url: %q", cfg.LLM.BaseURL)
	}
	if cfg.WhisperX.VADMethod != "silero" {
		t.Fatalf("expected WhisperX VAD default to silero, got %q", cfg.WhisperX.VADMethod)
	}
	if cfg.Workflow.SegmentDurationSeconds != 600 {
		t.Fatalf("unexpected segment duration: %d", cfg.Workflow.SegmentDurationSeconds)
	}
	if len(cfg.Translation.Languages) != 1 || cfg.Translation.Languages[0] != "zh" {
		t.Fatalf("unexpected default languages: %v", cfg.Translation.Languages)
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "podscribe.toml")
	content := strings.Join([]string{
		"[paths]",
		`work_dir = "` + filepath.Join(dir, "work") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		`review_dir = "` + filepath.Join(dir, "review") + `"`,
		"[translation]",
		`languages = ["ZH", "ja", "zh", ""]`,
		"[workflow]",
		"translation_batch_size = 25",
		"",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be found, got %q exists=%v", path, resolved, exists)
	}
	if got := cfg.Translation.Languages; len(got) != 2 || got[0] != "zh" || got[1] != "ja" {
		t.Fatalf("expected deduplicated lowercase languages, got %v", got)
	}
	if cfg.Workflow.TranslationBatchSize != 25 {
		t.Fatalf("unexpected translation batch size: %d", cfg.Workflow.TranslationBatchSize)
	}
	if cfg.Workflow.ProofreadBatchSize != config.Default().Workflow.ProofreadBatchSize {
		t.Fatalf("expected default proofread batch size, got %d", cfg.Workflow.ProofreadBatchSize)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"short segment duration", func(c *config.Config) { c.Workflow.SegmentDurationSeconds = 5 }},
		{"no languages", func(c *config.Config) { c.Translation.Languages = nil }},
		{"bad webhook url", func(c *config.Config) { c.Publishing.WebhookURL = "not a url" }},
		{"bad log format", func(c *config.Config) { c.Logging.Format = "xml" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsureDirectoriesCreatesTree(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.WorkDir = filepath.Join(dir, "work")
	cfg.Paths.LogDir = filepath.Join(dir, "logs")
	cfg.Paths.ReviewDir = filepath.Join(dir, "review")
	cfg.Publishing.ExportDir = filepath.Join(dir, "published")

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	for _, p := range []string{cfg.Paths.WorkDir, cfg.Paths.LogDir, cfg.Paths.ReviewDir, cfg.Publishing.ExportDir} {
		info, err := os.Stat(p)
		if err != nil || !info.IsDir() {
			t.Fatalf("expected directory %q: %v", p, err)
		}
	}
}
