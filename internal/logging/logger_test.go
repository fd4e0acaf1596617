package logging_test

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"podscribe/internal/logging"
	"podscribe/internal/services"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewWritesToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{path},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	logger.Info("hello", logging.String("episode_id", "abc"))

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "episode_id") {
		t.Fatalf("expected episode_id attribute in output, got %q", string(data))
	}
}

func TestContextFields(t *testing.T) {
	ctx := services.WithEpisodeID(context.Background(), 1)
	ctx = services.WithStage(ctx, "transcription")

	fields := logging.ContextFields(ctx)
	got := map[string]string{}
	for _, attr := range fields {
		got[attr.Key] = attr.Value.String()
	}
	if got[logging.FieldEpisodeID] != "1" {
		t.Fatalf("episode field = %q, want 1", got[logging.FieldEpisodeID])
	}
	if got[logging.FieldStage] != "transcription" {
		t.Fatalf("stage field = %q, want transcription", got[logging.FieldStage])
	}
}

func TestNoopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), slog.LevelError) {
		t.Fatal("noop logger should report disabled at every level")
	}
}
