package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	configPath := filepath.Join(base, "config.toml")
	content := fmt.Sprintf(`[paths]
work_dir = %q
log_dir = %q
review_dir = %q

[llm]
api_key = "test-key"

[publishing]
export_dir = %q
`,
		filepath.Join(base, "work"),
		filepath.Join(base, "logs"),
		filepath.Join(base, "review"),
		filepath.Join(base, "export"),
	)
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return configPath
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAddRegistersEpisodeOnce(t *testing.T) {
	configPath := writeTestConfig(t)

	output, err := runCommand(t, "--config", configPath, "add", "https://example.com/feed/1", "--title", "Pilot")
	if err != nil {
		t.Fatalf("add: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Added episode 1") {
		t.Fatalf("output = %q", output)
	}

	output, err = runCommand(t, "--config", configPath, "add", "https://example.com/feed/1")
	if err != nil {
		t.Fatalf("re-add: %v\n%s", err, output)
	}
	if !strings.Contains(output, "already tracks this source") {
		t.Fatalf("duplicate add output = %q", output)
	}
}

func TestStatusListsEpisodes(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCommand(t, "--config", configPath, "add", "https://example.com/feed/2", "--title", "Second"); err != nil {
		t.Fatalf("add: %v", err)
	}

	output, err := runCommand(t, "--config", configPath, "status")
	if err != nil {
		t.Fatalf("status: %v\n%s", err, output)
	}
	if !strings.Contains(output, "Second") || !strings.Contains(output, "init") {
		t.Fatalf("status output = %q", output)
	}
}

func TestConfigInitWritesSample(t *testing.T) {
	target := filepath.Join(t.TempDir(), "podscribe", "config.toml")

	output, err := runCommand(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v\n%s", err, output)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	if _, err := runCommand(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected second init without --overwrite to fail")
	}
}

func TestParseEpisodeID(t *testing.T) {
	if _, err := parseEpisodeID("abc"); err == nil {
		t.Fatal("expected invalid id to be rejected")
	}
	if _, err := parseEpisodeID("0"); err == nil {
		t.Fatal("expected zero id to be rejected")
	}
	id, err := parseEpisodeID("12")
	if err != nil || id != 12 {
		t.Fatalf("parseEpisodeID(12) = %d, %v", id, err)
	}
}
