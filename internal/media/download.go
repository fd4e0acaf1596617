package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DownloadResult describes a fetched episode audio file.
type DownloadResult struct {
	LocalPath       string
	DurationSeconds float64
	Title           string
}

// Downloader is the download collaborator boundary. Failures are reported to
// the caller, not retried here.
type Downloader interface {
	Download(ctx context.Context, sourceURL, destDir string) (DownloadResult, error)
}

// YtDlpDownloader fetches episode audio with yt-dlp.
type YtDlpDownloader struct {
	Binary        string
	AudioFormat   string
	commandOutput func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewYtDlpDownloader constructs a downloader around the yt-dlp binary.
func NewYtDlpDownloader(binary, audioFormat string) *YtDlpDownloader {
	if strings.TrimSpace(binary) == "" {
		binary = "yt-dlp"
	}
	if strings.TrimSpace(audioFormat) == "" {
		audioFormat = "mp3"
	}
	return &YtDlpDownloader{Binary: binary, AudioFormat: audioFormat}
}

// WithCommandOutput sets a custom command runner (for testing).
func (d *YtDlpDownloader) WithCommandOutput(runner func(ctx context.Context, name string, args ...string) ([]byte, error)) {
	d.commandOutput = runner
}

type ytDlpInfo struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Duration float64 `json:"duration"`
	Ext      string  `json:"ext"`
}

// Download fetches the audio for sourceURL into destDir and returns the local
// path, duration, and title reported by yt-dlp.
func (d *YtDlpDownloader) Download(ctx context.Context, sourceURL, destDir string) (DownloadResult, error) {
	var result DownloadResult
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return result, errors.New("download: source url required")
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return result, fmt.Errorf("download: ensure dest dir: %w", err)
	}

	outputTemplate := filepath.Join(destDir, "%(id)s.%(ext)s")
	args := []string{
		"--no-playlist",
		"--extract-audio",
		"--audio-format", d.AudioFormat,
		"--output", outputTemplate,
		"--print-json",
		"--no-progress",
		sourceURL,
	}

	output, err := d.runOutput(ctx, d.Binary, args...)
	if err != nil {
		return result, fmt.Errorf("yt-dlp: %w", err)
	}

	// --print-json emits one JSON object on the last non-empty line.
	var info ytDlpInfo
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &info); err == nil {
			break
		}
	}
	if info.ID == "" {
		return result, fmt.Errorf("yt-dlp: no metadata in output: %s", summarizeOutput(output))
	}

	localPath := filepath.Join(destDir, info.ID+"."+d.AudioFormat)
	if _, err := os.Stat(localPath); err != nil {
		// Extraction may keep the original extension when it already matches.
		alt := filepath.Join(destDir, info.ID+"."+info.Ext)
		if _, altErr := os.Stat(alt); altErr != nil {
			return result, fmt.Errorf("yt-dlp: downloaded file missing at %s: %w", localPath, err)
		}
		localPath = alt
	}

	result.LocalPath = localPath
	result.DurationSeconds = info.Duration
	result.Title = strings.TrimSpace(info.Title)
	return result, nil
}

func (d *YtDlpDownloader) runOutput(ctx context.Context, name string, args ...string) ([]byte, error) {
	if d.commandOutput != nil {
		return d.commandOutput(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, err
	}
	return output, nil
}

func summarizeOutput(output []byte) string {
	text := strings.TrimSpace(string(output))
	if len(text) > 200 {
		text = text[:200] + "..."
	}
	if text == "" {
		return "<empty>"
	}
	return text
}
