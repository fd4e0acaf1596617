package media

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Slicer extracts time-range audio slices for transcription.
type Slicer interface {
	ExtractSlice(ctx context.Context, source string, startSec, endSec float64, dest string) error
}

// FFmpegSlicer cuts slices with ffmpeg. Output is mono 16kHz WAV, the format
// WhisperX expects.
type FFmpegSlicer struct {
	Binary        string
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewFFmpegSlicer constructs a slicer around the ffmpeg binary.
func NewFFmpegSlicer(binary string) *FFmpegSlicer {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpegSlicer{Binary: binary}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *FFmpegSlicer) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// ExtractSlice writes the [startSec, endSec) range of source to dest.
func (s *FFmpegSlicer) ExtractSlice(ctx context.Context, source string, startSec, endSec float64, dest string) error {
	if endSec <= startSec {
		return fmt.Errorf("extract slice: end %.2f not after start %.2f", endSec, startSec)
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("extract slice: ensure dest dir: %w", err)
	}

	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-ss", fmt.Sprintf("%.3f", startSec),
		"-t", fmt.Sprintf("%.3f", endSec-startSec),
		"-i", source,
		"-vn",
		"-sn",
		"-dn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		dest,
	}
	if s.commandRunner != nil {
		return s.commandRunner(ctx, s.Binary, args...)
	}
	cmd := exec.CommandContext(ctx, s.Binary, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("ffmpeg extract: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}

// SlicePath returns the canonical slice file location for a segment start.
func SlicePath(sliceDir string, episodeID int64, startSec float64) string {
	return filepath.Join(sliceDir, fmt.Sprintf("episode_%d_%06.0f.wav", episodeID, startSec))
}
