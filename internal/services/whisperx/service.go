package whisperx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Cue is one transcribed line with timing relative to the start of the
// transcribed slice. Callers convert to absolute offsets before storage.
type Cue struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
	Text    string  `json:"text"`
}

// Transcriber is the transcription collaborator boundary consumed by the
// transcription stage; implementations must be safe to call repeatedly with
// the same slice.
type Transcriber interface {
	TranscribeSlice(ctx context.Context, slicePath, workDir, language string) ([]Cue, error)
}

// Service runs WhisperX via uvx against extracted audio slices.
type Service struct {
	cfg           Config
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config) *Service {
	return &Service{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

func (s *Service) model() string {
	if s.cfg.Model != "" {
		return s.cfg.Model
	}
	return DefaultModel
}

// TranscribeSlice transcribes one extracted audio slice and returns its cues
// with slice-relative timing. workDir receives the WhisperX output files.
func (s *Service) TranscribeSlice(ctx context.Context, slicePath, workDir, language string) ([]Cue, error) {
	if slicePath == "" {
		return nil, fmt.Errorf("transcribe: slice path required")
	}
	if workDir == "" {
		workDir = filepath.Dir(slicePath)
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, fmt.Errorf("transcribe: ensure output dir: %w", err)
	}

	args := s.buildArgs(slicePath, workDir, language)
	if err := s.run(ctx, UVXCommand, args...); err != nil {
		return nil, fmt.Errorf("whisperx: %w", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(slicePath), filepath.Ext(slicePath))
	jsonPath := filepath.Join(workDir, baseName+".json")
	cues, err := LoadCues(jsonPath)
	if err != nil {
		return nil, fmt.Errorf("whisperx: load output: %w", err)
	}
	return cues, nil
}

func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	env := os.Environ()
	// Torch 2.6 changed torch.load default to weights_only=true, breaking
	// WhisperX/pyannote checkpoint loading. Force legacy behavior.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		env = append(env, "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if s.cfg.CacheDir != "" {
		env = append(env, "HF_HOME="+s.cfg.CacheDir)
	}
	cmd.Env = env

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := make([]string, 0, 24)

	if s.cfg.CUDAEnabled {
		args = append(args,
			"--index-url", CUDAIndexURL,
			"--extra-index-url", PypiIndexURL,
		)
	} else {
		args = append(args, "--index-url", PypiIndexURL)
	}

	args = append(args,
		"whisperx",
		source,
		"--model", s.model(),
		"--batch_size", BatchSize,
		"--output_dir", outputDir,
		"--output_format", OutputFormat,
		"--segment_resolution", SegmentResolution,
		"--chunk_size", ChunkSize,
	)

	vadMethod := s.cfg.VADMethod
	if vadMethod == "" {
		vadMethod = VADMethodSilero
	}
	args = append(args, "--vad_method", vadMethod)

	if s.cfg.Diarize {
		args = append(args, "--diarize")
	}
	if s.cfg.HFToken != "" && (s.cfg.Diarize || vadMethod == VADMethodPyannote) {
		args = append(args, "--hf_token", s.cfg.HFToken)
	}

	if lang := strings.TrimSpace(language); lang != "" {
		args = append(args, "--language", lang)
	}

	if s.cfg.CUDAEnabled {
		args = append(args, "--device", CUDADevice)
	} else {
		args = append(args, "--device", CPUDevice, "--compute_type", CPUComputeType)
	}

	return args
}

type whisperXSegment struct {
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Speaker string  `json:"speaker"`
}

type whisperXPayload struct {
	Segments []whisperXSegment `json:"segments"`
}

// LoadCues reads a WhisperX JSON output file into cues. Empty lines are
// dropped; segments lacking a speaker label keep an empty speaker.
func LoadCues(jsonPath string) ([]Cue, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, err
	}
	var payload whisperXPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse whisperx json: %w", err)
	}

	cues := make([]Cue, 0, len(payload.Segments))
	for _, segment := range payload.Segments {
		text := strings.TrimSpace(segment.Text)
		if text == "" {
			continue
		}
		cues = append(cues, Cue{
			Start:   segment.Start,
			End:     segment.End,
			Speaker: strings.TrimSpace(segment.Speaker),
			Text:    text,
		})
	}
	return cues, nil
}
