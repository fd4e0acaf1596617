package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	WorkDir   string `toml:"work_dir"`
	LogDir    string `toml:"log_dir"`
	ReviewDir string `toml:"review_dir"`
}

// Download contains configuration for the media download collaborator.
type Download struct {
	Binary         string `toml:"binary"`
	AudioFormat    string `toml:"audio_format"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// WhisperX contains configuration for the transcription collaborator.
type WhisperX struct {
	Model       string `toml:"model"`
	CUDAEnabled bool   `toml:"cuda_enabled"`
	VADMethod   string `toml:"vad_method"`
	Diarize     bool   `toml:"diarize"`
	CacheDir    string `toml:"cache_dir"`
}

// LLM contains shared LLM connection settings used by the text stages.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Workflow contains stage sizing and retry policy.
type Workflow struct {
	SegmentDurationSeconds int `toml:"segment_duration_seconds"`
	ProofreadBatchSize     int `toml:"proofread_batch_size"`
	TranslationBatchSize   int `toml:"translation_batch_size"`
	MaxUnitRetries         int `toml:"max_unit_retries"`
	ValidationThreshold    int `toml:"validation_failure_threshold"`
}

// Translation contains target language configuration.
type Translation struct {
	Languages []string `toml:"languages"`
}

// Publishing contains the per-target delivery configuration.
type Publishing struct {
	ExportDir             string `toml:"export_dir"`
	WebhookURL            string `toml:"webhook_url"`
	WebhookTimeoutSeconds int    `toml:"webhook_timeout_seconds"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for podscribe.
//
// Configuration sections by subsystem:
//   - Paths: working, log, and review directories
//   - Download: yt-dlp invocation settings
//   - WhisperX: transcription model settings
//   - LLM: shared connection settings for proofreading, chaptering, translation
//   - Workflow: segment sizing, batch sizes, retry policy
//   - Translation: target languages
//   - Publishing: export directory and webhook targets
//   - Notifications: ntfy push notification settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Download      Download      `toml:"download"`
	WhisperX      WhisperX      `toml:"whisperx"`
	LLM           LLM           `toml:"llm"`
	Workflow      Workflow      `toml:"workflow"`
	Translation   Translation   `toml:"translation"`
	Publishing    Publishing    `toml:"publishing"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/podscribe/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = os.Getenv("PODSCRIBE_CONFIG")
	}
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("podscribe.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for pipeline operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkDir, c.Paths.LogDir, c.Paths.ReviewDir}
	if strings.TrimSpace(c.Publishing.ExportDir) != "" {
		dirs = append(dirs, c.Publishing.ExportDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SliceDir returns the directory used for extracted audio slices.
func (c *Config) SliceDir() string {
	return filepath.Join(c.Paths.WorkDir, "slices")
}

// AudioDir returns the directory used for downloaded episode audio.
func (c *Config) AudioDir() string {
	return filepath.Join(c.Paths.WorkDir, "audio")
}

// FFmpegBinary returns the ffmpeg executable name used for slice extraction.
func (c *Config) FFmpegBinary() string {
	return "ffmpeg"
}

// WriteSample writes the sample configuration to the supplied path.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}
