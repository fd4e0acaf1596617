package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeDownload(); err != nil {
		return err
	}
	if err := c.normalizeWhisperX(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeWorkflow()
	c.normalizeTranslation()
	if err := c.normalizePublishing(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.WorkDir, err = expandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.ReviewDir, err = expandPath(c.Paths.ReviewDir); err != nil {
		return fmt.Errorf("paths.review_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDownload() error {
	c.Download.Binary = strings.TrimSpace(c.Download.Binary)
	if c.Download.Binary == "" {
		c.Download.Binary = defaultDownloadBinary
	}
	c.Download.AudioFormat = strings.TrimSpace(c.Download.AudioFormat)
	if c.Download.AudioFormat == "" {
		c.Download.AudioFormat = defaultDownloadAudioFormat
	}
	if c.Download.TimeoutSeconds <= 0 {
		c.Download.TimeoutSeconds = defaultDownloadTimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeWhisperX() error {
	c.WhisperX.Model = strings.TrimSpace(c.WhisperX.Model)
	if c.WhisperX.Model == "" {
		c.WhisperX.Model = defaultWhisperXModel
	}
	c.WhisperX.VADMethod = strings.TrimSpace(c.WhisperX.VADMethod)
	if c.WhisperX.VADMethod == "" {
		c.WhisperX.VADMethod = defaultWhisperXVADMethod
	}
	if strings.TrimSpace(c.WhisperX.CacheDir) == "" {
		c.WhisperX.CacheDir = defaultWhisperXCacheDir
	}
	var err error
	if c.WhisperX.CacheDir, err = expandPath(c.WhisperX.CacheDir); err != nil {
		return fmt.Errorf("whisperx.cache_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("PODSCRIBE_LLM_API_KEY"); ok {
			c.LLM.APIKey = value
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeoutSeconds
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.SegmentDurationSeconds <= 0 {
		c.Workflow.SegmentDurationSeconds = defaultSegmentDurationSeconds
	}
	if c.Workflow.ProofreadBatchSize <= 0 {
		c.Workflow.ProofreadBatchSize = defaultProofreadBatchSize
	}
	if c.Workflow.TranslationBatchSize <= 0 {
		c.Workflow.TranslationBatchSize = defaultTranslationBatchSize
	}
	if c.Workflow.MaxUnitRetries < 0 {
		c.Workflow.MaxUnitRetries = defaultMaxUnitRetries
	}
	if c.Workflow.ValidationThreshold <= 0 {
		c.Workflow.ValidationThreshold = defaultValidationThreshold
	}
}

func (c *Config) normalizeTranslation() {
	languages := make([]string, 0, len(c.Translation.Languages))
	seen := make(map[string]struct{}, len(c.Translation.Languages))
	for _, lang := range c.Translation.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		if lang == "" {
			continue
		}
		if _, ok := seen[lang]; ok {
			continue
		}
		seen[lang] = struct{}{}
		languages = append(languages, lang)
	}
	if len(languages) == 0 {
		languages = []string{"zh"}
	}
	c.Translation.Languages = languages
}

func (c *Config) normalizePublishing() error {
	c.Publishing.WebhookURL = strings.TrimSpace(c.Publishing.WebhookURL)
	if c.Publishing.WebhookTimeoutSeconds <= 0 {
		c.Publishing.WebhookTimeoutSeconds = defaultWebhookTimeoutSeconds
	}
	if strings.TrimSpace(c.Publishing.ExportDir) == "" {
		return nil
	}
	var err error
	if c.Publishing.ExportDir, err = expandPath(c.Publishing.ExportDir); err != nil {
		return fmt.Errorf("publishing.export_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
