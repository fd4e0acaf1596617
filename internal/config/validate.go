package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if err := c.validatePublishing(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if strings.TrimSpace(c.Paths.ReviewDir) == "" {
		return errors.New("paths.review_dir must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.SegmentDurationSeconds < 30 {
		return errors.New("workflow.segment_duration_seconds must be at least 30")
	}
	if c.Workflow.TranslationBatchSize > 500 {
		return errors.New("workflow.translation_batch_size must be 500 or less")
	}
	return nil
}

func (c *Config) validateTranslation() error {
	if len(c.Translation.Languages) == 0 {
		return errors.New("translation.languages must list at least one language code")
	}
	for _, lang := range c.Translation.Languages {
		if len(lang) < 2 || len(lang) > 10 {
			return fmt.Errorf("translation.languages entry %q is not a usable language code", lang)
		}
	}
	return nil
}

func (c *Config) validatePublishing() error {
	if c.Publishing.WebhookURL == "" {
		return nil
	}
	parsed, err := url.Parse(c.Publishing.WebhookURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("publishing.webhook_url %q is not a valid URL", c.Publishing.WebhookURL)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
