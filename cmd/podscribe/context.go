package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"podscribe/internal/chaptering"
	"podscribe/internal/config"
	"podscribe/internal/downloading"
	"podscribe/internal/logging"
	"podscribe/internal/notifications"
	"podscribe/internal/proofreading"
	"podscribe/internal/publishing"
	"podscribe/internal/rendering"
	"podscribe/internal/store"
	"podscribe/internal/transcription"
	"podscribe/internal/translation"
	"podscribe/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore runs fn with an open store, closing it afterwards.
func (c *commandContext) withStore(fn func(*config.Config, *store.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	st, err := store.Open(cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cfg, st)
}

// withManager runs fn with a fully wired workflow manager.
func (c *commandContext) withManager(fn func(*config.Config, *workflow.Manager) error) error {
	return c.withStore(func(cfg *config.Config, st *store.Store) error {
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		return fn(cfg, newManager(cfg, st, logger))
	})
}

// newManager wires every stage handler onto the status it consumes.
func newManager(cfg *config.Config, st *store.Store, logger *slog.Logger) *workflow.Manager {
	notifier := notifications.NewService(cfg)
	manager := workflow.NewManager(cfg, st, logger, notifier)
	manager.Register(store.StatusInit, "download",
		downloading.NewHandler(cfg, logging.NewComponentLogger(logger, "download")))
	manager.Register(store.StatusDownloaded, "transcribe",
		transcription.NewHandler(cfg, st, logging.NewComponentLogger(logger, "transcribe")))
	manager.Register(store.StatusTranscribed, "proofread",
		proofreading.NewHandler(cfg, st, logging.NewComponentLogger(logger, "proofread")))
	manager.Register(store.StatusProofread, "segment",
		chaptering.NewHandler(cfg, st, logging.NewComponentLogger(logger, "segment")))
	manager.Register(store.StatusSegmented, "translate",
		translation.NewHandler(cfg, st, logging.NewComponentLogger(logger, "translate")))
	manager.Register(store.StatusTranslated, "render",
		rendering.NewHandler(cfg, st, logging.NewComponentLogger(logger, "render"), notifier))
	manager.Register(store.StatusApproved, "publish",
		publishing.NewHandler(cfg, st, logging.NewComponentLogger(logger, "publish"), notifier))
	return manager
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
