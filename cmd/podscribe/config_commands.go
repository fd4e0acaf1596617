package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := config.WriteSample(target); err != nil {
				return fmt.Errorf("write sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set llm.api_key (or export PODSCRIBE_LLM_API_KEY) before running the pipeline.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:         "validate",
		Short:       "Load the configuration and report problems",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolved, exists, err := config.Load(strings.TrimSpace(configPath))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			if exists {
				fmt.Fprintln(out, renderStatusLine("Config file", statusOK, resolved, colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Config file", statusWarn,
					fmt.Sprintf("%s not found; using defaults", resolved), colorize))
			}

			if strings.TrimSpace(cfg.LLM.APIKey) == "" {
				fmt.Fprintln(out, renderStatusLine("LLM API key", statusError, "not set", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("LLM API key", statusOK, "", colorize))
			}
			if len(cfg.Translation.Languages) == 0 {
				fmt.Fprintln(out, renderStatusLine("Languages", statusError, "none configured", colorize))
			} else {
				fmt.Fprintln(out, renderStatusLine("Languages", statusOK,
					strings.Join(cfg.Translation.Languages, ", "), colorize))
			}
			if err := cfg.EnsureDirectories(); err != nil {
				fmt.Fprintln(out, renderStatusLine("Directories", statusError, err.Error(), colorize))
				return err
			}
			fmt.Fprintln(out, renderStatusLine("Directories", statusOK, cfg.Paths.WorkDir, colorize))
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	return cmd
}
