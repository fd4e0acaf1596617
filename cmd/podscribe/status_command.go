package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/progress"
	"podscribe/internal/workflow"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var health bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show every tracked episode and its pipeline position",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(cfg *config.Config, manager *workflow.Manager) error {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)

				if health {
					for _, line := range renderSectionHeader("Stage health", colorize) {
						fmt.Fprintln(out, line)
					}
					results := manager.HealthChecks(cmd.Context())
					for _, result := range results {
						kind := statusOK
						if !result.Ready {
							kind = statusError
						}
						fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
					}
					if !workflow.Ready(results) {
						fmt.Fprintln(out, "\nSome stages are not ready; fix the tools above before resuming.")
					}
					fmt.Fprintln(out)
				}

				episodes, err := manager.Store().ListEpisodes(cmd.Context())
				if err != nil {
					return err
				}
				if len(episodes) == 0 {
					fmt.Fprintln(out, "No episodes tracked. Add one with `podscribe add <url>`.")
					return nil
				}

				rows := make([][]string, 0, len(episodes))
				for _, episode := range episodes {
					segments, err := manager.Store().SegmentCounts(cmd.Context(), episode.ID)
					if err != nil {
						return err
					}
					translations, err := manager.Store().TranslationCounts(cmd.Context(), episode.ID, "")
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						strconv.FormatInt(episode.ID, 10),
						truncate(episode.Title, 40),
						colorStatusCell(episode.WorkflowStatus.String(), workflowStatusKind(episode), colorize),
						formatCounts(segments),
						formatCounts(translations),
						truncate(episode.ErrorMessage, 40),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{
						numericColumn("id"),
						column("title"),
						column("status"),
						column("segments"),
						column("translations"),
						column("last error"),
					},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&health, "health", false, "Probe external collaborators before listing")
	return cmd
}

func formatCounts(counts progress.Counts) string {
	if counts.Total() == 0 {
		return "-"
	}
	return fmt.Sprintf("%d/%d %s", counts.Completed, counts.Total(), progress.Compute(counts))
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit-1]) + "…"
}
