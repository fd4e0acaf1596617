package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/logging"
	"podscribe/internal/review"
	"podscribe/internal/store"
)

func newReviewCommand(ctx *commandContext) *cobra.Command {
	reviewCmd := &cobra.Command{
		Use:   "review",
		Short: "Merge human edits from review documents",
	}
	reviewCmd.AddCommand(newReviewSyncCommand(ctx))
	return reviewCmd
}

func newReviewSyncCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Reconcile every review document and apply approvals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return err
				}
				reconciler := review.NewReconciler(cfg, st, logger)
				results, err := reconciler.Sync(cmd.Context())
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				if len(results) == 0 {
					fmt.Fprintf(out, "No review documents found under %s\n", cfg.Paths.ReviewDir)
					return nil
				}

				rows := make([][]string, 0, len(results))
				approved := 0
				for _, result := range results {
					if result.Advanced {
						approved++
					}
					rows = append(rows, []string{
						strconv.FormatInt(result.EpisodeID, 10),
						strconv.Itoa(len(result.Changes)),
						strconv.Itoa(len(result.Warnings)),
						yesNo(result.Approved),
						yesNo(result.Advanced),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]tableColumn{
						numericColumn("episode"),
						numericColumn("edits"),
						numericColumn("warnings"),
						column("approved"),
						column("advanced"),
					},
					rows,
				))
				if approved > 0 {
					fmt.Fprintf(out, "%d episode(s) approved; run `podscribe publish <id>` to deliver them.\n", approved)
				}
				return nil
			})
		},
	}
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
