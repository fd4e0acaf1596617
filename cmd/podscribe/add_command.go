package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/store"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	var title string
	var show string

	cmd := &cobra.Command{
		Use:   "add <source-url>",
		Short: "Register an episode for processing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				episode, created, err := st.NewEpisode(cmd.Context(), args[0], title, show)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if !created {
					fmt.Fprintf(out, "Episode %d already tracks this source (status %s)\n",
						episode.ID, episode.WorkflowStatus)
					return nil
				}
				fmt.Fprintf(out, "Added episode %d\n", episode.ID)
				fmt.Fprintf(out, "Run `podscribe run %d` to process it.\n", episode.ID)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Episode title (defaults to source metadata)")
	cmd.Flags().StringVarP(&show, "show", "s", "", "Show name")
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <episode-id>",
		Short: "Delete an episode and everything derived from it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				removed, err := st.RemoveEpisode(cmd.Context(), id)
				if err != nil {
					return err
				}
				if !removed {
					return fmt.Errorf("episode %d not found", id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed episode %d\n", id)
				return nil
			})
		},
	}
}
