package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/store"
	"podscribe/internal/workflow"
)

func parseEpisodeID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid episode id %q", arg)
	}
	return id, nil
}

func newResumeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <episode-id>",
		Short: "Advance an episode by exactly one stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(cfg *config.Config, manager *workflow.Manager) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				episode, err := manager.Resume(runCtx, id)
				if err != nil {
					return describeBarrier(cmd, episode, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Episode %d is now %s\n", id, episode.WorkflowStatus)
				return nil
			})
		},
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run <episode-id>",
		Short: "Process an episode until it needs review or finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(cfg *config.Config, manager *workflow.Manager) error {
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()

				episode, err := manager.Run(runCtx, id)
				if err != nil {
					if errors.Is(err, context.Canceled) {
						fmt.Fprintln(cmd.OutOrStdout(), "Interrupted; progress is saved. Re-run to continue.")
						return nil
					}
					return err
				}
				switch episode.WorkflowStatus {
				case store.StatusReadyForReview:
					fmt.Fprintf(cmd.OutOrStdout(),
						"Episode %d is ready for review.\nEdit the document under %s, set approved: true, then run `podscribe review sync`.\n",
						id, cfg.Paths.ReviewDir)
				case store.StatusPublished:
					fmt.Fprintf(cmd.OutOrStdout(), "Episode %d is published.\n", id)
				default:
					fmt.Fprintf(cmd.OutOrStdout(), "Episode %d stopped at %s\n", id, episode.WorkflowStatus)
				}
				return nil
			})
		},
	}
}

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish <episode-id>",
		Short: "Deliver an approved episode to its publishing targets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(cfg *config.Config, manager *workflow.Manager) error {
				episode, err := manager.Store().GetEpisode(cmd.Context(), id)
				if err != nil {
					return err
				}
				if episode == nil {
					return fmt.Errorf("episode %d not found", id)
				}
				if episode.WorkflowStatus != store.StatusApproved {
					return fmt.Errorf("episode %d is %s; only approved episodes can be published",
						id, episode.WorkflowStatus)
				}
				runCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
				defer stop()
				episode, err = manager.Resume(runCtx, id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Episode %d is published.\n", episode.ID)
				return nil
			})
		},
	}
}

func describeBarrier(cmd *cobra.Command, episode *store.Episode, err error) error {
	switch {
	case errors.Is(err, workflow.ErrAwaitingReview):
		fmt.Fprintf(cmd.OutOrStdout(),
			"Episode %d is awaiting review; approve its document and run `podscribe review sync`.\n", episode.ID)
		return nil
	case errors.Is(err, workflow.ErrAlreadyPublished):
		fmt.Fprintf(cmd.OutOrStdout(), "Episode %d is already published.\n", episode.ID)
		return nil
	default:
		return err
	}
}

func newRestartCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restart <episode-id>",
		Short: "Reset an episode to the beginning, discarding all derived state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(cfg *config.Config, manager *workflow.Manager) error {
				episode, err := manager.ForceRestart(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Episode %d reset to %s\n", id, episode.WorkflowStatus)
				return nil
			})
		},
	}
}

func newResegmentCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resegment <episode-id>",
		Short: "Discard chapters and redo segmentation, keeping transcript and translations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withManager(func(cfg *config.Config, manager *workflow.Manager) error {
				episode, err := manager.ForceResegment(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(),
					"Episode %d rolled back to %s; run `podscribe run %d` to re-derive chapters.\n",
					id, episode.WorkflowStatus, id)
				return nil
			})
		},
	}
}
