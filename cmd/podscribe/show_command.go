package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"podscribe/internal/config"
	"podscribe/internal/rendering"
	"podscribe/internal/store"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <episode-id>",
		Short: "Show one episode in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseEpisodeID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				episode, err := st.GetEpisode(cmd.Context(), id)
				if err != nil {
					return err
				}
				if episode == nil {
					return fmt.Errorf("episode %d not found", id)
				}

				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				for _, line := range renderSectionHeader(fmt.Sprintf("Episode %d", id), colorize) {
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "  Title:    %s\n", episode.Title)
				if episode.ShowName != "" {
					fmt.Fprintf(out, "  Show:     %s\n", episode.ShowName)
				}
				fmt.Fprintf(out, "  Source:   %s\n", episode.SourceURL)
				fmt.Fprintf(out, "  Status:   %s\n", episode.WorkflowStatus)
				if episode.DurationSeconds > 0 {
					fmt.Fprintf(out, "  Duration: %s\n", rendering.FormatTimestamp(episode.DurationSeconds))
				}
				if episode.ErrorMessage != "" {
					fmt.Fprintln(out, renderStatusLine("Last error", statusError, episode.ErrorMessage, colorize))
				}
				fmt.Fprintln(out)

				segments, err := st.SegmentCounts(cmd.Context(), episode.ID)
				if err != nil {
					return err
				}
				if segments.Total() > 0 {
					fmt.Fprintf(out, "  Segments: %s\n", formatCounts(segments))
				}

				rows := make([][]string, 0, len(cfg.Translation.Languages))
				for _, lang := range cfg.Translation.Languages {
					counts, err := st.TranslationCounts(cmd.Context(), episode.ID, lang)
					if err != nil {
						return err
					}
					rows = append(rows, []string{
						rendering.LanguageLabel(lang),
						formatCounts(counts),
						strconv.Itoa(editedCount(cmd, st, episode.ID, lang)),
					})
				}
				if len(rows) > 0 {
					fmt.Fprintln(out, renderTable(
						[]tableColumn{
							column("language"),
							column("translations"),
							numericColumn("edited"),
						},
						rows,
					))
				}

				publications, err := st.ListPublications(cmd.Context(), episode.ID)
				if err != nil {
					return err
				}
				if len(publications) > 0 {
					fmt.Fprintln(out)
					for _, record := range publications {
						kind := statusOK
						if record.Status != "succeeded" {
							kind = statusWarn
						}
						fmt.Fprintln(out, renderStatusLine(record.Target, kind, record.Detail, colorize))
					}
				}
				if episode.WorkflowStatus == store.StatusReadyForReview {
					fmt.Fprintf(out, "\nReview document: %s\n",
						rendering.DocumentPath(cfg.Paths.ReviewDir, episode.ID))
				}
				return nil
			})
		},
	}
}

func editedCount(cmd *cobra.Command, st *store.Store, episodeID int64, lang string) int {
	units, err := st.TranslationsForEpisode(cmd.Context(), episodeID, lang)
	if err != nil {
		return 0
	}
	edited := 0
	for _, unit := range units {
		if unit.Translation.IsEdited {
			edited++
		}
	}
	return edited
}
