package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kidpoints/internal/app"
	"kidpoints/internal/models"
)

// NewKidsCommand creates the kids command.
func NewKidsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "kids",
		Short:        "List children and their scores",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), true, func(a *app.Application) error {
				kids := a.Kids()
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, kids, func(w io.Writer) {
					printKids(w, kids)
				})
			})
		},
	}
}

func printKids(w io.Writer, kids []models.Child) {
	if len(kids) == 0 {
		fmt.Fprintln(w, "No children")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSCORE\tWEEKS")
	for _, k := range kids {
		fmt.Fprintf(tw, "%s\t%s\t%g\t%d\n", k.ID, k.Name, k.Score, len(k.History))
	}
	tw.Flush()
}

// NewResetScoresCommand creates the reset-scores command.
func NewResetScoresCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "reset-scores",
		Short:        "Reset every score to the starting value and clear the logs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), true, func(a *app.Application) error {
				a.ResetScores()
				if err := a.Flush(cmd.Context()); err != nil {
					return WrapExitError(ExitFailure, "failed to save scores", err)
				}
				kids := a.Kids()
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, kids, func(w io.Writer) {
					fmt.Fprintf(w, "Reset %d children to %g\n", len(kids), models.InitialScore)
				})
			})
		},
	}
}

// NewValidateWeeksCommand creates the validate-weeks command.
func NewValidateWeeksCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-weeks",
		Short: "Close the week for every child",
		Long: `Archive every child's score into their history and start a new week,
as the weekly schedule does. Recaps are mailed when e-mail is configured.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rootOpts.withApp(cmd.Context(), true, func(a *app.Application) error {
				recaps := a.ValidateAllWeeks(cmd.Context())
				if err := a.Flush(cmd.Context()); err != nil {
					return WrapExitError(ExitFailure, "failed to save history", err)
				}
				return writeResult(cmd.OutOrStdout(), rootOpts.Format, recaps, func(w io.Writer) {
					for _, r := range recaps {
						fmt.Fprintf(w, "%s: %g (%d good, %d bad)\n",
							r.Recap.Name, r.Archive.Score, r.Recap.Stats.Good, r.Recap.Stats.Bad)
					}
				})
			})
		},
	}
}
