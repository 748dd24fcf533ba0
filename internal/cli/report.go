package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kidpoints/internal/app"
)

// ReportOptions holds flags for the report command.
type ReportOptions struct {
	*RootOptions
	Output string
}

// NewReportCommand creates the report command.
func NewReportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:          "report",
		Short:        "Write the household workbook (xlsx)",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "kidpoints.xlsx", "output file")
	return cmd
}

func runReport(ctx context.Context, opts *ReportOptions, out io.Writer) error {
	return opts.withApp(ctx, true, func(a *app.Application) error {
		f, err := os.Create(opts.Output)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer f.Close()

		n, err := a.Reports().WriteTo(f)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to write report", err)
		}
		summary := map[string]any{"path": opts.Output, "bytes": n, "children": len(a.Kids())}
		return writeResult(out, opts.Format, summary, func(w io.Writer) {
			fmt.Fprintf(w, "Wrote %s (%d children)\n", opts.Output, len(a.Kids()))
		})
	})
}
