package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"kidpoints/internal/app"
	"kidpoints/internal/service"
)

// ExportOptions holds flags for the export command.
type ExportOptions struct {
	*RootOptions
	Output string
}

type backupSummary struct {
	Path     string    `json:"path"`
	Version  string    `json:"version"`
	Keys     int       `json:"keys"`
	Families int       `json:"families"`
	Users    int       `json:"users"`
	At       time.Time `json:"at"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the database to a JSON backup",
		Long: `Export the device settings, shared family records and accounts to a JSON file.

Examples:
  kidctl export
  kidctl export --output ./backups/household.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: backup_YYYYMMDD_HHMMSS.json)")
	return cmd
}

func runExport(ctx context.Context, opts *ExportOptions, out io.Writer) error {
	path := opts.Output
	if path == "" {
		path = fmt.Sprintf("backup_%s.json", time.Now().Format("20060102_150405"))
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create output directory", err)
		}
	}

	return opts.withApp(ctx, false, func(a *app.Application) error {
		backups := a.Backups()
		if backups == nil {
			return WrapExitError(ExitCommandError, "backups need a database", nil)
		}

		f, err := os.Create(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to create output file", err)
		}
		defer f.Close()

		data, err := backups.Export(ctx, f)
		if err != nil {
			return WrapExitError(ExitFailure, "export failed", err)
		}
		if err := f.Sync(); err != nil {
			return WrapExitError(ExitFailure, "failed to write backup", err)
		}

		summary := summarize(path, data)
		return writeResult(out, opts.Format, summary, func(w io.Writer) {
			fmt.Fprintf(w, "Exported %d keys, %d families and %d users to %s\n",
				summary.Keys, summary.Families, summary.Users, path)
		})
	})
}

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Input string
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Restore a JSON backup",
		Long: `Restore a backup written by export. Settings and family records in the
backup replace the current ones; existing accounts are kept.

Examples:
  kidctl import --input backup_20260101_120000.json`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&opts.Input, "input", "i", "", "backup file (required)")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runImport(ctx context.Context, opts *ImportOptions, out io.Writer) error {
	f, err := os.Open(opts.Input)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open backup", err)
	}
	defer f.Close()

	return opts.withApp(ctx, false, func(a *app.Application) error {
		backups := a.Backups()
		if backups == nil {
			return WrapExitError(ExitCommandError, "backups need a database", nil)
		}

		data, err := backups.Import(ctx, f)
		if err != nil {
			return WrapExitError(ExitFailure, "import failed", err)
		}

		summary := summarize(opts.Input, data)
		return writeResult(out, opts.Format, summary, func(w io.Writer) {
			fmt.Fprintf(w, "Imported %d keys, %d families and %d users from %s (exported %s)\n",
				summary.Keys, summary.Families, summary.Users, opts.Input, data.ExportedAt.Format(time.RFC3339))
		})
	})
}

func summarize(path string, data *service.BackupData) backupSummary {
	return backupSummary{
		Path:     path,
		Version:  data.Version,
		Keys:     len(data.KV),
		Families: len(data.Families),
		Users:    len(data.Users),
		At:       data.ExportedAt,
	}
}
