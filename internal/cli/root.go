// Package cli implements kidctl, the maintenance tool for a household database.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"kidpoints/internal/app"
	"kidpoints/internal/config"
	"kidpoints/internal/logger"
)

// Opener builds the application a command works on
type Opener func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app.Application, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Verbose    bool
	Format     string // "json" | "text"

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for kidctl.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(app.New)
}

// NewRootCommandWith creates the root command with a custom application opener
func NewRootCommandWith(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "kidctl",
		Short: "kidctl - household points maintenance",
		Long:  "Back up, restore and report on a kidpoints household database.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigFile, "config", "c", "", "YAML config file (overrides CONFIG_FILE)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewKidsCommand(opts))
	cmd.AddCommand(NewResetScoresCommand(opts))
	cmd.AddCommand(NewValidateWeeksCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// openApp loads the configuration and opens the application. Diagnostics go
// to stderr so that command output stays parseable.
func (o *RootOptions) openApp(ctx context.Context) (*app.Application, error) {
	if o.ConfigFile != "" {
		if err := os.Setenv("CONFIG_FILE", o.ConfigFile); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to select config file", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load configuration", err)
	}

	cfg.Log.Format = "console"
	cfg.Log.Level = "warn"
	if o.Verbose {
		cfg.Log.Level = "debug"
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
	}

	a, err := o.open(ctx, cfg, log)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open application", err)
	}
	return a, nil
}

// withApp runs fn against an opened application and always stops it.
// When start is set, the household is loaded first.
func (o *RootOptions) withApp(ctx context.Context, start bool, fn func(a *app.Application) error) error {
	a, err := o.openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Stop(context.WithoutCancel(ctx))

	if start {
		if err := a.Start(ctx); err != nil {
			return WrapExitError(ExitCommandError, "failed to load household", err)
		}
	}
	return fn(a)
}
