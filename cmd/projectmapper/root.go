package main

import (
	"context"
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOpts struct {
	verbose   bool
	logFormat string
}

func newRootCmd() *cobra.Command {
	opts := &rootOpts{}

	root := &cobra.Command{
		Use:   "projectmapper",
		Short: "Route video sources to on-screen sinks",
		Long: `projectmapper connects named video sources (test patterns, URI streams) through
regions to sinks presented as windows, borderless fullscreen surfaces or
exclusive fullscreen modes on specific monitors.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.verbose, opts.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			cmd.SetContext(withLogger(cmd.Context(), logger))
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "text", "log format: text, logfmt or json")

	root.AddCommand(newRunCmd())
	root.AddCommand(newValidateCmd())
	root.AddCommand(newOptionsCmd())
	root.AddCommand(newMonitorsCmd())
	root.AddCommand(newIdentifyCmd())
	root.AddCommand(newGraphCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newStatusCmd())
	root.AddCommand(newStopCmd())
	root.AddCommand(newTopCmd())
	root.AddCommand(newMCPCmd())

	return root
}

// newLogger builds the process logger. Plumbing that still logs through the
// standard library logger is routed into the same output.
func newLogger(w io.Writer, verbose bool, format string) (*slog.Logger, error) {
	level := charmlog.InfoLevel
	if verbose {
		level = charmlog.DebugLevel
	}
	opts := charmlog.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	}
	switch strings.ToLower(format) {
	case "", "text":
		opts.Formatter = charmlog.TextFormatter
	case "logfmt":
		opts.Formatter = charmlog.LogfmtFormatter
	case "json":
		opts.Formatter = charmlog.JSONFormatter
	default:
		return nil, fmt.Errorf("unknown log format %q (want text, logfmt or json)", format)
	}

	cl := charmlog.NewWithOptions(w, opts)
	stdlog.SetFlags(0)
	stdlog.SetOutput(cl.StandardLog(charmlog.StandardLogOptions{ForceLevel: charmlog.InfoLevel}).Writer())
	return slog.New(cl), nil
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

func loggerFromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
