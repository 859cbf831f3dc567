package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var noColor bool

	rootCmd := &cobra.Command{
		Use:   "vdiff",
		Short: "Keyed children reconciliation for server-driven trees",
		Long: `vdiff reconciles keyed child lists with a minimal number of moves.

It diffs trees written in a compact notation, runs scenario suites
against an in-memory live tree, and serves WebSocket sessions that
stream binary patches to clients.

Examples:
  vdiff diff "a b c" "c a b"
  vdiff run
  vdiff serve --config vdiff.json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				errors.DisableColors()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		diffCmd(),
		runCmd(),
		serveCmd(),
		benchCmd(),
		pushCmd(),
		snapshotCmd(),
		versionCmd(),
	)
	return rootCmd
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

// failure prints a failure message.
func failure(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", red("✗"), fmt.Sprintf(format, args...))
}

// info prints an indented info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
