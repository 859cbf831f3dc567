package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/vango-dev/vdiff/internal/errors"
	"github.com/vango-dev/vdiff/pkg/scenario"
)

func runCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "run [suite.yaml...]",
		Short: "Run reconciliation scenario suites",
		Long: `Run scenario suites against an in-memory live tree. Each scenario
mounts its old tree, reconciles it into the new one and checks the
result, the identity of surviving keyed nodes and the expected
primitive counts.

Without arguments the built-in suite runs.

Examples:
  vdiff run
  vdiff run scenarios/*.yaml -v`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSuites(cmd.OutOrStdout(), args, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print counts for passing scenarios")

	return cmd
}

func runSuites(w io.Writer, paths []string, verbose bool) error {
	var suites []*scenario.Suite
	if len(paths) == 0 {
		suites = append(suites, scenario.Builtin())
	}
	for _, path := range paths {
		s, err := scenario.Load(path)
		if err != nil {
			return errors.New("E201").
				WithDetail("Failed to load " + path).
				Wrap(err)
		}
		suites = append(suites, s)
	}

	failed := 0
	var failures []error
	for _, s := range suites {
		rep := scenario.RunSuite(s)
		printReport(w, rep, verbose)
		failed += rep.Failed()
		if err := rep.Err(); err != nil {
			failures = append(failures, err)
		}
	}

	if failed > 0 {
		return errors.New("E202").
			WithDetail(fmt.Sprintf("%d scenario(s) failed.", failed)).
			Wrap(failures[0])
	}
	return nil
}

func printReport(w io.Writer, rep *scenario.Report, verbose bool) {
	fmt.Fprintf(w, "%s\n", bold(rep.Suite))
	for _, res := range rep.Results {
		if !res.Passed() {
			failure(w, "%s", res.Name)
			if res.Err != nil {
				info(w, "%s", red(res.Err.Error()))
			}
			for _, f := range res.Failures {
				info(w, "%s", f)
			}
			info(w, "%s %s", gray("got:"), res.Shape)
			continue
		}
		success(w, "%s", res.Name)
		if verbose {
			info(w, "%s %s", gray(res.Stats.String()), gray(res.Duration.String()))
		}
	}

	total := rep.Totals()
	fmt.Fprintf(w, "\n%d passed, %d failed (%d moves, %d inserts, %d removes)\n\n",
		len(rep.Results)-rep.Failed(), rep.Failed(), total.Moved, total.Inserted, total.Removed)
}
