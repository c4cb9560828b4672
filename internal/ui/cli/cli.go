// Package cli wires configuration, the analysis runner, reports and watch
// mode into the pdepend command line.
package cli

import (
	"context"
	"fmt"
	"github.com/tvbeek/pdepend/internal/core/errors"
	"github.com/tvbeek/pdepend/internal/ui/report"
	"io"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time.
var Version = "0.1.0"

type globalOptions struct {
	configPath string
	verbose    bool
}

// Run executes the command line and returns the process exit code.
func Run(args []string) int {
	cmd := NewRootCommand(os.Stdout, os.Stderr)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return exitCode(err)
	}
	return 0
}

// exitCode is 2 for usage and configuration problems and 1 for failed runs.
func exitCode(err error) int {
	code, _ := errors.CodeOf(err)
	switch code {
	case errors.CodeValidationError, errors.CodeUnsupportedAnalyzer, errors.CodeUnsupportedReportType:
		return 2
	}
	return 1
}

func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	opts := &globalOptions{}
	report.Version = Version

	root := &cobra.Command{
		Use:   "pdepend",
		Short: "Static metrics for PHP source trees",
		Long: `pdepend parses PHP sources and computes software metrics for files,
namespaces, classes and callables: cyclomatic and NPath complexity,
coupling, inheritance, node counts and lines of code.

Results are written as PHPUnit compatible XML, summary XML, YAML or a
terminal summary. Runs can be cached, recorded in a local history and
repeated on file changes.

Examples:
  pdepend analyze src
  pdepend analyze --summary-xml build/summary.xml src
  pdepend watch
  pdepend history --since 2026-01-01 --tsv trends.tsv
  pdepend cache clear --type ast`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(stderr, opts.verbose)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to config file (default: ./"+defaultConfigName+")")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newAnalyzeCommand(opts),
		newWatchCommand(opts),
		newHistoryCommand(opts),
		newCacheCommand(opts),
	)
	return root
}
