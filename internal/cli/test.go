package cli

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	ConfigPath string
	Filter     string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run a scenario suite",
		Long: `Run every scenario under a directory as a suite.

Unlike run, a scenario that fails to load or execute is counted as a
failure and the suite continues.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, bad config, etc.)

Examples:
  rewind test ./scenarios
  rewind test ./scenarios --filter "s*_merge*"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "engine config file (.cue, .yaml, .yml)")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern on the file name")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalidConfig, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to load config", err)
		}
		cfg = loaded
	}

	paths, err := harness.FindScenarios(dir)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	paths, err = filterScenarios(paths, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}
	formatter.VerboseLog("Running %d scenario(s)", len(paths))

	suite := harness.RunSuite(paths,
		harness.WithBaseConfig(cfg),
		harness.WithLogger(newLogger(cmd.ErrOrStderr(), opts.Verbose, cfg.Level())),
	)

	if err := formatter.Success(suite, func(w io.Writer) { writeSuite(w, suite) }); err != nil {
		return err
	}
	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", suite.Failed, suite.Total))
	}
	return nil
}

// filterScenarios keeps paths whose base name, without extension, matches
// pattern. An empty pattern keeps everything.
func filterScenarios(paths []string, pattern string) ([]string, error) {
	if pattern == "" {
		return paths, nil
	}
	var kept []string
	for _, path := range paths {
		base := filepath.Base(path)
		matched, err := filepath.Match(pattern, strings.TrimSuffix(base, filepath.Ext(base)))
		if err != nil {
			return nil, fmt.Errorf("invalid filter pattern: %w", err)
		}
		if matched {
			kept = append(kept, path)
		}
	}
	return kept, nil
}

func writeSuite(w io.Writer, suite *harness.SuiteResult) {
	if suite.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return
	}
	for _, f := range suite.Failures {
		fmt.Fprintf(w, "✗ %s (%s)\n", f.Scenario, f.Path)
		for _, e := range f.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}
	if suite.Failed == 0 {
		fmt.Fprintf(w, "✓ All %d scenario(s) passed\n", suite.Total)
		return
	}
	fmt.Fprintf(w, "\n%d passed, %d failed (%d total)\n", suite.Passed, suite.Failed, suite.Total)
}
