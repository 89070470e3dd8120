package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/harness"
	"github.com/roach88/rewind/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	ConfigPath string
	AuditDB    string
	ShowTrace  bool
}

// ScenarioReport is the outcome of one scenario run.
type ScenarioReport struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Pass    bool     `json:"pass"`
	Errors  []string `json:"errors,omitempty"`
	History []string `json:"history"`
	Version uint64   `json:"version"`
	Trace   []string `json:"trace,omitempty"`
}

// RunReport is the run command's output.
type RunReport struct {
	Scenarios []ScenarioReport `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	AuditDB   string           `json:"audit_db,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario>...",
		Short: "Run scenarios against the demo scene",
		Long: `Run one or more scenario files (or directories of them) against a fresh
scene and engine each.

Engine settings come from --config (.cue, .yaml or .yml) and may be
overridden per scenario. With --audit-db, every commit, undo, redo and
clear is journaled to SQLite.

Examples:
  rewind run ./scenarios
  rewind run drag.yaml --config engine.cue --audit-db audit.db
  rewind run drag.yaml --trace --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "engine config file (.cue, .yaml, .yml)")
	cmd.Flags().StringVar(&opts.AuditDB, "audit-db", "", "SQLite audit journal path (overrides audit.path)")
	cmd.Flags().BoolVar(&opts.ShowTrace, "trace", false, "print each scenario's trace")

	return cmd
}

func runScenarios(opts *RunOptions, args []string, cmd *cobra.Command) error {
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
	if opts.AuditDB != "" {
		cfg.Audit.Path = opts.AuditDB
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.Verbose, cfg.Level())

	var paths []string
	for _, arg := range args {
		found, err := harness.FindScenarios(arg)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		paths = append(paths, found...)
	}
	formatter.VerboseLog("Found %d scenario file(s)", len(paths))

	runOpts := []harness.Option{
		harness.WithBaseConfig(cfg),
		harness.WithLogger(logger),
	}

	var rec *store.Recorder
	if cfg.Audit.Path != "" {
		st, err := store.Open(cfg.Audit.Path)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open audit database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing audit database", "error", closeErr)
			}
		}()
		rec = store.NewRecorder(st, logger)
		runOpts = append(runOpts, harness.WithSink(rec))
		formatter.VerboseLog("Journaling to %s", cfg.Audit.Path)
	}

	report := RunReport{Scenarios: []ScenarioReport{}, AuditDB: cfg.Audit.Path}
	for _, path := range paths {
		scenario, err := harness.LoadScenario(path)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalidScenario, fmt.Sprintf("%s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, "failed to load scenario", err)
		}

		formatter.VerboseLog("Running %s (%d steps)", scenario.Name, len(scenario.Steps))
		result, err := harness.Run(scenario, runOpts...)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalidScenario, fmt.Sprintf("%s: %v", path, err), nil)
			return WrapExitError(ExitCommandError, "failed to run scenario", err)
		}

		sr := ScenarioReport{
			Name:    scenario.Name,
			Path:    path,
			Pass:    result.Pass,
			Errors:  result.Errors,
			History: result.History,
			Version: result.Version,
		}
		if opts.ShowTrace {
			sr.Trace = result.Lines()
		}
		if sr.Pass {
			report.Passed++
		} else {
			report.Failed++
		}
		report.Scenarios = append(report.Scenarios, sr)
	}

	if rec != nil {
		if err := rec.Err(); err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitCommandError, "audit journal write failed", err)
		}
	}

	if err := formatter.Success(report, func(w io.Writer) { writeRunReport(w, report) }); err != nil {
		return err
	}

	logger.Debug("run finished", slog.Int("passed", report.Passed), slog.Int("failed", report.Failed))
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenario(s) failed", report.Failed, len(report.Scenarios)))
	}
	return nil
}

func writeRunReport(w io.Writer, report RunReport) {
	for _, s := range report.Scenarios {
		status := "PASS"
		if !s.Pass {
			status = "FAIL"
		}
		fmt.Fprintf(w, "%s %s (v%d, %d action(s))\n", status, s.Name, s.Version, len(s.History))
		for _, line := range s.Trace {
			fmt.Fprintf(w, "    %s\n", line)
		}
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  - %s\n", e)
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed\n", report.Passed, report.Failed)
	if report.AuditDB != "" {
		fmt.Fprintf(w, "Audit journal: %s\n", report.AuditDB)
	}
}
