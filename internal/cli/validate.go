package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/harness"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	ConfigPath string
}

// FileValidation is the validation outcome for one file.
type FileValidation struct {
	Path   string                   `json:"path"`
	Kind   string                   `json:"kind"` // "scenario" or "config"
	Valid  bool                     `json:"valid"`
	Error  string                   `json:"error,omitempty"`
	Issues []config.ValidationError `json:"issues,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenarios and config without running them",
		Long: `Parse and validate scenario files (or directories of them) without
executing any steps. Unknown fields, unknown ops, missing targets and
malformed assertions are reported.

With --config, the engine config file is validated as well.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "engine config file to validate")

	return cmd
}

func runValidate(opts *ValidateOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	result := ValidationResult{Valid: true, Files: []FileValidation{}}

	if opts.ConfigPath != "" {
		fv := FileValidation{Path: opts.ConfigPath, Kind: "config", Valid: true}
		if _, err := config.Load(opts.ConfigPath); err != nil {
			fv.Valid = false
			fv.Error = err.Error()
			var ve config.ValidationError
			if errors.As(err, &ve) {
				fv.Issues = []config.ValidationError{ve}
			}
		}
		result.add(fv)
	}

	for _, arg := range args {
		paths, err := harness.FindScenarios(arg)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		for _, path := range paths {
			formatter.VerboseLog("Validating %s", path)
			fv := FileValidation{Path: path, Kind: "scenario", Valid: true}
			if _, err := harness.LoadScenario(path); err != nil {
				fv.Valid = false
				fv.Error = err.Error()
			}
			result.add(fv)
		}
	}

	if err := formatter.Success(result, func(w io.Writer) { writeValidation(w, result) }); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

func (r *ValidationResult) add(fv FileValidation) {
	r.Files = append(r.Files, fv)
	if !fv.Valid {
		r.Valid = false
	}
}

func writeValidation(w io.Writer, result ValidationResult) {
	invalid := 0
	for _, f := range result.Files {
		if f.Valid {
			fmt.Fprintf(w, "ok      %s\n", f.Path)
			continue
		}
		invalid++
		fmt.Fprintf(w, "invalid %s\n  %s\n", f.Path, f.Error)
	}
	if invalid == 0 {
		fmt.Fprintf(w, "✓ %d file(s) valid\n", len(result.Files))
		return
	}
	fmt.Fprintf(w, "✗ %d of %d file(s) invalid\n", invalid, len(result.Files))
}
