package config

import "fmt"

// Validation error codes (E200-E209)
const (
	ErrMaxStepsNegative    = "E201" // max_steps must be >= 0
	ErrMergeWindowNegative = "E202" // merge_window_ms must be >= 0
	ErrInvalidLogLevel     = "E203" // log_level not one of debug|info|warn|error
)

// ValidationError represents a config validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate returns every problem found (does not fail-fast).
func (c Config) Validate() []ValidationError {
	var errs []ValidationError

	if c.MaxSteps < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_steps",
			Message: fmt.Sprintf("must be >= 0, got %d", c.MaxSteps),
			Code:    ErrMaxStepsNegative,
		})
	}

	if c.MergeWindowMS < 0 {
		errs = append(errs, ValidationError{
			Field:   "merge_window_ms",
			Message: fmt.Sprintf("must be >= 0, got %d", c.MergeWindowMS),
			Code:    ErrMergeWindowNegative,
		})
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log_level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", c.LogLevel),
			Code:    ErrInvalidLogLevel,
		})
	}

	return errs
}
