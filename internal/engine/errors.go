package engine

import (
	"errors"
	"fmt"
)

// Error represents a rejected engine call.
//
// Errors include:
//   - Misuse: method called in the wrong state
//   - Reentrant: mutating call made from inside commit/undo/redo execution
//   - Poisoned: history invariants were found broken
//   - Too many args: method call exceeds MaxMethodArgs
//
// A rejected call never mutates engine state.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the public method that was rejected (e.g. "begin_action").
	Op string

	// State is the engine state at the time of the call.
	State State

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeMisuse indicates a call made in the wrong state or with invalid input.
	ErrCodeMisuse ErrorCode = "MISUSE"

	// ErrCodeReentrant indicates a mutating call from inside engine execution.
	ErrCodeReentrant ErrorCode = "REENTRANT"

	// ErrCodePoisoned indicates the history is corrupt; only ClearHistory(true) recovers.
	ErrCodePoisoned ErrorCode = "POISONED"

	// ErrCodeTooManyArgs indicates a method call with more than MaxMethodArgs arguments.
	ErrCodeTooManyArgs ErrorCode = "TOO_MANY_ARGS"

	// ErrCodeNothingToUndo indicates Undo with the cursor before the first action.
	ErrCodeNothingToUndo ErrorCode = "NOTHING_TO_UNDO"

	// ErrCodeNothingToRedo indicates Redo with the cursor at the last action.
	ErrCodeNothingToRedo ErrorCode = "NOTHING_TO_REDO"

	// ErrCodeDeadTarget indicates a reference hold requested for a dead handle.
	ErrCodeDeadTarget ErrorCode = "DEAD_TARGET"

	// ErrCodeSealed indicates an append to an action that was already committed.
	ErrCodeSealed ErrorCode = "SEALED"

	// ErrCodeClosed indicates a call on a closed engine.
	ErrCodeClosed ErrorCode = "CLOSED"

	// ErrCodeObserverSet indicates an attempt to replace an installed observer.
	ErrCodeObserverSet ErrorCode = "OBSERVER_SET"
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %s: %s (state=%s)", e.Code, e.Op, e.Message, e.State)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, op string, state State, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Op:      op,
		State:   state,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the code of an engine error, or "" for any other error.
// Uses errors.As to handle wrapped errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsMisuse returns true for calls rejected because of state or input.
// Reentrant calls are a kind of misuse and also match.
func IsMisuse(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeMisuse || code == ErrCodeReentrant || code == ErrCodeTooManyArgs
}

// IsReentrant returns true if the call was made from inside engine execution.
func IsReentrant(err error) bool {
	return CodeOf(err) == ErrCodeReentrant
}

// IsPoisoned returns true if the engine refused the call because its history is corrupt.
func IsPoisoned(err error) bool {
	return CodeOf(err) == ErrCodePoisoned
}
