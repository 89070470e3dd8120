package harness

import (
	"fmt"
	"strings"
)

// Trace event types.
const (
	EventBegin   = "begin"
	EventCommit  = "commit"
	EventUndo    = "undo"
	EventRedo    = "redo"
	EventCancel  = "cancel"
	EventClear   = "clear"
	EventDestroy = "destroy"
	EventAdvance = "advance"
	EventError   = "error"
	EventSet     = "set"
	EventCall    = "call"
	EventReenter = "reenter"
)

// TraceEvent is one line of a scenario trace: a step outcome or an
// observer notification raised while the step ran.
type TraceEvent struct {
	Type    string `json:"type"`
	Action  string `json:"action,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Version uint64 `json:"version,omitempty"`

	// Nested marks observer notifications. They follow the step that
	// triggered them.
	Nested bool `json:"nested,omitempty"`
}

// String renders the event as a golden trace line.
func (ev TraceEvent) String() string {
	var line string
	switch ev.Type {
	case EventCommit, EventUndo, EventRedo:
		line = fmt.Sprintf("%s %q v%d %s", ev.Type, ev.Action, ev.Version, ev.Detail)
	case EventBegin:
		line = fmt.Sprintf("begin %q %s", ev.Action, ev.Detail)
	case EventCancel:
		line = fmt.Sprintf("cancel %q", ev.Action)
	case EventClear:
		line = fmt.Sprintf("clear v%d", ev.Version)
	case EventError:
		line = fmt.Sprintf("error %s %s", ev.Action, ev.Detail)
	case EventReenter:
		line = fmt.Sprintf("reenter %q %s", ev.Action, ev.Detail)
	default:
		line = strings.TrimSpace(ev.Type + " " + ev.Detail)
	}
	if ev.Nested {
		return "  " + line
	}
	return line
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when no step expectation or assertion failed.
	Pass bool `json:"pass"`

	// Trace contains step outcomes and observer notifications in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// History is the action names left in history, oldest first.
	History []string `json:"history"`

	// Version is the final history version.
	Version uint64 `json:"version"`

	// State maps each live object to its properties at the end of the run.
	State map[string]map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		History: []string{},
		State:   make(map[string]map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Lines renders the trace, one event per line.
func (r *Result) Lines() []string {
	lines := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		lines[i] = ev.String()
	}
	return lines
}
