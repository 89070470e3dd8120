package harness

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/roach88/rewind/internal/scene"
	"github.com/roach88/rewind/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, event)
		}
	}

	return buf.String()
}

// AssertionContext gives assertions access to the finished run.
type AssertionContext struct {
	Scene *scene.Scene

	// Resolve converts YAML values the same way steps do.
	Resolve func(any) (value.Value, error)
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertFinalState:
			err = assertFinalState(actx, a)
		case AssertHistory:
			err = assertHistory(result.History, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// matches applies the event, action and text filters of a.
func matches(ev TraceEvent, a Assertion) bool {
	if a.Event != "" && ev.Type != a.Event {
		return false
	}
	if a.Action != "" && ev.Action != a.Action {
		return false
	}
	if a.Text != "" && !strings.Contains(ev.String(), a.Text) {
		return false
	}
	return true
}

func describe(a Assertion) string {
	var parts []string
	if a.Event != "" {
		parts = append(parts, "event="+a.Event)
	}
	if a.Action != "" {
		parts = append(parts, fmt.Sprintf("action=%q", a.Action))
	}
	if a.Text != "" {
		parts = append(parts, fmt.Sprintf("text=%q", a.Text))
	}
	return strings.Join(parts, " ")
}

// assertTraceContains checks that some trace event matches the filters.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matches(event, assertion) {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: describe(assertion),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that each line appears after the previous one.
// Lines don't need to be consecutive.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	pos := 0
	for _, want := range assertion.Lines {
		found := -1
		for i := pos; i < len(trace); i++ {
			if strings.Contains(trace[i].String(), want) {
				found = i
				break
			}
		}
		if found < 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("lines in order: %q", assertion.Lines),
				Actual:   fmt.Sprintf("%q not found after position %d", want, pos+1),
				Trace:    trace,
			}
		}
		pos = found + 1
	}
	return nil
}

// assertTraceCount checks that exactly Count events match the filters.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if matches(event, assertion) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, describe(assertion)),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertFinalState checks a subset of an object's final properties.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	if actx == nil || actx.Scene == nil {
		return fmt.Errorf("final_state assertion requires a scene")
	}

	props, ok := actx.Scene.Snapshot()[assertion.Object]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalState,
			Expected: fmt.Sprintf("live object %q", assertion.Object),
			Actual:   "object not found",
		}
	}
	return compareProps(actx.Resolve, assertion.Object, props, assertion.Expect)
}

// compareProps reports the first mismatching property, in key order.
func compareProps(resolve func(any) (value.Value, error), object string, actual value.Dict, expected map[string]any) error {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		want, err := resolveWith(resolve, expected[k])
		if err != nil {
			return fmt.Errorf("%s.%s: %w", object, k, err)
		}
		got, ok := actual[k]
		if !ok {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %s", object, k, want),
				Actual:   "property missing",
			}
		}
		if !value.Equal(got, want) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s.%s = %s", object, k, want),
				Actual:   fmt.Sprintf("%s.%s = %s", object, k, got),
			}
		}
	}
	return nil
}

func resolveWith(resolve func(any) (value.Value, error), raw any) (value.Value, error) {
	if resolve == nil {
		return value.FromAny(raw)
	}
	return resolve(raw)
}

// assertHistory checks the action names left in history.
func assertHistory(history []string, assertion Assertion) error {
	want := assertion.Actions
	if want == nil {
		want = []string{}
	}
	if !slices.Equal(history, want) {
		return &AssertionError{
			Type:     AssertHistory,
			Expected: fmt.Sprintf("%q", want),
			Actual:   fmt.Sprintf("%q", history),
		}
	}
	return nil
}

// check evaluates an expect step. Failures are added to the result.
func (h *Harness) check(index int, exp *Expectation) {
	e := h.engine
	fail := func(format string, args ...any) {
		h.result.AddError(fmt.Sprintf("step %d (expect): ", index) + fmt.Sprintf(format, args...))
	}

	if exp.State != "" && e.State().String() != strings.ToUpper(exp.State) {
		fail("state: want %s, got %s", strings.ToUpper(exp.State), e.State())
	}
	if exp.Version != nil && e.Version() != *exp.Version {
		fail("version: want %d, got %d", *exp.Version, e.Version())
	}
	if exp.Len != nil && e.Len() != *exp.Len {
		fail("len: want %d, got %d", *exp.Len, e.Len())
	}
	if exp.History != nil && !slices.Equal(e.ActionNames(), exp.History) {
		fail("history: want %q, got %q", exp.History, e.ActionNames())
	}
	if exp.Current != nil && e.CurrentActionName() != *exp.Current {
		fail("current: want %q, got %q", *exp.Current, e.CurrentActionName())
	}
	if exp.HasUndo != nil && e.HasUndo() != *exp.HasUndo {
		fail("has_undo: want %t, got %t", *exp.HasUndo, e.HasUndo())
	}
	if exp.HasRedo != nil && e.HasRedo() != *exp.HasRedo {
		fail("has_redo: want %t, got %t", *exp.HasRedo, e.HasRedo())
	}

	if s := exp.Summary; s != nil {
		got := e.LastSummary()
		for _, c := range []struct {
			name string
			want *int
			got  int
		}{
			{"applied", s.Applied, got.Applied},
			{"skipped", s.Skipped, got.Skipped},
			{"failed", s.Failed, got.Failed},
		} {
			if c.want != nil && *c.want != c.got {
				fail("summary.%s: want %d, got %d", c.name, *c.want, c.got)
			}
		}
	}

	if len(exp.Objects) > 0 {
		snapshot := h.scene.Snapshot()
		for _, name := range sortedKeys(exp.Objects) {
			props, ok := snapshot[name]
			if !ok {
				fail("object %q is not alive", name)
				continue
			}
			if err := compareProps(h.resolve, name, props, exp.Objects[name]); err != nil {
				fail("%s", oneLine(err))
			}
		}
	}

	for _, name := range sortedKeys(exp.Refs) {
		node := h.scene.Get(name)
		if node == nil {
			fail("object %q is not alive", name)
			continue
		}
		if node.Refs() != exp.Refs[name] {
			fail("refs %s: want %d, got %d", name, exp.Refs[name], node.Refs())
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// oneLine flattens an AssertionError for step-level messages.
func oneLine(err error) string {
	if ae, ok := err.(*AssertionError); ok {
		return fmt.Sprintf("want %s, got %s", ae.Expected, ae.Actual)
	}
	return err.Error()
}
