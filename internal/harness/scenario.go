package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/engine"
)

// Scenario is a scripted engine session.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides the engine defaults for this scenario only.
	Config *ScenarioConfig `yaml:"config,omitempty"`

	// Objects are added to the scene, in order, before the first step.
	Objects []ObjectSpec `yaml:"objects,omitempty"`

	// Steps drive the engine.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace, history and scene.
	// Supported types: trace_contains, trace_order, trace_count,
	// final_state, history
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioConfig holds per-scenario engine overrides. Unset fields keep
// the base config.
type ScenarioConfig struct {
	MaxSteps      *int `yaml:"max_steps,omitempty"`
	MergeWindowMS *int `yaml:"merge_window_ms,omitempty"`
}

// apply layers c over base.
func (c *ScenarioConfig) apply(base config.Config) config.Config {
	if c == nil {
		return base
	}
	if c.MaxSteps != nil {
		base.MaxSteps = *c.MaxSteps
	}
	if c.MergeWindowMS != nil {
		base.MergeWindowMS = *c.MergeWindowMS
	}
	return base
}

// ObjectSpec declares one scene node. Only declared properties are
// writable later.
type ObjectSpec struct {
	Name  string         `yaml:"name"`
	Props map[string]any `yaml:"props,omitempty"`
}

// Step is one scripted call. Which fields apply depends on Op.
type Step struct {
	Op string `yaml:"op"`

	// Name is the action name for begin and reenter.
	Name string `yaml:"name,omitempty"`

	// Merge is the merge mode for begin: disable (default), ends or all.
	Merge string `yaml:"merge,omitempty"`

	// Target names the scene object for add and destroy steps.
	Target   string `yaml:"target,omitempty"`
	Property string `yaml:"property,omitempty"`
	Value    any    `yaml:"value,omitempty"`
	Method   string `yaml:"method,omitempty"`
	Args     []any  `yaml:"args,omitempty"`

	// Bump controls version bumping for clear. Defaults to true.
	Bump *bool `yaml:"bump,omitempty"`

	// MS is the tick advance for advance.
	MS int64 `yaml:"ms,omitempty"`

	// Error is the engine error code this step must fail with.
	Error string `yaml:"error,omitempty"`

	// Expect is checked by expect steps.
	Expect *Expectation `yaml:"expect,omitempty"`
}

// Step operations.
const (
	OpBegin         = "begin"
	OpDoProperty    = "do_property"
	OpUndoProperty  = "undo_property"
	OpDoMethod      = "do_method"
	OpUndoMethod    = "undo_method"
	OpDoReference   = "do_reference"
	OpUndoReference = "undo_reference"
	OpCommit        = "commit"
	OpCancel        = "cancel"
	OpUndo          = "undo"
	OpRedo          = "redo"
	OpClear         = "clear"
	OpDestroy       = "destroy"
	OpAdvance       = "advance"
	OpExpect        = "expect"
	OpReenter       = "reenter"
)

// Expectation is a mid-scenario check of engine and scene state. Unset
// fields are not checked.
type Expectation struct {
	State   string   `yaml:"state,omitempty"`
	Version *uint64  `yaml:"version,omitempty"`
	Len     *int     `yaml:"len,omitempty"`
	History []string `yaml:"history,omitempty"`
	Current *string  `yaml:"current,omitempty"`
	HasUndo *bool    `yaml:"has_undo,omitempty"`
	HasRedo *bool    `yaml:"has_redo,omitempty"`

	// Summary checks the counts of the last commit, undo or redo.
	Summary *SummaryExpectation `yaml:"summary,omitempty"`

	// Objects maps object names to a subset of expected properties.
	Objects map[string]map[string]any `yaml:"objects,omitempty"`

	// Refs maps object names to expected reference counts.
	Refs map[string]int `yaml:"refs,omitempty"`
}

// SummaryExpectation checks engine.Summary counts.
type SummaryExpectation struct {
	Applied *int `yaml:"applied,omitempty"`
	Skipped *int `yaml:"skipped,omitempty"`
	Failed  *int `yaml:"failed,omitempty"`
}

// Assertion validates the finished run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_contains": some trace event matches Event, Action and Text
	// - "trace_order": Lines appear in the rendered trace in order
	// - "trace_count": exactly Count trace events match
	// - "final_state": Object's properties include Expect
	// - "history": the action names in history equal Actions
	Type string `yaml:"type"`

	// Event filters on the trace event type (commit, undo, set, ...).
	Event string `yaml:"event,omitempty"`

	// Action filters on the action name.
	Action string `yaml:"action,omitempty"`

	// Text must be a substring of the rendered event.
	Text string `yaml:"text,omitempty"`

	// Count is the expected number of matches (used by trace_count).
	Count int `yaml:"count,omitempty"`

	// Lines are substrings expected in order (used by trace_order).
	Lines []string `yaml:"lines,omitempty"`

	// Object and Expect are used by final_state. Subset match.
	Object string         `yaml:"object,omitempty"`
	Expect map[string]any `yaml:"expect,omitempty"`

	// Actions is the expected history, oldest first (used by history).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
	AssertHistory       = "history"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches typos like "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if c := s.Config; c != nil {
		if c.MaxSteps != nil && *c.MaxSteps < 0 {
			return fmt.Errorf("config.max_steps must be >= 0")
		}
		if c.MergeWindowMS != nil && *c.MergeWindowMS < 0 {
			return fmt.Errorf("config.merge_window_ms must be >= 0")
		}
	}

	objects := make(map[string]bool, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.Name == "" {
			return fmt.Errorf("objects[%d]: name is required", i)
		}
		if objects[obj.Name] {
			return fmt.Errorf("objects[%d]: duplicate name %q", i, obj.Name)
		}
		objects[obj.Name] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step, objects); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateStep checks the fields each op needs. Engine-level misuse (e.g.
// committing while idle) is deliberately allowed so scenarios can assert
// on the resulting error.
func validateStep(index int, st *Step, objects map[string]bool) error {
	needTarget := func() error {
		if st.Target == "" {
			return fmt.Errorf("steps[%d]: target is required for %s", index, st.Op)
		}
		if !objects[st.Target] {
			return fmt.Errorf("steps[%d]: unknown object %q", index, st.Target)
		}
		return nil
	}

	switch st.Op {
	case OpBegin:
		if _, err := engine.ParseMergeMode(st.Merge); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case OpDoProperty, OpUndoProperty:
		if err := needTarget(); err != nil {
			return err
		}
		if st.Property == "" {
			return fmt.Errorf("steps[%d]: property is required for %s", index, st.Op)
		}
	case OpDoMethod, OpUndoMethod:
		if err := needTarget(); err != nil {
			return err
		}
		if st.Method == "" {
			return fmt.Errorf("steps[%d]: method is required for %s", index, st.Op)
		}
	case OpDoReference, OpUndoReference, OpDestroy:
		return needTarget()
	case OpAdvance:
		if st.MS <= 0 {
			return fmt.Errorf("steps[%d]: ms must be positive for advance", index)
		}
	case OpExpect:
		if st.Expect == nil {
			return fmt.Errorf("steps[%d]: expect block is required for expect", index)
		}
		for name := range st.Expect.Objects {
			if !objects[name] {
				return fmt.Errorf("steps[%d].expect: unknown object %q", index, name)
			}
		}
		for name := range st.Expect.Refs {
			if !objects[name] {
				return fmt.Errorf("steps[%d].expect: unknown object %q", index, name)
			}
		}
	case OpCommit, OpCancel, OpUndo, OpRedo, OpClear, OpReenter:
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, st.Op)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" && a.Action == "" && a.Text == "" {
			return fmt.Errorf("assertions[%d]: event, action or text is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Lines) == 0 {
			return fmt.Errorf("assertions[%d]: lines list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" && a.Action == "" && a.Text == "" {
			return fmt.Errorf("assertions[%d]: event, action or text is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if a.Object == "" {
			return fmt.Errorf("assertions[%d]: object is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertHistory:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
