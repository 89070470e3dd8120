package harness

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/rewind/internal/config"
	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/scene"
	"github.com/roach88/rewind/internal/testutil"
	"github.com/roach88/rewind/internal/value"
)

// Sink receives every observer notification and completed step of a run.
// store.Recorder satisfies it.
//
// The engine has one slot per observer, and the harness occupies the
// property, method and version slots to build its trace, so other
// consumers are chained through a Sink. Step is called on every version
// change.
type Sink interface {
	Property(target object.Handle, property string, v value.Value)
	Method(target object.Handle, method string, args [engine.MaxObserverArgs]value.Value)
	Step(op engine.Op)
}

// Option configures a run.
type Option func(*Harness)

// WithSink forwards notifications to s.
func WithSink(s Sink) Option {
	return func(h *Harness) { h.sink = s }
}

// WithLogger sets the logger handed to the engine. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(h *Harness) { h.logger = l }
}

// WithBaseConfig sets the config that scenario overrides are layered on.
func WithBaseConfig(cfg config.Config) Option {
	return func(h *Harness) { h.base = cfg }
}

// Harness executes one scenario with a deterministic ticker and
// sequential action IDs.
type Harness struct {
	scene   *scene.Scene
	engine  *engine.Engine
	ticker  *testutil.ManualTicker
	handles map[string]object.Handle

	sink   Sink
	logger *slog.Logger
	base   config.Config

	result  *Result
	pending []TraceEvent

	// recording is the name of the action begun by the script, if any.
	recording string
	// reenter is armed by a reenter step and fired by the next property
	// notification.
	reenter string
}

// Run executes scenario against a fresh scene and engine.
//
// Expectation and assertion failures are reported in the Result. The
// returned error is reserved for scenarios that cannot run at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	h := &Harness{
		scene:   scene.New(),
		ticker:  testutil.NewManualTicker(0),
		handles: make(map[string]object.Handle),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		base:    config.Default(),
		result:  NewResult(),
	}
	for _, opt := range opts {
		opt(h)
	}

	for _, obj := range scenario.Objects {
		props, err := h.resolveDict(obj.Props)
		if err != nil {
			return nil, fmt.Errorf("object %q: %w", obj.Name, err)
		}
		handle, err := h.scene.Add(obj.Name, props)
		if err != nil {
			return nil, err
		}
		h.handles[obj.Name] = handle
	}

	cfg := scenario.Config.apply(h.base)
	engineOpts := append(cfg.EngineOptions(h.logger),
		engine.WithTicker(h.ticker),
		engine.WithIDGenerator(testutil.NewSequentialIDGenerator("act")),
	)
	h.engine = engine.New(h.scene, engineOpts...)
	defer h.engine.Close()

	if err := h.installObservers(); err != nil {
		return nil, fmt.Errorf("failed to install observers: %w", err)
	}

	for i, step := range scenario.Steps {
		if err := h.execute(i, step); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Op, err)
		}
	}

	result := h.result
	result.History = h.engine.ActionNames()
	result.Version = h.engine.Version()
	for name, props := range h.scene.Snapshot() {
		result.State[name] = value.ToAny(props).(map[string]any)
	}

	actx := &AssertionContext{Scene: h.scene, Resolve: h.resolve}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	h.logger.Info("scenario finished",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"events", len(result.Trace),
		"version", result.Version,
	)
	return result, nil
}

func (h *Harness) installObservers() error {
	e := h.engine
	if err := e.SetPropertyObserver(func(_ any, target object.Handle, property string, v value.Value) {
		h.pending = append(h.pending, TraceEvent{
			Type:   EventSet,
			Detail: fmt.Sprintf("%s.%s = %s", h.scene.Label(target), property, h.render(v)),
			Nested: true,
		})
		if h.sink != nil {
			h.sink.Property(target, property, v)
		}
		h.fireReenter()
	}, nil); err != nil {
		return err
	}

	if err := e.SetMethodObserver(func(_ any, target object.Handle, method string, args [engine.MaxObserverArgs]value.Value) {
		h.pending = append(h.pending, TraceEvent{
			Type:   EventCall,
			Detail: fmt.Sprintf("%s.%s(%s)", h.scene.Label(target), method, h.renderArgs(args)),
			Nested: true,
		})
		if h.sink != nil {
			h.sink.Method(target, method, args)
		}
	}, nil); err != nil {
		return err
	}

	return e.SetVersionObserver(func(_ any, _ uint64) {
		if h.sink != nil {
			h.sink.Step(e.LastOp())
		}
	}, nil)
}

// fireReenter attempts a nested BeginAction from inside an observer. The
// engine is expected to refuse it.
func (h *Harness) fireReenter() {
	if h.reenter == "" {
		return
	}
	name := h.reenter
	h.reenter = ""

	outcome := "accepted"
	if err := h.engine.BeginAction(name, engine.MergeDisable); err != nil {
		outcome = errorCode(err)
	}
	h.pending = append(h.pending, TraceEvent{Type: EventReenter, Action: name, Detail: outcome, Nested: true})
}

func (h *Harness) execute(index int, step Step) error {
	e := h.engine
	var err error

	switch step.Op {
	case OpBegin:
		mode, perr := engine.ParseMergeMode(step.Merge)
		if perr != nil {
			return perr
		}
		if err = e.BeginAction(step.Name, mode); err == nil {
			h.recording = step.Name
			h.emit(TraceEvent{Type: EventBegin, Action: step.Name, Detail: mode.String()})
		}

	case OpDoProperty, OpUndoProperty:
		target, v, rerr := h.targetAndValue(step)
		if rerr != nil {
			return rerr
		}
		if step.Op == OpDoProperty {
			err = e.AddDoProperty(target, step.Property, v)
		} else {
			err = e.AddUndoProperty(target, step.Property, v)
		}

	case OpDoMethod, OpUndoMethod:
		target, args, rerr := h.targetAndArgs(step)
		if rerr != nil {
			return rerr
		}
		if step.Op == OpDoMethod {
			err = e.AddDoMethod(target, step.Method, args...)
		} else {
			err = e.AddUndoMethod(target, step.Method, args...)
		}

	case OpDoReference, OpUndoReference:
		target, rerr := h.target(step.Target)
		if rerr != nil {
			return rerr
		}
		if step.Op == OpDoReference {
			err = e.AddDoReference(target)
		} else {
			err = e.AddUndoReference(target)
		}

	case OpCommit:
		if _, err = e.CommitAction(); err == nil {
			h.recording = ""
			h.emitOp(EventCommit)
		}

	case OpCancel:
		if err = e.CancelAction(); err == nil {
			h.emit(TraceEvent{Type: EventCancel, Action: h.recording})
			h.recording = ""
		}

	case OpUndo:
		if _, err = e.Undo(); err == nil {
			h.emitOp(EventUndo)
		}

	case OpRedo:
		if _, err = e.Redo(); err == nil {
			h.emitOp(EventRedo)
		}

	case OpClear:
		bump := step.Bump == nil || *step.Bump
		if err = e.ClearHistory(bump); err == nil {
			h.recording = ""
			h.emit(TraceEvent{Type: EventClear, Version: e.Version()})
		}

	case OpDestroy:
		if derr := h.scene.Destroy(step.Target); derr != nil {
			return derr
		}
		h.emit(TraceEvent{Type: EventDestroy, Detail: step.Target})

	case OpAdvance:
		d := time.Duration(step.MS) * time.Millisecond
		h.ticker.Advance(d)
		h.emit(TraceEvent{Type: EventAdvance, Detail: d.String()})

	case OpExpect:
		h.check(index, step.Expect)

	case OpReenter:
		h.reenter = step.Name
		if h.reenter == "" {
			h.reenter = "Nested"
		}

	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}

	return h.settle(index, step, err)
}

// settle records the step's error, if any, compares it with the expected
// error code and flushes observer notifications after the step's event.
func (h *Harness) settle(index int, step Step, err error) error {
	var code string
	if err != nil {
		var ee *engine.Error
		if !errors.As(err, &ee) {
			return err
		}
		code = string(ee.Code)
		h.emit(TraceEvent{Type: EventError, Action: step.Op, Detail: code})
	}

	switch {
	case step.Error == "" && code != "":
		h.result.AddError(fmt.Sprintf("step %d (%s): unexpected error: %v", index, step.Op, err))
	case step.Error != "" && code == "":
		h.result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got none", index, step.Op, step.Error))
	case step.Error != code:
		h.result.AddError(fmt.Sprintf("step %d (%s): expected error %s, got %s", index, step.Op, step.Error, code))
	}

	h.result.Trace = append(h.result.Trace, h.pending...)
	h.pending = nil
	return nil
}

func (h *Harness) emit(ev TraceEvent) {
	h.result.Trace = append(h.result.Trace, ev)
}

func (h *Harness) emitOp(typ string) {
	op := h.engine.LastOp()
	detail := fmt.Sprintf("applied=%d skipped=%d failed=%d", op.Summary.Applied, op.Summary.Skipped, op.Summary.Failed)
	if op.Merged {
		detail += " merged"
	}
	h.emit(TraceEvent{Type: typ, Action: op.ActionName, Version: op.Version, Detail: detail})
}

func (h *Harness) target(name string) (object.Handle, error) {
	handle, ok := h.handles[name]
	if !ok {
		return object.NilHandle, fmt.Errorf("unknown object %q", name)
	}
	return handle, nil
}

func (h *Harness) targetAndValue(step Step) (object.Handle, value.Value, error) {
	target, err := h.target(step.Target)
	if err != nil {
		return object.NilHandle, nil, err
	}
	v, err := h.resolve(step.Value)
	if err != nil {
		return object.NilHandle, nil, fmt.Errorf("value: %w", err)
	}
	return target, v, nil
}

func (h *Harness) targetAndArgs(step Step) (object.Handle, []value.Value, error) {
	target, err := h.target(step.Target)
	if err != nil {
		return object.NilHandle, nil, err
	}
	args := make([]value.Value, len(step.Args))
	for i, raw := range step.Args {
		if args[i], err = h.resolve(raw); err != nil {
			return object.NilHandle, nil, fmt.Errorf("args[%d]: %w", i, err)
		}
	}
	return target, args, nil
}

// resolve converts a YAML value, turning "@name" strings into references
// to scene objects (dead or alive).
func (h *Harness) resolve(raw any) (value.Value, error) {
	switch v := raw.(type) {
	case string:
		if name, ok := strings.CutPrefix(v, "@"); ok {
			handle, err := h.target(name)
			if err != nil {
				return nil, err
			}
			return handle.Ref(), nil
		}
	case []any:
		out := make(value.Array, len(v))
		for i, elem := range v {
			conv, err := h.resolve(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	case map[string]any:
		if _, isRef := v["$ref"]; isRef {
			return value.FromAny(v)
		}
		return h.resolveDict(v)
	}
	return value.FromAny(raw)
}

func (h *Harness) resolveDict(raw map[string]any) (value.Dict, error) {
	out := make(value.Dict, len(raw))
	for k, elem := range raw {
		conv, err := h.resolve(elem)
		if err != nil {
			return nil, fmt.Errorf("[%q]: %w", k, err)
		}
		out[k] = conv
	}
	return out, nil
}

// render prints references by object label.
func (h *Harness) render(v value.Value) string {
	if r, ok := v.(value.Ref); ok {
		return "@" + h.scene.Label(object.FromRef(r))
	}
	if v == nil {
		return value.Nil{}.String()
	}
	return v.String()
}

func (h *Harness) renderArgs(args [engine.MaxObserverArgs]value.Value) string {
	n := len(args)
	for n > 0 && value.IsNil(args[n-1]) {
		n--
	}
	parts := make([]string, n)
	for i := range parts {
		parts[i] = h.render(args[i])
	}
	return strings.Join(parts, ", ")
}

func errorCode(err error) string {
	var ee *engine.Error
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return err.Error()
}
