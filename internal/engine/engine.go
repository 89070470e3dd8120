package engine

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

// State is the engine's position in its recording state machine.
type State int

const (
	// StateIdle means no action is in progress.
	StateIdle State = iota
	// StateRecording means an action is open and Add* calls append to it.
	StateRecording
	// StateCommitting means the open action is executing and moving into history.
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRecording:
		return "RECORDING"
	case StateCommitting:
		return "COMMITTING"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// Event names the last history-changing call that succeeded.
type Event int

const (
	EventNone Event = iota
	EventCommit
	EventUndo
	EventRedo
	EventClear
)

func (e Event) String() string {
	switch e {
	case EventNone:
		return "none"
	case EventCommit:
		return "commit"
	case EventUndo:
		return "undo"
	case EventRedo:
		return "redo"
	case EventClear:
		return "clear"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// Op describes the last successful commit, undo, redo or clear.
type Op struct {
	Event      Event
	ActionID   string
	ActionName string
	// Version is the history version after the call.
	Version uint64
	// Merged is true when a commit folded into its predecessor.
	Merged  bool
	Summary Summary
}

// Engine records actions and replays them through a strictly linear history.
//
// Thread-safety model:
//   - every method must be called from the goroutine that owns the engine
//   - Version() may be polled from other goroutines
//
// INVARIANTS:
//   - at most one action is in progress, and only in StateRecording
//   - a rejected call never changes state, history or version
//   - once poisoned, only ClearHistory(true) and Close are accepted
type Engine struct {
	registry object.Registry
	history  *History
	invoker  *Invoker
	current  *Action
	state    State

	// busy is set while undo/redo execute and while observers run.
	busy     bool
	closed   bool
	poisoned error

	observers Observers
	ticker    Ticker
	ids       IDGenerator
	logger    *slog.Logger

	maxSteps    int
	mergeWindow time.Duration

	lastOp Op
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxSteps bounds the number of retained actions.
//
// Default: 1000 (DefaultMaxSteps). 0 means unbounded.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.maxSteps = maxSteps
	}
}

// WithMergeWindow sets how close in time two same-named commits must be to
// merge. Default: 800ms. 0 or less disables the time check, so same-named
// mergeable commits always merge. The ticker counts milliseconds, so a
// positive window rounds up to the next whole millisecond.
func WithMergeWindow(window time.Duration) Option {
	return func(e *Engine) {
		e.mergeWindow = window
	}
}

// WithTicker replaces the wall-clock ticker used for merge windows.
func WithTicker(t Ticker) Option {
	return func(e *Engine) {
		e.ticker = t
	}
}

// WithIDGenerator replaces the UUIDv7 action ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithLogger sets the logger for diagnostics. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine that resolves handles through reg.
//
// Panics if reg is nil.
func New(reg object.Registry, opts ...Option) *Engine {
	if reg == nil {
		panic("engine: nil registry")
	}

	e := &Engine{
		registry:    reg,
		maxSteps:    DefaultMaxSteps,
		mergeWindow: DefaultMergeWindowMillis * time.Millisecond,
		ids:         UUIDv7Generator{},
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.ticker == nil {
		e.ticker = NewWallTicker()
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.maxSteps < 0 {
		e.maxSteps = 0
	}

	e.history = newHistory(e.maxSteps, windowMillis(e.mergeWindow))
	e.invoker = NewInvoker(reg, &e.observers, e.logger)
	return e
}

// windowMillis converts a merge window to ticker units. A positive window
// never truncates to 0, which would mean no time check at all.
func windowMillis(window time.Duration) int64 {
	if window <= 0 {
		return 0
	}
	return int64((window + time.Millisecond - 1) / time.Millisecond)
}

// BeginAction opens a new in-progress action.
//
// Requires StateIdle.
func (e *Engine) BeginAction(name string, mode MergeMode) error {
	const op = "begin_action"
	if err := e.guard(op); err != nil {
		return err
	}
	if e.state != StateIdle {
		return e.reject(ErrCodeMisuse, op, "action %q is already in progress", e.current.name)
	}
	if !mode.valid() {
		return e.reject(ErrCodeMisuse, op, "invalid merge mode %d", int(mode))
	}

	e.current = newAction(e.ids.Generate(), name, mode, e.ticker.Now())
	e.state = StateRecording

	e.logger.Debug("action begun",
		"action", name,
		"action_id", e.current.id,
		"merge_mode", mode.String(),
	)
	return nil
}

// AddDoMethod appends a method call to the in-progress action's do list.
func (e *Engine) AddDoMethod(target object.Handle, method string, args ...value.Value) error {
	return e.addMethod("add_do_method", DirDo, target, method, args)
}

// AddUndoMethod appends a method call to the in-progress action's undo list.
func (e *Engine) AddUndoMethod(target object.Handle, method string, args ...value.Value) error {
	return e.addMethod("add_undo_method", DirUndo, target, method, args)
}

func (e *Engine) addMethod(op string, dir Direction, target object.Handle, method string, args []value.Value) error {
	if err := e.recording(op); err != nil {
		return err
	}
	if target == object.NilHandle {
		return e.reject(ErrCodeMisuse, op, "nil target")
	}
	if method == "" {
		return e.reject(ErrCodeMisuse, op, "empty method name")
	}
	if len(args) > MaxMethodArgs {
		return e.reject(ErrCodeTooManyArgs, op, "%d arguments exceed the limit of %d", len(args), MaxMethodArgs)
	}

	stored := make([]value.Value, len(args))
	for i, a := range args {
		stored[i] = value.Clone(a)
	}
	return e.appendOp(op, dir, &MethodCall{target: target, Method: method, Args: stored})
}

// AddDoProperty appends a property assignment to the do list.
func (e *Engine) AddDoProperty(target object.Handle, property string, v value.Value) error {
	return e.addProperty("add_do_property", DirDo, target, property, v)
}

// AddUndoProperty appends a property assignment to the undo list.
func (e *Engine) AddUndoProperty(target object.Handle, property string, v value.Value) error {
	return e.addProperty("add_undo_property", DirUndo, target, property, v)
}

func (e *Engine) addProperty(op string, dir Direction, target object.Handle, property string, v value.Value) error {
	if err := e.recording(op); err != nil {
		return err
	}
	if target == object.NilHandle {
		return e.reject(ErrCodeMisuse, op, "nil target")
	}
	if property == "" {
		return e.reject(ErrCodeMisuse, op, "empty property name")
	}
	return e.appendOp(op, dir, &PropertySet{target: target, Property: property, Value: value.Clone(v)})
}

// AddDoThunk appends a callable to the do list. It is skipped when owner
// is dead; NilHandle means unowned.
func (e *Engine) AddDoThunk(fn func(), owner object.Handle) error {
	return e.addThunk("add_do_thunk", DirDo, fn, owner)
}

// AddUndoThunk appends a callable to the undo list.
func (e *Engine) AddUndoThunk(fn func(), owner object.Handle) error {
	return e.addThunk("add_undo_thunk", DirUndo, fn, owner)
}

func (e *Engine) addThunk(op string, dir Direction, fn func(), owner object.Handle) error {
	if err := e.recording(op); err != nil {
		return err
	}
	if fn == nil {
		return e.reject(ErrCodeMisuse, op, "nil function")
	}
	return e.appendOp(op, dir, &Thunk{Fn: fn, Owner: owner})
}

// AddDoReference keeps target alive while the action stays in history.
// A target implementing object.RefCounted is retained now and released
// when the action is destroyed.
func (e *Engine) AddDoReference(target object.Handle) error {
	return e.addReference("add_do_reference", DirDo, target)
}

// AddUndoReference is AddDoReference for the undo list.
func (e *Engine) AddUndoReference(target object.Handle) error {
	return e.addReference("add_undo_reference", DirUndo, target)
}

func (e *Engine) addReference(op string, dir Direction, target object.Handle) error {
	if err := e.recording(op); err != nil {
		return err
	}
	if target == object.NilHandle {
		return e.reject(ErrCodeMisuse, op, "nil target")
	}
	if !e.registry.IsAlive(target) {
		return e.reject(ErrCodeDeadTarget, op, "target %s is dead", target)
	}

	hold := &ReferenceHold{target: target}
	if ref, ok := e.registry.Lookup(target).(object.RefCounted); ok {
		ref.Retain()
		hold.ref = ref
	}
	if err := e.appendOp(op, dir, hold); err != nil {
		hold.release()
		return err
	}
	return nil
}

// AddOpaque records a host action in both lists. Commit and redo call its
// Redo; undo calls its Undo.
func (e *Engine) AddOpaque(a UndoableAction) error {
	const op = "add_opaque"
	if err := e.recording(op); err != nil {
		return err
	}
	if a == nil {
		return e.reject(ErrCodeMisuse, op, "nil action")
	}

	o := &OpaqueAction{Action: a}
	if err := e.appendOp(op, DirDo, o); err != nil {
		return err
	}
	return e.appendOp(op, DirUndo, o)
}

func (e *Engine) appendOp(op string, dir Direction, o Operation) error {
	var err error
	if dir == DirUndo {
		err = e.current.appendUndo(o)
	} else {
		err = e.current.appendDo(o)
	}
	if err != nil {
		return e.rejectErr(op, err)
	}
	return nil
}

// CommitAction executes the in-progress action's do list once and pushes
// it into history.
//
// Failed or skipped operations do not fail the commit; they are reported
// in the returned Summary.
func (e *Engine) CommitAction() (Summary, error) {
	const op = "commit_action"
	if err := e.guard(op); err != nil {
		return Summary{}, err
	}
	if e.state != StateRecording {
		return Summary{}, e.reject(ErrCodeMisuse, op, "no action in progress")
	}

	a := e.current
	e.current = nil
	e.state = StateCommitting
	a.seal()

	// An observer panic unwinds through here. The engine must come back
	// idle and the unpushed action must drop its references.
	pushed := false
	defer func() {
		if e.state == StateCommitting {
			e.state = StateIdle
		}
		if !pushed {
			a.release()
		}
	}()

	sum := a.redo(e.invoker)
	res := e.history.push(a)
	pushed = true
	e.state = StateIdle

	recordCommit(res)
	e.lastOp = Op{
		Event:      EventCommit,
		ActionID:   e.currentID(a),
		ActionName: a.name,
		Version:    e.history.Version(),
		Merged:     res.merged,
		Summary:    sum,
	}

	e.logger.Info("action committed",
		"action", a.name,
		"action_id", e.lastOp.ActionID,
		"version", e.lastOp.Version,
		"merged", res.merged,
		"truncated", res.truncated,
		"evicted", res.evicted,
		"applied", sum.Applied,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
	)

	e.verify(op)
	e.notifyCommit(a.name)
	e.notifyVersion()
	return sum, nil
}

// currentID returns the ID of the action that absorbed a: a itself, or its
// predecessor when a was merged.
func (e *Engine) currentID(a *Action) string {
	if cur := e.history.peekBack(); cur != nil {
		return cur.id
	}
	return a.id
}

// CancelAction discards the in-progress action without executing it.
func (e *Engine) CancelAction() error {
	const op = "cancel_action"
	if err := e.guard(op); err != nil {
		return err
	}
	if e.state != StateRecording {
		return e.reject(ErrCodeMisuse, op, "no action in progress")
	}

	e.logger.Debug("action cancelled", "action", e.current.name, "action_id", e.current.id)
	e.discardCurrent()
	return nil
}

func (e *Engine) discardCurrent() {
	if e.current != nil {
		e.current.release()
		e.current = nil
	}
	e.state = StateIdle
}

// Undo reverts the action at the cursor by running its undo list in
// reverse, then moves the cursor back.
//
// Returns ErrCodeNothingToUndo when no action is applied.
func (e *Engine) Undo() (Summary, error) {
	const op = "undo"
	if err := e.guard(op); err != nil {
		return Summary{}, err
	}
	if e.state != StateIdle {
		return Summary{}, e.reject(ErrCodeMisuse, op, "action %q is in progress", e.current.name)
	}

	a := e.history.peekBack()
	if a == nil {
		return Summary{}, e.reject(ErrCodeNothingToUndo, op, "no applied action")
	}

	var sum Summary
	e.exclusive(func() { sum = a.undo(e.invoker) })
	e.history.stepBack()
	e.finishStep(op, EventUndo, DirUndo, a, sum)
	return sum, nil
}

// Redo moves the cursor forward and runs the newly applied action's do list.
//
// Returns ErrCodeNothingToRedo when no action is reverted.
func (e *Engine) Redo() (Summary, error) {
	const op = "redo"
	if err := e.guard(op); err != nil {
		return Summary{}, err
	}
	if e.state != StateIdle {
		return Summary{}, e.reject(ErrCodeMisuse, op, "action %q is in progress", e.current.name)
	}

	a := e.history.stepForward()
	if a == nil {
		return Summary{}, e.reject(ErrCodeNothingToRedo, op, "no reverted action")
	}

	var sum Summary
	e.exclusive(func() { sum = a.redo(e.invoker) })
	e.finishStep(op, EventRedo, DirDo, a, sum)
	return sum, nil
}

func (e *Engine) finishStep(op string, ev Event, dir Direction, a *Action, sum Summary) {
	recordStep(dir)
	e.lastOp = Op{
		Event:      ev,
		ActionID:   a.id,
		ActionName: a.name,
		Version:    e.history.Version(),
		Summary:    sum,
	}

	e.logger.Info("history stepped",
		"op", op,
		"action", a.name,
		"action_id", a.id,
		"version", e.lastOp.Version,
		"applied", sum.Applied,
		"skipped", sum.Skipped,
		"failed", sum.Failed,
	)

	e.verify(op)
	e.notifyCommit(a.name)
	e.notifyVersion()
}

// ClearHistory destroys every action, and the in-progress one if any.
//
// bumpVersion advances the version so caches keyed on it are invalidated.
// ClearHistory(true) is the only call a poisoned engine accepts.
func (e *Engine) ClearHistory(bumpVersion bool) error {
	const op = "clear_history"
	if e.closed {
		return e.reject(ErrCodeClosed, op, "engine is closed")
	}
	if e.busy || e.state == StateCommitting {
		return e.reject(ErrCodeReentrant, op, "called during execution")
	}
	if e.poisoned != nil && !bumpVersion {
		return e.reject(ErrCodePoisoned, op, "history corrupt: %v", e.poisoned)
	}

	e.discardCurrent()
	n := e.history.clear(bumpVersion)
	if e.poisoned != nil {
		e.logger.Info("engine recovered from poisoned state")
		e.poisoned = nil
	}

	e.lastOp = Op{Event: EventClear, Version: e.history.Version()}
	e.logger.Info("history cleared",
		"destroyed", n,
		"version", e.lastOp.Version,
		"bumped", bumpVersion,
	)
	if bumpVersion {
		e.notifyVersion()
	}
	return nil
}

// Close destroys the in-progress action and the history, releasing every
// held reference. Further calls fail with ErrCodeClosed. Close is idempotent.
func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	if e.busy || e.state == StateCommitting {
		return e.reject(ErrCodeReentrant, "close", "called during execution")
	}

	e.discardCurrent()
	e.history.clear(false)
	e.closed = true
	e.logger.Debug("engine closed")
	return nil
}

// IsCommitting reports whether a commit is executing.
func (e *Engine) IsCommitting() bool {
	return e.state == StateCommitting
}

// CurrentActionName returns the name of the action at the cursor, or "".
func (e *Engine) CurrentActionName() string {
	return e.history.currentName()
}

// HasUndo reports whether an applied action exists.
func (e *Engine) HasUndo() bool { return e.history.hasUndo() }

// HasRedo reports whether a reverted action exists.
func (e *Engine) HasRedo() bool { return e.history.hasRedo() }

// Version returns the history version. It starts at 1.
func (e *Engine) Version() uint64 { return e.history.Version() }

// State returns the recording state.
func (e *Engine) State() State { return e.state }

// Len returns the number of actions in history.
func (e *Engine) Len() int { return e.history.len() }

// ActionNames returns the names of all actions, oldest first.
func (e *Engine) ActionNames() []string { return e.history.names() }

// LastSummary returns the execution summary of the last commit, undo or redo.
func (e *Engine) LastSummary() Summary { return e.lastOp.Summary }

// LastOp describes the last successful history-changing call.
func (e *Engine) LastOp() Op { return e.lastOp }

// Poisoned returns the invariant violation that poisoned the engine, or nil.
func (e *Engine) Poisoned() error { return e.poisoned }

// guard rejects calls on a closed, executing or poisoned engine.
func (e *Engine) guard(op string) error {
	if e.closed {
		return e.reject(ErrCodeClosed, op, "engine is closed")
	}
	if e.busy || e.state == StateCommitting {
		return e.reject(ErrCodeReentrant, op, "called during execution")
	}
	if e.poisoned != nil {
		return e.reject(ErrCodePoisoned, op, "history corrupt: %v", e.poisoned)
	}
	return nil
}

// recording is guard plus the StateRecording precondition of Add*.
func (e *Engine) recording(op string) error {
	if err := e.guard(op); err != nil {
		return err
	}
	if e.state != StateRecording {
		return e.reject(ErrCodeMisuse, op, "no action in progress")
	}
	return nil
}

func (e *Engine) reject(code ErrorCode, op, format string, args ...any) error {
	return e.rejectErr(op, newError(code, op, e.state, format, args...))
}

func (e *Engine) rejectErr(op string, err error) error {
	code := CodeOf(err)
	recordMisuse(code)

	switch code {
	case ErrCodeNothingToUndo, ErrCodeNothingToRedo:
		e.logger.Debug("call rejected", "op", op, "code", string(code))
	default:
		e.logger.Warn("call rejected",
			"op", op,
			"code", string(code),
			"state", e.state.String(),
			"error", err,
		)
	}
	return err
}

// exclusive runs fn with every mutating call rejected as reentrant.
func (e *Engine) exclusive(fn func()) {
	prev := e.busy
	e.busy = true
	defer func() { e.busy = prev }()
	fn()
}

func (e *Engine) notifyCommit(name string) {
	e.exclusive(func() { e.observers.notifyCommit(name) })
}

func (e *Engine) notifyVersion() {
	v := e.history.Version()
	e.exclusive(func() { e.observers.notifyVersion(v) })
}

// verify poisons the engine when a history invariant is broken.
func (e *Engine) verify(op string) {
	if err := e.history.checkInvariants(); err != nil {
		e.poisoned = err
		e.logger.Error("history invariant broken: engine poisoned",
			"op", op,
			"error", err,
		)
	}
}
