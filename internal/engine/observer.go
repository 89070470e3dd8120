package engine

import (
	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

// MaxObserverArgs is the number of method arguments passed to a MethodFunc.
// Arguments beyond it are recorded and executed but not reported.
const MaxObserverArgs = 5

// CommitFunc is called once after every successful commit, undo or redo.
type CommitFunc func(userData any, actionName string)

// MethodFunc is called after each successful method call. Unused argument
// positions hold value.Nil.
type MethodFunc func(userData any, target object.Handle, method string, args [MaxObserverArgs]value.Value)

// PropertyFunc is called after each successful property assignment.
type PropertyFunc func(userData any, target object.Handle, property string, v value.Value)

// VersionFunc is called whenever the history version changes: after every
// commit, undo and redo, and after ClearHistory(true). It runs after the
// CommitFunc of the same step.
type VersionFunc func(userData any, version uint64)

// Observers holds the callback slots. Nil slots are skipped.
//
// Observers must not mutate the engine; the engine rejects any attempt with
// ErrCodeReentrant.
type Observers struct {
	commit     CommitFunc
	commitData any

	method     MethodFunc
	methodData any

	property     PropertyFunc
	propertyData any

	version     VersionFunc
	versionData any
}

func (o *Observers) notifyCommit(name string) {
	if o.commit != nil {
		o.commit(o.commitData, name)
	}
}

func (o *Observers) notifyMethod(target object.Handle, method string, args []value.Value) {
	if o.method != nil {
		o.method(o.methodData, target, method, observerArgs(args))
	}
}

func (o *Observers) notifyProperty(target object.Handle, property string, v value.Value) {
	if o.property != nil {
		o.property(o.propertyData, target, property, v)
	}
}

func (o *Observers) notifyVersion(version uint64) {
	if o.version != nil {
		o.version(o.versionData, version)
	}
}

// observerArgs truncates or pads args to MaxObserverArgs.
func observerArgs(args []value.Value) [MaxObserverArgs]value.Value {
	var out [MaxObserverArgs]value.Value
	for i := range out {
		if i < len(args) && args[i] != nil {
			out[i] = args[i]
		} else {
			out[i] = value.Nil{}
		}
	}
	return out
}

// SetCommitObserver installs the commit callback. A nil fn clears the slot.
// Installing into an occupied slot fails with ErrCodeObserverSet.
func (e *Engine) SetCommitObserver(fn CommitFunc, userData any) error {
	const op = "set_commit_observer"
	if err := e.observerGuard(op, fn == nil, e.observers.commit != nil); err != nil {
		return err
	}
	e.observers.commit, e.observers.commitData = fn, userData
	if fn == nil {
		e.observers.commitData = nil
	}
	return nil
}

// SetMethodObserver installs the method callback. A nil fn clears the slot.
func (e *Engine) SetMethodObserver(fn MethodFunc, userData any) error {
	const op = "set_method_observer"
	if err := e.observerGuard(op, fn == nil, e.observers.method != nil); err != nil {
		return err
	}
	e.observers.method, e.observers.methodData = fn, userData
	if fn == nil {
		e.observers.methodData = nil
	}
	return nil
}

// SetPropertyObserver installs the property callback. A nil fn clears the slot.
func (e *Engine) SetPropertyObserver(fn PropertyFunc, userData any) error {
	const op = "set_property_observer"
	if err := e.observerGuard(op, fn == nil, e.observers.property != nil); err != nil {
		return err
	}
	e.observers.property, e.observers.propertyData = fn, userData
	if fn == nil {
		e.observers.propertyData = nil
	}
	return nil
}

// SetVersionObserver installs the version callback. A nil fn clears the slot.
func (e *Engine) SetVersionObserver(fn VersionFunc, userData any) error {
	const op = "set_version_observer"
	if err := e.observerGuard(op, fn == nil, e.observers.version != nil); err != nil {
		return err
	}
	e.observers.version, e.observers.versionData = fn, userData
	if fn == nil {
		e.observers.versionData = nil
	}
	return nil
}

func (e *Engine) observerGuard(op string, clearing, occupied bool) error {
	if e.closed {
		return e.reject(ErrCodeClosed, op, "engine is closed")
	}
	if e.busy || e.state == StateCommitting {
		return e.reject(ErrCodeReentrant, op, "called during execution")
	}
	if !clearing && occupied {
		return e.reject(ErrCodeObserverSet, op, "observer already installed")
	}
	return nil
}
