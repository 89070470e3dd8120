package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

// MaxMethodArgs bounds the arguments of a recorded method call.
const MaxMethodArgs = 8

// Direction selects which list of an action is being executed.
type Direction int

const (
	// DirDo executes the do list in stored order.
	DirDo Direction = iota
	// DirUndo executes the undo list in reverse order.
	DirUndo
)

func (d Direction) String() string {
	if d == DirUndo {
		return "undo"
	}
	return "do"
}

// Outcome is the result of executing one operation.
type Outcome int

const (
	OutcomeApplied Outcome = iota
	OutcomeSkippedDead
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeSkippedDead:
		return "skipped_dead"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// OpKind identifies an operation variant.
type OpKind int

const (
	OpMethod OpKind = iota
	OpProperty
	OpReference
	OpOpaque
	OpThunk
)

func (k OpKind) String() string {
	switch k {
	case OpMethod:
		return "method"
	case OpProperty:
		return "property"
	case OpReference:
		return "reference"
	case OpOpaque:
		return "opaque"
	case OpThunk:
		return "thunk"
	default:
		return fmt.Sprintf("op(%d)", int(k))
	}
}

// UndoableAction is a host-provided object that knows how to apply and
// revert itself.
type UndoableAction interface {
	Name() string
	Redo()
	Undo()
	CanApply() bool
}

// Operation is one reversible primitive. The variants are *MethodCall,
// *PropertySet, *ReferenceHold, *OpaqueAction and *Thunk.
type Operation interface {
	Kind() OpKind
	// Target is the handle the operation acts on, or NilHandle.
	Target() object.Handle
	String() string
	execute(reg object.Registry, dir Direction) (Outcome, error)
}

var (
	errNoMethodProtocol = errors.New("target does not implement the method protocol")
	errUnknownProperty  = errors.New("unknown property")
)

// MethodCall invokes a named method with stored arguments.
type MethodCall struct {
	target object.Handle
	Method string
	Args   []value.Value
}

func (op *MethodCall) Kind() OpKind          { return OpMethod }
func (op *MethodCall) Target() object.Handle { return op.target }
func (op *MethodCall) String() string {
	parts := make([]string, len(op.Args))
	for i, a := range op.Args {
		parts[i] = a.String()
	}
	return fmt.Sprintf("%s.%s(%s)", op.target, op.Method, strings.Join(parts, ", "))
}

func (op *MethodCall) execute(reg object.Registry, _ Direction) (Outcome, error) {
	obj := reg.Lookup(op.target)
	if obj == nil {
		return OutcomeSkippedDead, nil
	}
	caller, ok := obj.(object.MethodCaller)
	if !ok {
		return OutcomeFailed, fmt.Errorf("call %s on %s: %w", op.Method, op.target, errNoMethodProtocol)
	}
	if _, ce := caller.Call(op.Method, op.Args); !ce.OK() {
		return OutcomeFailed, fmt.Errorf("call %s on %s: %w", op.Method, op.target, ce)
	}
	return OutcomeApplied, nil
}

// PropertySet assigns a value to a named property.
type PropertySet struct {
	target   object.Handle
	Property string
	Value    value.Value
}

func (op *PropertySet) Kind() OpKind          { return OpProperty }
func (op *PropertySet) Target() object.Handle { return op.target }
func (op *PropertySet) String() string {
	return fmt.Sprintf("%s.%s = %s", op.target, op.Property, op.Value)
}

func (op *PropertySet) execute(reg object.Registry, _ Direction) (Outcome, error) {
	obj := reg.Lookup(op.target)
	if obj == nil {
		return OutcomeSkippedDead, nil
	}
	if holder, ok := obj.(object.PropertyHolder); ok {
		if !holder.Set(op.Property, op.Value) {
			return OutcomeFailed, fmt.Errorf("set %s on %s: %w", op.Property, op.target, errUnknownProperty)
		}
		return OutcomeApplied, nil
	}
	if err := setField(obj, op.Property, op.Value); err != nil {
		return OutcomeFailed, fmt.Errorf("set %s on %s: %w", op.Property, op.target, err)
	}
	return OutcomeApplied, nil
}

// ReferenceHold keeps a reference-counted object alive while the owning
// action remains in history. Executing it does nothing.
type ReferenceHold struct {
	target   object.Handle
	ref      object.RefCounted
	released bool
}

func (op *ReferenceHold) Kind() OpKind          { return OpReference }
func (op *ReferenceHold) Target() object.Handle { return op.target }
func (op *ReferenceHold) String() string        { return fmt.Sprintf("hold %s", op.target) }

func (op *ReferenceHold) execute(object.Registry, Direction) (Outcome, error) {
	return OutcomeApplied, nil
}

// release drops the held reference once. Safe to call repeatedly.
func (op *ReferenceHold) release() {
	if op.released {
		return
	}
	op.released = true
	if op.ref != nil {
		op.ref.Release()
	}
}

// Released reports whether the reference has been dropped.
func (op *ReferenceHold) Released() bool {
	return op.released
}

// OpaqueAction delegates to a host UndoableAction. The same operation is
// recorded in both lists; the direction picks Redo or Undo.
type OpaqueAction struct {
	Action UndoableAction
}

func (op *OpaqueAction) Kind() OpKind          { return OpOpaque }
func (op *OpaqueAction) Target() object.Handle { return object.NilHandle }
func (op *OpaqueAction) String() string        { return fmt.Sprintf("opaque %q", op.Action.Name()) }

func (op *OpaqueAction) execute(_ object.Registry, dir Direction) (Outcome, error) {
	if !op.Action.CanApply() {
		return OutcomeSkippedDead, nil
	}
	if dir == DirUndo {
		op.Action.Undo()
	} else {
		op.Action.Redo()
	}
	return OutcomeApplied, nil
}

// Thunk is a zero-argument callable paired with the entity that owns it.
// An owner of NilHandle means the thunk is unowned and always runs.
type Thunk struct {
	Fn    func()
	Owner object.Handle
}

func (op *Thunk) Kind() OpKind          { return OpThunk }
func (op *Thunk) Target() object.Handle { return op.Owner }
func (op *Thunk) String() string        { return fmt.Sprintf("thunk owned by %s", op.Owner) }

func (op *Thunk) execute(reg object.Registry, _ Direction) (Outcome, error) {
	if op.Owner != object.NilHandle && !reg.IsAlive(op.Owner) {
		return OutcomeSkippedDead, nil
	}
	op.Fn()
	return OutcomeApplied, nil
}

// mergeKey identifies the (target, member) an operation writes.
type mergeKey struct {
	target object.Handle
	kind   OpKind
	member string
}

// keyOf returns the merge key for method calls and property sets.
func keyOf(op Operation) (mergeKey, bool) {
	switch o := op.(type) {
	case *MethodCall:
		return mergeKey{target: o.target, kind: OpMethod, member: o.Method}, true
	case *PropertySet:
		return mergeKey{target: o.target, kind: OpProperty, member: o.Property}, true
	default:
		return mergeKey{}, false
	}
}

// releaseOp drops any reference the operation holds.
func releaseOp(op Operation) {
	if hold, ok := op.(*ReferenceHold); ok {
		hold.release()
	}
}
