package object

import (
	"fmt"
	"strconv"

	"github.com/roach88/rewind/internal/value"
)

// Handle is an opaque, stable identifier for a host object.
// A handle is never reused for a different object, even after destruction.
type Handle uint64

// NilHandle is never issued by a registry.
const NilHandle Handle = 0

// String renders the handle as "#n".
func (h Handle) String() string {
	return "#" + strconv.FormatUint(uint64(h), 10)
}

// Ref converts the handle to a value for use as an operation argument.
func (h Handle) Ref() value.Ref {
	return value.Ref(h)
}

// FromRef converts a Ref argument back to a handle.
func FromRef(r value.Ref) Handle {
	return Handle(r)
}

// Object is any live host object. The engine discovers capabilities by
// asserting the protocol interfaces below.
type Object any

// Registry resolves handles to live objects.
//
// The engine trusts the answers within a single operation's execution and
// never caches them across operations.
type Registry interface {
	// Lookup returns the live object or nil when the handle is dead.
	Lookup(h Handle) Object
	// IsAlive is equivalent to Lookup(h) != nil.
	IsAlive(h Handle) bool
}

// PropertyHolder is the property protocol. Set and Get report false for an
// unknown property.
type PropertyHolder interface {
	Set(property string, v value.Value) bool
	Get(property string) (value.Value, bool)
}

// MethodCaller is the method protocol.
type MethodCaller interface {
	Call(method string, args []value.Value) (value.Value, CallError)
}

// RefCounted objects can be kept alive by reference holds.
type RefCounted interface {
	Retain()
	Release()
}

// CallErrorCode classifies a method protocol failure.
type CallErrorCode int

const (
	CallOK CallErrorCode = iota
	CallInvalidMethod
	CallTooManyArgs
	CallTooFewArgs
	CallInvalidArgument
	CallOther
)

var callErrorNames = [...]string{
	CallOK:              "ok",
	CallInvalidMethod:   "no such method",
	CallTooManyArgs:     "too many arguments",
	CallTooFewArgs:      "too few arguments",
	CallInvalidArgument: "invalid argument",
	CallOther:           "call failed",
}

func (c CallErrorCode) String() string {
	if c < 0 || int(c) >= len(callErrorNames) {
		return fmt.Sprintf("call error(%d)", int(c))
	}
	return callErrorNames[c]
}

// CallError is returned by MethodCaller.Call. Argument is the index of the
// offending argument for CallInvalidArgument, and the expected count for the
// arity codes.
type CallError struct {
	Code     CallErrorCode
	Argument int
}

// OK reports whether the call succeeded.
func (e CallError) OK() bool {
	return e.Code == CallOK
}

// Error implements error so a CallError can be wrapped in summaries.
func (e CallError) Error() string {
	switch e.Code {
	case CallInvalidArgument:
		return fmt.Sprintf("%s at position %d", e.Code, e.Argument)
	case CallTooManyArgs, CallTooFewArgs:
		return fmt.Sprintf("%s (expected %d)", e.Code, e.Argument)
	default:
		return e.Code.String()
	}
}

// Failed builds a CallError with the given code.
func Failed(code CallErrorCode) CallError {
	return CallError{Code: code}
}

// Arity builds a CallError for a call that received got arguments but expected want.
func Arity(got, want int) CallError {
	if got > want {
		return CallError{Code: CallTooManyArgs, Argument: want}
	}
	return CallError{Code: CallTooFewArgs, Argument: want}
}
