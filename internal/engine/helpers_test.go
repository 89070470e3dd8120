package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/testutil"
	"github.com/roach88/rewind/internal/value"
)

// fakeObject implements the property, method and ref-count protocols.
type fakeObject struct {
	props    map[string]value.Value
	sets     int
	calls    []string
	items    []string
	retained int
	released int
}

func newFakeObject() *fakeObject {
	return &fakeObject{props: make(map[string]value.Value)}
}

func (o *fakeObject) Set(property string, v value.Value) bool {
	if property == "readonly" {
		return false
	}
	o.sets++
	o.props[property] = v
	return true
}

func (o *fakeObject) Get(property string) (value.Value, bool) {
	v, ok := o.props[property]
	return v, ok
}

func (o *fakeObject) Call(method string, args []value.Value) (value.Value, object.CallError) {
	o.calls = append(o.calls, method)
	switch method {
	case "push":
		if len(args) != 1 {
			return value.Nil{}, object.Arity(len(args), 1)
		}
		s, ok := args[0].(value.String)
		if !ok {
			return value.Nil{}, object.CallError{Code: object.CallInvalidArgument, Argument: 0}
		}
		o.items = append(o.items, string(s))
		return value.Nil{}, object.CallError{}
	case "pop":
		if len(o.items) > 0 {
			o.items = o.items[:len(o.items)-1]
		}
		return value.Nil{}, object.CallError{}
	case "noop":
		return value.Nil{}, object.CallError{}
	case "explode":
		panic("host exploded")
	default:
		return value.Nil{}, object.Failed(object.CallInvalidMethod)
	}
}

func (o *fakeObject) Retain()  { o.retained++ }
func (o *fakeObject) Release() { o.released++ }

func (o *fakeObject) prop(name string) value.Value {
	v, ok := o.props[name]
	if !ok {
		return value.Nil{}
	}
	return v
}

// plainNode has no protocols; properties go through reflection.
type plainNode struct {
	X           int64
	DisplayName string
	Visible     bool
	Weight      float64
	Small       int8
	Meta        value.Value
	hidden      int
}

// fakeOpaque is a host action that counts its calls.
type fakeOpaque struct {
	name   string
	alive  bool
	redos  int
	undos  int
	events *[]string
}

func (a *fakeOpaque) Name() string   { return a.name }
func (a *fakeOpaque) CanApply() bool { return a.alive }

func (a *fakeOpaque) Redo() {
	a.redos++
	if a.events != nil {
		*a.events = append(*a.events, "redo "+a.name)
	}
}

func (a *fakeOpaque) Undo() {
	a.undos++
	if a.events != nil {
		*a.events = append(*a.events, "undo "+a.name)
	}
}

type testEngine struct {
	*Engine
	reg    *object.Table
	ticker *testutil.ManualTicker
}

func newTestEngine(t *testing.T, opts ...Option) *testEngine {
	t.Helper()
	reg := object.NewTable()
	ticker := testutil.NewManualTicker(0)
	base := []Option{
		WithTicker(ticker),
		WithIDGenerator(testutil.NewSequentialIDGenerator("act")),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	e := New(reg, append(base, opts...)...)
	t.Cleanup(func() { _ = e.Close() })
	return &testEngine{Engine: e, reg: reg, ticker: ticker}
}

// commitSet commits one action that sets property from undoVal to doVal.
func (te *testEngine) commitSet(t *testing.T, name string, mode MergeMode, h object.Handle, property string, doVal, undoVal value.Value) Summary {
	t.Helper()
	require.NoError(t, te.BeginAction(name, mode))
	require.NoError(t, te.AddDoProperty(h, property, doVal))
	require.NoError(t, te.AddUndoProperty(h, property, undoVal))
	sum, err := te.CommitAction()
	require.NoError(t, err)
	return sum
}

// commitNoop commits an action with a single no-op method call.
func (te *testEngine) commitNoop(t *testing.T, name string, h object.Handle) {
	t.Helper()
	require.NoError(t, te.BeginAction(name, MergeDisable))
	require.NoError(t, te.AddDoMethod(h, "noop"))
	require.NoError(t, te.AddUndoMethod(h, "noop"))
	_, err := te.CommitAction()
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, CodeOf(err), "unexpected error: %v", err)
}
