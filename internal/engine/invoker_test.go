package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

func newTestInvoker(reg object.Registry, obs *Observers) *Invoker {
	return NewInvoker(reg, obs, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestInvoker_DoRunsInOrderUndoInReverse(t *testing.T) {
	reg := object.NewTable()
	var order []string
	ops := []Operation{
		&Thunk{Fn: func() { order = append(order, "first") }},
		&Thunk{Fn: func() { order = append(order, "second") }},
		&Thunk{Fn: func() { order = append(order, "third") }},
	}
	inv := newTestInvoker(reg, nil)

	sum := inv.Run(ops, DirDo)
	assert.Equal(t, 3, sum.Applied)
	assert.Equal(t, []string{"first", "second", "third"}, order)

	order = nil
	inv.Run(ops, DirUndo)
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestInvoker_SummaryCountsEveryOutcome(t *testing.T) {
	reg := object.NewTable()
	live := reg.Register(newFakeObject())
	dead := reg.Register(newFakeObject())
	reg.Destroy(dead)

	ops := []Operation{
		&PropertySet{target: live, Property: "x", Value: value.Int(1)},
		&PropertySet{target: dead, Property: "x", Value: value.Int(1)},
		&MethodCall{target: live, Method: "fly"},
		&PropertySet{target: live, Property: "y", Value: value.Int(2)},
	}

	sum := newTestInvoker(reg, nil).Run(ops, DirDo)

	assert.Equal(t, 2, sum.Applied)
	assert.Equal(t, 1, sum.Skipped)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 4, sum.Total())
	assert.False(t, sum.OK())
	require.Len(t, sum.Failures, 1)
	assert.Equal(t, 2, sum.Failures[0].Index)
	assert.Equal(t, "#1.fly()", sum.Failures[0].Op)
}

func TestInvoker_RecoversHostPanic(t *testing.T) {
	reg := object.NewTable()
	obj := newFakeObject()
	h := reg.Register(obj)

	ops := []Operation{
		&MethodCall{target: h, Method: "explode"},
		&PropertySet{target: h, Property: "x", Value: value.Int(5)},
	}

	var sum Summary
	require.NotPanics(t, func() {
		sum = newTestInvoker(reg, nil).Run(ops, DirDo)
	})

	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.Applied, "operations after a panic still run")
	assert.Contains(t, sum.Failures[0].Err.Error(), "host exploded")
	assert.Equal(t, value.Int(5), obj.prop("x"))
}

func TestInvoker_ObserversFireBeforeNextOperation(t *testing.T) {
	reg := object.NewTable()
	obj := newFakeObject()
	h := reg.Register(obj)

	var events []string
	obs := &Observers{
		property: func(_ any, target object.Handle, property string, v value.Value) {
			events = append(events, "property "+property+"="+v.String())
		},
		method: func(_ any, target object.Handle, method string, args [MaxObserverArgs]value.Value) {
			events = append(events, "method "+method+" "+args[0].String()+" "+args[1].String())
		},
	}
	ops := []Operation{
		&PropertySet{target: h, Property: "x", Value: value.Int(1)},
		&Thunk{Fn: func() { events = append(events, "thunk") }},
		&MethodCall{target: h, Method: "push", Args: []value.Value{value.String("a")}},
		&MethodCall{target: h, Method: "fly"},
	}

	newTestInvoker(reg, obs).Run(ops, DirDo)

	assert.Equal(t, []string{
		"property x=1",
		"thunk",
		`method push "a" nil`,
	}, events, "failed operations do not notify")
}

func TestObserverArgs_PadsAndTruncates(t *testing.T) {
	args := observerArgs([]value.Value{value.Int(1), value.Int(2)})
	assert.Equal(t, value.Int(1), args[0])
	assert.Equal(t, value.Int(2), args[1])
	for i := 2; i < MaxObserverArgs; i++ {
		assert.Equal(t, value.Nil{}, args[i])
	}

	many := make([]value.Value, MaxMethodArgs)
	for i := range many {
		many[i] = value.Int(int64(i))
	}
	args = observerArgs(many)
	assert.Equal(t, value.Int(4), args[MaxObserverArgs-1])
}

func TestSummary_String(t *testing.T) {
	s := Summary{Applied: 2, Skipped: 1}
	assert.Equal(t, "applied=2 skipped=1 failed=0", s.String())
	assert.True(t, s.OK())
}
