package store

import (
	"context"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

func posInf() float64 { return math.Inf(1) }

// widget is a minimal property and method host.
type widget struct {
	props map[string]value.Value
}

func (w *widget) Set(property string, v value.Value) bool {
	w.props[property] = v
	return true
}

func (w *widget) Get(property string) (value.Value, bool) {
	v, ok := w.props[property]
	return v, ok
}

func (w *widget) Call(method string, args []value.Value) (value.Value, object.CallError) {
	if method != "resize" {
		return value.Nil{}, object.Failed(object.CallInvalidMethod)
	}
	return value.Nil{}, object.CallError{}
}

func TestRecorder_JournalsEngineSteps(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := object.NewTable()
	h := reg.Register(&widget{props: map[string]value.Value{"x": value.Int(0)}})
	e := engine.New(reg, engine.WithLogger(logger))
	t.Cleanup(func() { _ = e.Close() })

	rec := NewRecorder(s, logger)
	require.NoError(t, rec.Attach(e))

	require.NoError(t, e.BeginAction("Resize", engine.MergeDisable))
	require.NoError(t, e.AddDoProperty(h, "x", value.Int(5)))
	require.NoError(t, e.AddDoMethod(h, "resize", value.Int(10), value.Int(20)))
	require.NoError(t, e.AddUndoProperty(h, "x", value.Int(0)))
	_, err := e.CommitAction()
	require.NoError(t, err)

	_, err = e.Undo()
	require.NoError(t, err)

	require.NoError(t, e.ClearHistory(true))
	require.NoError(t, e.ClearHistory(false), "a clear that keeps the version writes nothing")

	require.NoError(t, rec.Err())

	entries, err := s.ReadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	assert.Equal(t, KindCommit, entries[0].Kind)
	assert.Equal(t, "Resize", entries[0].ActionName)
	assert.Equal(t, uint64(2), entries[0].Version)
	assert.Equal(t, 2, entries[0].Applied)
	assert.NotEmpty(t, entries[0].ActionID)

	assert.Equal(t, KindUndo, entries[1].Kind)
	assert.Equal(t, entries[0].ActionID, entries[1].ActionID)
	assert.Equal(t, uint64(3), entries[1].Version)

	assert.Equal(t, KindClear, entries[2].Kind)
	assert.Equal(t, uint64(4), entries[2].Version)

	changes, err := s.ReadChanges(ctx, entries[0].Seq)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	assert.Equal(t, ChangeProperty, changes[0].Kind)
	assert.Equal(t, uint64(h), changes[0].Target)
	assert.Equal(t, value.Int(5), changes[0].Payload)
	assert.Equal(t, ChangeMethod, changes[1].Kind)
	assert.Equal(t, value.Array{value.Int(10), value.Int(20), value.Nil{}, value.Nil{}, value.Nil{}}, changes[1].Payload)

	changes, err = s.ReadChanges(ctx, entries[1].Seq)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, value.Int(0), changes[0].Payload)
}

func TestRecorder_AttachFailsWhenSlotTaken(t *testing.T) {
	s := createTestStore(t)
	e := engine.New(object.NewTable(), engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.SetPropertyObserver(func(any, object.Handle, string, value.Value) {}, nil))

	err := NewRecorder(s, nil).Attach(e)
	assert.Equal(t, engine.ErrCodeObserverSet, engine.CodeOf(err))
}

func TestRecorder_KeepsFirstError(t *testing.T) {
	s := createTestStore(t)
	rec := NewRecorder(s, slog.New(slog.NewTextHandler(io.Discard, nil)))

	rec.Step(engine.Op{Event: engine.EventNone})
	first := rec.Err()
	require.Error(t, first)

	require.NoError(t, s.Close())
	rec.Step(engine.Op{Event: engine.EventCommit, Version: 2})
	assert.Same(t, first, rec.Err())
}

func TestRecorder_KeepsTrailingNilArguments(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := object.NewTable()
	h := reg.Register(&widget{props: map[string]value.Value{}})
	e := engine.New(reg, engine.WithLogger(logger))
	t.Cleanup(func() { _ = e.Close() })
	require.NoError(t, NewRecorder(s, logger).Attach(e))

	require.NoError(t, e.BeginAction("Resize", engine.MergeDisable))
	require.NoError(t, e.AddDoMethod(h, "resize", value.Int(1), value.Nil{}))
	require.NoError(t, e.AddDoMethod(h, "resize", value.Int(1)))
	_, err := e.CommitAction()
	require.NoError(t, err)

	entries, err := s.ReadEntries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	changes, err := s.ReadChanges(ctx, entries[0].Seq)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	for _, c := range changes {
		args, ok := c.Payload.(value.Array)
		require.True(t, ok)
		require.Len(t, args, engine.MaxObserverArgs)
		assert.Equal(t, value.Int(1), args[0])
		assert.Equal(t, value.Nil{}, args[1])
	}
}

func TestRecorder_LeavesCommitSlotForHost(t *testing.T) {
	s := createTestStore(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	reg := object.NewTable()
	h := reg.Register(&widget{props: map[string]value.Value{}})
	e := engine.New(reg, engine.WithLogger(logger))
	t.Cleanup(func() { _ = e.Close() })

	var committed []string
	require.NoError(t, e.SetCommitObserver(func(_ any, name string) {
		committed = append(committed, name)
	}, nil))
	require.NoError(t, NewRecorder(s, logger).Attach(e))

	require.NoError(t, e.BeginAction("Move", engine.MergeDisable))
	require.NoError(t, e.AddDoProperty(h, "x", value.Int(1)))
	_, err := e.CommitAction()
	require.NoError(t, err)

	assert.Equal(t, []string{"Move"}, committed)
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
