package scene

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/engine"
	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

func newBox(t *testing.T, s *Scene, name string) object.Handle {
	t.Helper()
	h, err := s.Add(name, value.Dict{"x": value.Int(0), "y": value.Int(0), "color": value.String("red")})
	require.NoError(t, err)
	return h
}

func TestScene_AddAndLookup(t *testing.T) {
	s := New()
	h := newBox(t, s, "box")

	got, ok := s.Handle("box")
	require.True(t, ok)
	assert.Equal(t, h, got)
	assert.True(t, s.IsAlive(h))
	assert.Equal(t, "box", s.Get("box").Name())
	assert.Equal(t, []string{"box"}, s.Names())
}

func TestScene_AddRejectsDuplicatesAndEmptyNames(t *testing.T) {
	s := New()
	newBox(t, s, "box")

	_, err := s.Add("box", nil)
	assert.Error(t, err)

	_, err = s.Add("", nil)
	assert.Error(t, err)
}

func TestScene_DestroyKeepsLabel(t *testing.T) {
	s := New()
	h := newBox(t, s, "box")

	require.NoError(t, s.Destroy("box"))
	assert.False(t, s.IsAlive(h))
	assert.Nil(t, s.Node(h))
	assert.Equal(t, "box", s.Label(h), "label survives destruction")
	assert.Empty(t, s.Names())

	assert.Error(t, s.Destroy("box"))

	// The label can be reused, but the old handle stays dead.
	h2 := newBox(t, s, "box")
	assert.NotEqual(t, h, h2)
	assert.False(t, s.IsAlive(h))
}

func TestScene_LabelForUnknownHandle(t *testing.T) {
	s := New()
	assert.Equal(t, object.Handle(99).String(), s.Label(99))
}

func TestNode_Properties(t *testing.T) {
	s := New()
	n := s.Node(newBox(t, s, "box"))

	assert.True(t, n.Set("x", value.Int(5)))
	v, ok := n.Get("x")
	require.True(t, ok)
	assert.Equal(t, value.Int(5), v)

	assert.False(t, n.Set("undeclared", value.Int(1)), "only declared properties are writable")
	_, ok = n.Get("undeclared")
	assert.False(t, ok)

	assert.True(t, n.Set("name", value.String("crate")))
	assert.Equal(t, "crate", n.Name())
	assert.False(t, n.Set("name", value.Int(1)))
}

func TestNode_PropertiesAreCopied(t *testing.T) {
	props := value.Dict{"tags": value.Array{value.String("a")}}
	s := New()
	h, err := s.Add("box", props)
	require.NoError(t, err)

	props["tags"].(value.Array)[0] = value.String("mutated")

	v, _ := s.Node(h).Get("tags")
	assert.Equal(t, value.Array{value.String("a")}, v)
}

func TestNode_Methods(t *testing.T) {
	s := New()
	parent := s.Node(newBox(t, s, "parent"))
	child := newBox(t, s, "child")

	tests := []struct {
		name     string
		method   string
		args     []value.Value
		wantCode object.CallErrorCode
	}{
		{"set_name", "set_name", []value.Value{value.String("root")}, object.CallOK},
		{"set_name wrong type", "set_name", []value.Value{value.Int(1)}, object.CallInvalidArgument},
		{"set_name arity", "set_name", nil, object.CallTooFewArgs},
		{"add_child", "add_child", []value.Value{child.Ref()}, object.CallOK},
		{"add_child duplicate", "add_child", []value.Value{child.Ref()}, object.CallInvalidArgument},
		{"add_child not a ref", "add_child", []value.Value{value.String("child")}, object.CallInvalidArgument},
		{"translate", "translate", []value.Value{value.Int(3), value.Int(-1)}, object.CallOK},
		{"translate arity", "translate", []value.Value{value.Int(3), value.Int(1), value.Int(0)}, object.CallTooManyArgs},
		{"translate bad arg", "translate", []value.Value{value.Int(3), value.Bool(true)}, object.CallInvalidArgument},
		{"remove_child", "remove_child", []value.Value{child.Ref()}, object.CallOK},
		{"remove_child missing", "remove_child", []value.Value{child.Ref()}, object.CallInvalidArgument},
		{"unknown", "spin", nil, object.CallInvalidMethod},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, cerr := parent.Call(tt.method, tt.args)
			assert.Equal(t, tt.wantCode, cerr.Code)
		})
	}

	assert.Equal(t, "root", parent.Name())
	assert.Empty(t, parent.Children())
	x, _ := parent.Get("x")
	y, _ := parent.Get("y")
	assert.Equal(t, value.Int(3), x)
	assert.Equal(t, value.Int(-1), y)
}

func TestNode_SetNameReturnsPrevious(t *testing.T) {
	s := New()
	n := s.Node(newBox(t, s, "box"))

	prev, cerr := n.Call("set_name", []value.Value{value.String("crate")})
	require.True(t, cerr.OK())
	assert.Equal(t, value.String("box"), prev)
}

func TestNode_TranslateMixedNumbers(t *testing.T) {
	s := New()
	h, err := s.Add("p", value.Dict{"x": value.Float(0.5), "y": value.Int(1)})
	require.NoError(t, err)
	n := s.Node(h)

	_, cerr := n.Call("translate", []value.Value{value.Int(1), value.Float(0.5)})
	require.True(t, cerr.OK())

	x, _ := n.Get("x")
	y, _ := n.Get("y")
	assert.Equal(t, value.Float(1.5), x)
	assert.Equal(t, value.Float(1.5), y)
}

func TestNode_TranslateWithoutCoordinates(t *testing.T) {
	s := New()
	h, err := s.Add("label", value.Dict{"text": value.String("hi")})
	require.NoError(t, err)

	_, cerr := s.Node(h).Call("translate", []value.Value{value.Int(1), value.Int(1)})
	assert.Equal(t, object.CallOther, cerr.Code)
}

func TestNode_RefCount(t *testing.T) {
	n := newNode("n", nil)
	n.Retain()
	n.Retain()
	n.Release()
	assert.Equal(t, 1, n.Refs())

	n.Release()
	n.Release()
	assert.Equal(t, 0, n.Refs(), "never negative")
}

func TestScene_Snapshot(t *testing.T) {
	s := New()
	parent := newBox(t, s, "parent")
	child := newBox(t, s, "child")
	_, cerr := s.Node(parent).Call("add_child", []value.Value{child.Ref()})
	require.True(t, cerr.OK())

	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, value.String("parent"), snap["parent"]["name"])
	assert.Equal(t, value.Array{value.String("child")}, snap["parent"]["children"])
	_, hasKids := snap["child"]["children"]
	assert.False(t, hasKids)
}

// The scene doubles as a realistic engine host.
func TestScene_DrivesEngine(t *testing.T) {
	s := New()
	box := newBox(t, s, "box")
	e := engine.New(s, engine.WithMergeWindow(0))
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.BeginAction("Move", engine.MergeDisable))
	require.NoError(t, e.AddDoMethod(box, "translate", value.Int(10), value.Int(20)))
	require.NoError(t, e.AddUndoMethod(box, "translate", value.Int(-10), value.Int(-20)))
	require.NoError(t, e.AddDoReference(box))
	sum, err := e.CommitAction()
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Applied)

	n := s.Get("box")
	x, _ := n.Get("x")
	assert.Equal(t, value.Int(10), x)
	assert.Equal(t, 1, n.Refs())

	_, err = e.Undo()
	require.NoError(t, err)
	x, _ = n.Get("x")
	assert.Equal(t, value.Int(0), x)

	require.NoError(t, e.ClearHistory(true))
	assert.Equal(t, 0, n.Refs(), "clearing history releases the hold")
}

func TestScene_DestroyWhileHeldIsDeferred(t *testing.T) {
	s := New()
	h := newBox(t, s, "box")
	n := s.Node(h)
	n.Retain()
	n.Retain()

	require.NoError(t, s.Destroy("box"))
	assert.True(t, s.IsAlive(h), "held node outlives destroy")
	assert.Same(t, n, s.Node(h))
	assert.Nil(t, s.Get("box"))
	assert.Empty(t, s.Names())
	assert.Empty(t, s.Snapshot())
	assert.Error(t, s.Destroy("box"), "already removed from the scene")

	n.Release()
	assert.True(t, s.IsAlive(h))

	n.Release()
	assert.False(t, s.IsAlive(h), "last release finishes destruction")
	assert.Nil(t, s.Node(h))
	assert.Equal(t, "box", s.Label(h))

	n.Retain()
	n.Release()
	assert.False(t, s.IsAlive(h), "stays dead")
}

func TestScene_HistoryKeepsDestroyedNodeUntilCleared(t *testing.T) {
	s := New()
	box := newBox(t, s, "box")
	e := engine.New(s, engine.WithMergeWindow(0))
	t.Cleanup(func() { _ = e.Close() })

	require.NoError(t, e.BeginAction("Move", engine.MergeDisable))
	require.NoError(t, e.AddDoMethod(box, "translate", value.Int(10), value.Int(20)))
	require.NoError(t, e.AddUndoMethod(box, "translate", value.Int(-10), value.Int(-20)))
	require.NoError(t, e.AddDoReference(box))
	_, err := e.CommitAction()
	require.NoError(t, err)

	n := s.Node(box)
	require.NoError(t, s.Destroy("box"))
	require.True(t, s.IsAlive(box))

	sum, err := e.Undo()
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Applied)
	x, _ := n.Get("x")
	assert.Equal(t, value.Int(0), x)

	require.NoError(t, e.ClearHistory(true))
	assert.False(t, s.IsAlive(box))
}
