package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

func TestMethodCall_Applied(t *testing.T) {
	reg := object.NewTable()
	obj := newFakeObject()
	h := reg.Register(obj)

	op := &MethodCall{target: h, Method: "push", Args: []value.Value{value.String("a")}}
	outcome, err := op.execute(reg, DirDo)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, []string{"a"}, obj.items)
}

func TestMethodCall_DeadTargetNeverCallsHost(t *testing.T) {
	reg := object.NewTable()
	obj := newFakeObject()
	h := reg.Register(obj)
	reg.Destroy(h)

	op := &MethodCall{target: h, Method: "push", Args: []value.Value{value.String("a")}}
	outcome, err := op.execute(reg, DirDo)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedDead, outcome)
	assert.Empty(t, obj.calls, "host must not be called for a dead target")
}

func TestMethodCall_ProtocolFailures(t *testing.T) {
	reg := object.NewTable()
	h := reg.Register(newFakeObject())
	plain := reg.Register(&plainNode{})

	tests := []struct {
		name string
		op   *MethodCall
		want string
	}{
		{
			name: "unknown method",
			op:   &MethodCall{target: h, Method: "fly"},
			want: "no such method",
		},
		{
			name: "wrong arity",
			op:   &MethodCall{target: h, Method: "push"},
			want: "too few arguments (expected 1)",
		},
		{
			name: "invalid argument",
			op:   &MethodCall{target: h, Method: "push", Args: []value.Value{value.Int(1)}},
			want: "invalid argument at position 0",
		},
		{
			name: "no method protocol",
			op:   &MethodCall{target: plain, Method: "push"},
			want: "does not implement the method protocol",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, err := tt.op.execute(reg, DirDo)
			assert.Equal(t, OutcomeFailed, outcome)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestPropertySet_UsesPropertyProtocol(t *testing.T) {
	reg := object.NewTable()
	obj := newFakeObject()
	h := reg.Register(obj)

	op := &PropertySet{target: h, Property: "x", Value: value.Int(42)}
	outcome, err := op.execute(reg, DirDo)

	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, value.Int(42), obj.prop("x"))
}

func TestPropertySet_UnknownPropertyFails(t *testing.T) {
	reg := object.NewTable()
	h := reg.Register(newFakeObject())

	op := &PropertySet{target: h, Property: "readonly", Value: value.Int(1)}
	outcome, err := op.execute(reg, DirDo)

	assert.Equal(t, OutcomeFailed, outcome)
	assert.ErrorIs(t, err, errUnknownProperty)
}

func TestPropertySet_DeadTargetNeverCallsHost(t *testing.T) {
	reg := object.NewTable()
	obj := newFakeObject()
	h := reg.Register(obj)
	reg.Destroy(h)

	op := &PropertySet{target: h, Property: "x", Value: value.Int(1)}
	outcome, err := op.execute(reg, DirUndo)

	require.NoError(t, err)
	assert.Equal(t, OutcomeSkippedDead, outcome)
	assert.Zero(t, obj.sets)
}

func TestPropertySet_ReflectionFallback(t *testing.T) {
	reg := object.NewTable()
	node := &plainNode{}
	h := reg.Register(node)

	set := func(property string, v value.Value) (Outcome, error) {
		return (&PropertySet{target: h, Property: property, Value: v}).execute(reg, DirDo)
	}

	outcome, err := set("x", value.Int(7))
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, int64(7), node.X)

	_, err = set("display_name", value.String("root"))
	require.NoError(t, err)
	assert.Equal(t, "root", node.DisplayName)

	_, err = set("visible", value.Bool(true))
	require.NoError(t, err)
	assert.True(t, node.Visible)

	_, err = set("weight", value.Int(3))
	require.NoError(t, err, "ints widen into float fields")
	assert.Equal(t, 3.0, node.Weight)

	_, err = set("meta", value.Dict{"k": value.Int(1)})
	require.NoError(t, err)
	assert.Equal(t, value.Dict{"k": value.Int(1)}, node.Meta)

	_, err = set("x", value.Nil{})
	require.NoError(t, err)
	assert.Zero(t, node.X, "nil resets to the zero value")
}

func TestPropertySet_ReflectionFallbackFailures(t *testing.T) {
	reg := object.NewTable()
	h := reg.Register(&plainNode{})

	tests := []struct {
		name     string
		property string
		v        value.Value
	}{
		{"unknown field", "nope", value.Int(1)},
		{"unexported field", "hidden", value.Int(1)},
		{"kind mismatch", "x", value.String("seven")},
		{"overflow", "small", value.Int(1000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &PropertySet{target: h, Property: tt.property, Value: tt.v}
			outcome, err := op.execute(reg, DirDo)
			assert.Equal(t, OutcomeFailed, outcome)
			assert.Error(t, err)
		})
	}
}

func TestThunk_OwnerLifecycle(t *testing.T) {
	reg := object.NewTable()
	owner := reg.Register(newFakeObject())

	calls := 0
	owned := &Thunk{Fn: func() { calls++ }, Owner: owner}
	unowned := &Thunk{Fn: func() { calls++ }}

	outcome, err := owned.execute(reg, DirDo)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, 1, calls)

	reg.Destroy(owner)

	outcome, _ = owned.execute(reg, DirDo)
	assert.Equal(t, OutcomeSkippedDead, outcome)
	assert.Equal(t, 1, calls, "thunk with dead owner must not run")

	outcome, _ = unowned.execute(reg, DirDo)
	assert.Equal(t, OutcomeApplied, outcome)
	assert.Equal(t, 2, calls)
}

func TestOpaqueAction_DispatchesByDirection(t *testing.T) {
	reg := object.NewTable()
	host := &fakeOpaque{name: "paint", alive: true}
	op := &OpaqueAction{Action: host}

	outcome, err := op.execute(reg, DirDo)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	_, _ = op.execute(reg, DirUndo)
	assert.Equal(t, 1, host.redos)
	assert.Equal(t, 1, host.undos)

	host.alive = false
	outcome, _ = op.execute(reg, DirDo)
	assert.Equal(t, OutcomeSkippedDead, outcome)
	assert.Equal(t, 1, host.redos)
}

func TestReferenceHold_ReleaseOnce(t *testing.T) {
	obj := newFakeObject()
	hold := &ReferenceHold{target: 1, ref: obj}

	outcome, err := hold.execute(object.NewTable(), DirDo)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome, "holds always apply, even for dead handles")

	hold.release()
	hold.release()
	releaseOp(hold)

	assert.True(t, hold.Released())
	assert.Equal(t, 1, obj.released)
}

func TestKeyOf(t *testing.T) {
	m := &MethodCall{target: 3, Method: "push"}
	p := &PropertySet{target: 3, Property: "push"}

	mk, ok := keyOf(m)
	require.True(t, ok)
	pk, ok := keyOf(p)
	require.True(t, ok)
	assert.NotEqual(t, mk, pk, "method and property with the same name must not collide")

	_, ok = keyOf(&Thunk{Fn: func() {}})
	assert.False(t, ok)
	_, ok = keyOf(&ReferenceHold{target: 3})
	assert.False(t, ok)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, `#2.push("a", 1)`,
		(&MethodCall{target: 2, Method: "push", Args: []value.Value{value.String("a"), value.Int(1)}}).String())
	assert.Equal(t, "#2.x = 4.5", (&PropertySet{target: 2, Property: "x", Value: value.Float(4.5)}).String())
	assert.Equal(t, "hold #9", (&ReferenceHold{target: 9}).String())
	assert.Equal(t, `opaque "paint"`, (&OpaqueAction{Action: &fakeOpaque{name: "paint"}}).String())
	assert.Equal(t, "thunk owned by #0", (&Thunk{}).String())
}
