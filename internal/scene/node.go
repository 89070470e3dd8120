package scene

import (
	"slices"

	"github.com/roach88/rewind/internal/object"
	"github.com/roach88/rewind/internal/value"
)

// Node is one object in a Scene.
type Node struct {
	name     string
	props    map[string]value.Value
	children []object.Handle
	refs     int

	// free is set when the node was destroyed while held.
	free func()
}

func newNode(name string, props value.Dict) *Node {
	n := &Node{name: name, props: make(map[string]value.Value, len(props))}
	for k, v := range props {
		n.props[k] = value.Clone(v)
	}
	return n
}

// Name returns the display name.
func (n *Node) Name() string { return n.name }

// Refs returns the number of outstanding reference holds.
func (n *Node) Refs() int { return n.refs }

// Children returns a copy of the child handles in insertion order.
func (n *Node) Children() []object.Handle { return slices.Clone(n.children) }

// Set implements object.PropertyHolder. Only "name" and properties declared
// when the node was added can be written.
func (n *Node) Set(property string, v value.Value) bool {
	if property == "name" {
		s, ok := v.(value.String)
		if !ok {
			return false
		}
		n.name = string(s)
		return true
	}
	if _, ok := n.props[property]; !ok {
		return false
	}
	n.props[property] = value.Clone(v)
	return true
}

// Get implements object.PropertyHolder.
func (n *Node) Get(property string) (value.Value, bool) {
	if property == "name" {
		return value.String(n.name), true
	}
	v, ok := n.props[property]
	return v, ok
}

// Call implements object.MethodCaller.
func (n *Node) Call(method string, args []value.Value) (value.Value, object.CallError) {
	switch method {
	case "set_name":
		if len(args) != 1 {
			return value.Nil{}, object.Arity(len(args), 1)
		}
		s, ok := args[0].(value.String)
		if !ok {
			return value.Nil{}, invalidArg(0)
		}
		prev := n.name
		n.name = string(s)
		return value.String(prev), object.CallError{}

	case "add_child":
		h, cerr := childArg(args)
		if !cerr.OK() {
			return value.Nil{}, cerr
		}
		if slices.Contains(n.children, h) {
			return value.Nil{}, invalidArg(0)
		}
		n.children = append(n.children, h)
		return value.Nil{}, object.CallError{}

	case "remove_child":
		h, cerr := childArg(args)
		if !cerr.OK() {
			return value.Nil{}, cerr
		}
		i := slices.Index(n.children, h)
		if i < 0 {
			return value.Nil{}, invalidArg(0)
		}
		n.children = slices.Delete(n.children, i, i+1)
		return value.Nil{}, object.CallError{}

	case "translate":
		if len(args) != 2 {
			return value.Nil{}, object.Arity(len(args), 2)
		}
		for i, axis := range []string{"x", "y"} {
			if _, ok := numeric(args[i]); !ok {
				return value.Nil{}, invalidArg(i)
			}
			if _, ok := numeric(n.props[axis]); !ok {
				return value.Nil{}, object.Failed(object.CallOther)
			}
		}
		n.props["x"] = add(n.props["x"], args[0])
		n.props["y"] = add(n.props["y"], args[1])
		return value.Nil{}, object.CallError{}

	default:
		return value.Nil{}, object.Failed(object.CallInvalidMethod)
	}
}

// Retain implements object.RefCounted.
func (n *Node) Retain() { n.refs++ }

// Release implements object.RefCounted. Dropping the last hold on a
// destroyed node finishes its destruction.
func (n *Node) Release() {
	if n.refs > 0 {
		n.refs--
	}
	if n.refs == 0 && n.free != nil {
		free := n.free
		n.free = nil
		free()
	}
}

func childArg(args []value.Value) (object.Handle, object.CallError) {
	if len(args) != 1 {
		return object.NilHandle, object.Arity(len(args), 1)
	}
	r, ok := args[0].(value.Ref)
	if !ok || r == 0 {
		return object.NilHandle, invalidArg(0)
	}
	return object.FromRef(r), object.CallError{}
}

func invalidArg(i int) object.CallError {
	return object.CallError{Code: object.CallInvalidArgument, Argument: i}
}

func numeric(v value.Value) (float64, bool) {
	switch n := v.(type) {
	case value.Int:
		return float64(n), true
	case value.Float:
		return float64(n), true
	default:
		return 0, false
	}
}

// add keeps integer coordinates integral when both operands are Int.
func add(a, b value.Value) value.Value {
	ai, aInt := a.(value.Int)
	bi, bInt := b.(value.Int)
	if aInt && bInt {
		return ai + bi
	}
	af, _ := numeric(a)
	bf, _ := numeric(b)
	return value.Float(af + bf)
}

var (
	_ object.PropertyHolder = (*Node)(nil)
	_ object.MethodCaller   = (*Node)(nil)
	_ object.RefCounted     = (*Node)(nil)
)
