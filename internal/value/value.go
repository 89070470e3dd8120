package value

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type of a Value.
type Kind int

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindRef
	KindArray
	KindDict
)

var kindNames = [...]string{
	KindNil:    "nil",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindRef:    "ref",
	KindArray:  "array",
	KindDict:   "dict",
}

// String returns the lowercase kind name.
func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("kind(%d)", int(k))
	}
	return kindNames[k]
}

// Value is a sealed interface over the argument types an operation may carry.
// Only Nil, Bool, Int, Float, String, Ref, Array and Dict implement it.
type Value interface {
	Kind() Kind
	String() string
	value() // Sealed
}

// Nil is the absent value. Padding positions in observer argument arrays are Nil.
type Nil struct{}

func (Nil) Kind() Kind     { return KindNil }
func (Nil) String() string { return "nil" }
func (Nil) value()         {}

// Bool is a boolean value.
type Bool bool

func (Bool) Kind() Kind       { return KindBool }
func (b Bool) String() string { return strconv.FormatBool(bool(b)) }
func (Bool) value()           {}

// Int is a signed 64-bit integer value.
type Int int64

func (Int) Kind() Kind       { return KindInt }
func (i Int) String() string { return strconv.FormatInt(int64(i), 10) }
func (Int) value()           {}

// Float is a 64-bit floating point value.
type Float float64

func (Float) Kind() Kind { return KindFloat }

// String renders the shortest representation that round-trips. Integral
// floats keep a trailing ".0" so they never read as an Int in traces.
func (f Float) String() string {
	s := strconv.FormatFloat(float64(f), 'g', -1, 64)
	if !math.IsInf(float64(f), 0) && !math.IsNaN(float64(f)) && !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
func (Float) value() {}

// String is a text value. The engine never interprets its bytes.
type String string

func (String) Kind() Kind       { return KindString }
func (s String) String() string { return strconv.Quote(string(s)) }
func (String) value()           {}

// Ref refers to a host object by its entity handle.
type Ref uint64

func (Ref) Kind() Kind       { return KindRef }
func (r Ref) String() string { return "#" + strconv.FormatUint(uint64(r), 10) }
func (Ref) value()           {}

// Array is an ordered list of values.
type Array []Value

func (Array) Kind() Kind { return KindArray }
func (a Array) String() string {
	parts := make([]string, len(a))
	for i, v := range a {
		parts[i] = render(v)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
func (Array) value() {}

// Dict maps string keys to values. Use SortedKeys for deterministic iteration.
type Dict map[string]Value

func (Dict) Kind() Kind { return KindDict }
func (d Dict) String() string {
	keys := d.SortedKeys()
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + ": " + render(d[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
func (Dict) value() {}

// SortedKeys returns the dict keys in bytewise order.
func (d Dict) SortedKeys() []string {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// render tolerates a nil interface inside containers.
func render(v Value) string {
	if v == nil {
		return Nil{}.String()
	}
	return v.String()
}

// KindOf returns the kind of v, treating a nil interface as KindNil.
func KindOf(v Value) Kind {
	if v == nil {
		return KindNil
	}
	return v.Kind()
}

// IsNil reports whether v is absent (a nil interface or Nil).
func IsNil(v Value) bool {
	return KindOf(v) == KindNil
}

// Equal reports deep equality. Values of different kinds are never equal, so
// Int(1) and Float(1) differ.
func Equal(a, b Value) bool {
	if KindOf(a) != KindOf(b) {
		return false
	}
	switch av := a.(type) {
	case nil, Nil:
		return true
	case Bool:
		return av == b.(Bool)
	case Int:
		return av == b.(Int)
	case Float:
		return av == b.(Float)
	case String:
		return av == b.(String)
	case Ref:
		return av == b.(Ref)
	case Array:
		bv := b.(Array)
		if len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !Equal(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Dict:
		bv := b.(Dict)
		if len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, ok := bv[k]
			if !ok || !Equal(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Clone returns a deep copy so stored arguments cannot be mutated through a
// caller's slice or map.
func Clone(v Value) Value {
	switch val := v.(type) {
	case nil:
		return Nil{}
	case Array:
		out := make(Array, len(val))
		for i, elem := range val {
			out[i] = Clone(elem)
		}
		return out
	case Dict:
		out := make(Dict, len(val))
		for k, elem := range val {
			out[k] = Clone(elem)
		}
		return out
	default:
		return val
	}
}
