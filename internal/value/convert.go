package value

import (
	"fmt"
	"math"
)

// FromAny converts a decoded Go value (YAML, JSON, literals) into a Value.
//
// Maps with the single key "$ref" become a Ref, so scripts can pass object
// handles as arguments. Unsigned integers above math.MaxInt64 are rejected.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return Nil{}, nil
	case Value:
		return val, nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int8:
		return Int(val), nil
	case int16:
		return Int(val), nil
	case int32:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case uint:
		return fromUint(uint64(val))
	case uint8:
		return Int(val), nil
	case uint16:
		return Int(val), nil
	case uint32:
		return Int(val), nil
	case uint64:
		return fromUint(val)
	case float32:
		return Float(val), nil
	case float64:
		return Float(val), nil
	case string:
		return String(val), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		if ref, ok, err := refFromMap(val); ok || err != nil {
			return ref, err
		}
		dict := make(Dict, len(val))
		for k, elem := range val {
			conv, err := FromAny(elem)
			if err != nil {
				return nil, fmt.Errorf("[%q]: %w", k, err)
			}
			dict[k] = conv
		}
		return dict, nil
	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// MustFromAny is FromAny for literals known to be convertible. Panics otherwise.
func MustFromAny(v any) Value {
	out, err := FromAny(v)
	if err != nil {
		panic(err)
	}
	return out
}

func fromUint(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return nil, fmt.Errorf("integer out of range: %d", u)
	}
	return Int(int64(u)), nil
}

// refFromMap recognizes {"$ref": n}. ok is false when the map is an ordinary dict.
func refFromMap(m map[string]any) (Value, bool, error) {
	raw, present := m[RefKey]
	if !present || len(m) != 1 {
		return nil, false, nil
	}
	switch n := raw.(type) {
	case int:
		if n <= 0 {
			return nil, true, fmt.Errorf("%s must be positive, got %d", RefKey, n)
		}
		return Ref(n), true, nil
	case int64:
		if n <= 0 {
			return nil, true, fmt.Errorf("%s must be positive, got %d", RefKey, n)
		}
		return Ref(n), true, nil
	case uint64:
		if n == 0 {
			return nil, true, fmt.Errorf("%s must be positive, got 0", RefKey)
		}
		return Ref(n), true, nil
	default:
		return nil, true, fmt.Errorf("%s must be an integer, got %T", RefKey, raw)
	}
}

// ToAny converts a Value back into plain Go data, the inverse of FromAny.
func ToAny(v Value) any {
	switch val := v.(type) {
	case nil, Nil:
		return nil
	case Bool:
		return bool(val)
	case Int:
		return int64(val)
	case Float:
		return float64(val)
	case String:
		return string(val)
	case Ref:
		return map[string]any{RefKey: uint64(val)}
	case Array:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = ToAny(elem)
		}
		return out
	case Dict:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = ToAny(elem)
		}
		return out
	default:
		return nil
	}
}
