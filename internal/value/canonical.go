package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// RefKey is the single key of the JSON object that encodes a Ref.
const RefKey = "$ref"

// MarshalCanonical produces deterministic JSON for a Value.
// This is the serialization used for audit payloads and golden traces.
//
// Differences from json.Marshal:
//  1. Dict keys sorted bytewise
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings and keys are NFC normalized
//  4. Ref encodes as {"$ref": n}
//  5. NaN and infinities are rejected
func MarshalCanonical(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeCanonical(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v Value) error {
	switch val := v.(type) {
	case nil, Nil:
		buf.WriteString("null")
	case Bool:
		buf.WriteString(strconv.FormatBool(bool(val)))
	case Int:
		buf.WriteString(strconv.FormatInt(int64(val), 10))
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("non-finite float is not representable: %v", f)
		}
		buf.WriteString(Float(f).String())
	case String:
		return writeCanonicalString(buf, string(val))
	case Ref:
		buf.WriteString(`{"` + RefKey + `":`)
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
		buf.WriteByte('}')
	case Array:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return fmt.Errorf("array[%d]: %w", i, err)
			}
		}
		buf.WriteByte(']')
	case Dict:
		buf.WriteByte('{')
		for i, k := range val.SortedKeys() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return fmt.Errorf("dict key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return fmt.Errorf("dict[%q]: %w", k, err)
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unknown value type: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string without HTML escaping.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return err
	}
	// json.Encoder adds trailing newline, remove it
	buf.Write(bytes.TrimSuffix(tmp.Bytes(), []byte{'\n'}))
	return nil
}

// UnmarshalCanonical decodes JSON produced by MarshalCanonical. Numbers
// without a fraction or exponent decode as Int, all others as Float.
func UnmarshalCanonical(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode canonical: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("decode canonical: trailing data")
	}
	return fromJSON(raw)
}

func fromJSON(raw any) (Value, error) {
	switch val := raw.(type) {
	case json.Number:
		s := val.String()
		if strings.ContainsAny(s, ".eE") {
			f, err := val.Float64()
			if err != nil {
				return nil, err
			}
			return Float(f), nil
		}
		i, err := val.Int64()
		if err != nil {
			return nil, err
		}
		return Int(i), nil
	case []any:
		arr := make(Array, len(val))
		for i, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, err
			}
			arr[i] = conv
		}
		return arr, nil
	case map[string]any:
		if n, ok := val[RefKey].(json.Number); ok && len(val) == 1 {
			u, err := strconv.ParseUint(n.String(), 10, 64)
			if err != nil || u == 0 {
				return nil, fmt.Errorf("invalid %s: %s", RefKey, n)
			}
			return Ref(u), nil
		}
		dict := make(Dict, len(val))
		for k, elem := range val {
			conv, err := fromJSON(elem)
			if err != nil {
				return nil, err
			}
			dict[k] = conv
		}
		return dict, nil
	default:
		return FromAny(raw)
	}
}
