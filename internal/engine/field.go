package engine

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/roach88/rewind/internal/value"
)

var valueType = reflect.TypeOf((*value.Value)(nil)).Elem()

// setField assigns v to the exported struct field matching property. It is
// the fallback for targets that do not implement the property protocol.
//
// Matching ignores case and underscores, so "pos_x" finds PosX.
func setField(obj any, property string, v value.Value) error {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return errUnknownProperty
	}

	want := normalizeFieldName(property)
	field := rv.Elem().FieldByNameFunc(func(name string) bool {
		return normalizeFieldName(name) == want
	})
	if !field.IsValid() || !field.CanSet() {
		return errUnknownProperty
	}
	return assignField(field, v)
}

func normalizeFieldName(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", ""))
}

// assignField converts v to the field's type. Int widens to float fields;
// everything else must match the field's kind.
func assignField(field reflect.Value, v value.Value) error {
	if value.IsNil(v) {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	if field.Type() == valueType {
		field.Set(reflect.ValueOf(v))
		return nil
	}

	switch field.Kind() {
	case reflect.Bool:
		if b, ok := v.(value.Bool); ok {
			field.SetBool(bool(b))
			return nil
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if i, ok := v.(value.Int); ok {
			if field.OverflowInt(int64(i)) {
				return fmt.Errorf("value %d overflows %s", i, field.Type())
			}
			field.SetInt(int64(i))
			return nil
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if i, ok := v.(value.Int); ok {
			if i < 0 || field.OverflowUint(uint64(i)) {
				return fmt.Errorf("value %d overflows %s", i, field.Type())
			}
			field.SetUint(uint64(i))
			return nil
		}
		if r, ok := v.(value.Ref); ok && field.Kind() == reflect.Uint64 {
			field.SetUint(uint64(r))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch f := v.(type) {
		case value.Float:
			field.SetFloat(float64(f))
			return nil
		case value.Int:
			field.SetFloat(float64(f))
			return nil
		}
	case reflect.String:
		if s, ok := v.(value.String); ok {
			field.SetString(string(s))
			return nil
		}
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	return fmt.Errorf("cannot assign %s to field of type %s", v.Kind(), field.Type())
}
