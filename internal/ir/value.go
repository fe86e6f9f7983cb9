package ir

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"unicode/utf16"
)

// Value is a sealed interface for annotation argument values.
// Only Str, Int, Bool, List and Object implement it. Floats and nulls are not
// representable, which keeps canonical encoding deterministic.
type Value interface {
	value()
}

// Str is a string argument (also used for class literals, e.g. Dnl.class -> "Dnl").
type Str string

// Int is an integer argument.
type Int int64

// Bool is a boolean argument.
type Bool bool

// List is an array argument.
type List []Value

// Object is a nested annotation or map argument.
type Object map[string]Value

func (Str) value()    {}
func (Int) value()    {}
func (Bool) value()   {}
func (List) value()   {}
func (Object) value() {}

// SortedKeys returns keys in RFC 8785 order (UTF-16 code units).
func (o Object) SortedKeys() []string {
	keys := make([]string, 0, len(o))
	for k := range o {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareUTF16)
	return keys
}

// Bool returns the boolean argument named key, or false if absent or not a bool.
func (o Object) Bool(key string) bool {
	b, ok := o[key].(Bool)
	return ok && bool(b)
}

// Strings returns the string elements of argument key.
// A single Str is treated as a one-element list, mirroring Java's implicit
// array syntax for single-valued annotation arrays.
func (o Object) Strings(key string) []string {
	switch v := o[key].(type) {
	case Str:
		return []string{string(v)}
	case List:
		var out []string
		for _, elem := range v {
			switch e := elem.(type) {
			case Str:
				out = append(out, string(e))
			case Object:
				// @JsonSubTypes.Type(value = X.class, name = "x")
				out = append(out, e.Strings("value")...)
			}
		}
		return out
	case Object:
		return v.Strings("value")
	default:
		return nil
	}
}

func compareUTF16(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))
	for i := 0; i < len(a16) && i < len(b16); i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}
	return len(a16) - len(b16)
}

// MarshalJSON encodes the object with sorted keys.
func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range o.SortedKeys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		vb, err := MarshalValue(o[k])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object, rejecting floats and nulls.
func (o *Object) UnmarshalJSON(data []byte) error {
	v, err := UnmarshalValue(data)
	if err != nil {
		return err
	}
	obj, ok := v.(Object)
	if !ok {
		return fmt.Errorf("expected object, got %T", v)
	}
	*o = obj
	return nil
}

// MarshalValue encodes a Value as plain (non-canonical) JSON.
func MarshalValue(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Str:
		return json.Marshal(string(val))
	case Int:
		return json.Marshal(int64(val))
	case Bool:
		return json.Marshal(bool(val))
	case List:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			eb, err := MarshalValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			buf.Write(eb)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case Object:
		return val.MarshalJSON()
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

// UnmarshalValue decodes JSON into a Value. Floats and nulls are rejected.
func UnmarshalValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	return ToValue(raw)
}

// ToValue converts decoded Go data (from JSON, YAML or CUE) to a Value.
func ToValue(v any) (Value, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a valid argument value")
	case Value:
		return val, nil
	case string:
		return Str(val), nil
	case bool:
		return Bool(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case json.Number:
		n, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("non-integer number %s is not a valid argument value", val)
		}
		return Int(n), nil
	case float32, float64:
		return nil, fmt.Errorf("floats are not valid argument values: %v", val)
	case []any:
		out := make(List, len(val))
		for i, elem := range val {
			ev, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = ev
		}
		return out, nil
	case map[string]any:
		out := make(Object, len(val))
		for k, elem := range val {
			ev, err := ToValue(elem)
			if err != nil {
				return nil, fmt.Errorf("%q: %w", k, err)
			}
			out[k] = ev
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}
