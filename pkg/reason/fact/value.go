package fact

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind enumerates the closed set of value kinds a fact may carry.
type Kind int

const (
	KindNull Kind = iota
	KindNumber
	KindString
	KindBool
	KindList
	KindObject
)

// String implements fmt.Stringer for Kind.
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	case KindList:
		return "list"
	case KindObject:
		return "object"
	default:
		return "null"
	}
}

// Value is a closed sum over the types a fact value can take:
// null, number, string, bool, ordered list, string-keyed object.
// The zero Value is null.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
	list []Value
	obj  map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{} }

// Number wraps a float64.
func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Bool wraps a bool.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// List wraps an ordered list of values.
func List(vs ...Value) Value { return Value{kind: KindList, list: vs} }

// Object wraps a string-keyed map of values.
func Object(m map[string]Value) Value { return Value{kind: KindObject, obj: m} }

// FromAny converts a value decoded by encoding/json or yaml into a Value.
// Unrecognized types map to their string form.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case float32:
		return Number(float64(t))
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(f)
	case string:
		return String(t)
	case []interface{}:
		list := make([]Value, len(t))
		for i, el := range t {
			list[i] = FromAny(el)
		}
		return Value{kind: KindList, list: list}
	case map[string]interface{}:
		obj := make(map[string]Value, len(t))
		for k, el := range t {
			obj[k] = FromAny(el)
		}
		return Object(obj)
	case map[interface{}]interface{}: // legacy yaml decoding
		obj := make(map[string]Value, len(t))
		for k, el := range t {
			obj[fmt.Sprint(k)] = FromAny(el)
		}
		return Object(obj)
	case []Value:
		return List(t...)
	case Value:
		return t
	default:
		return String(fmt.Sprint(t))
	}
}

// Kind reports the kind of the value.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Number returns the numeric payload. ok is false for non-numbers.
func (v Value) Number() (float64, bool) { return v.num, v.kind == KindNumber }

// Str returns the string payload. ok is false for non-strings.
func (v Value) Str() (string, bool) { return v.str, v.kind == KindString }

// Bool returns the boolean payload. ok is false for non-bools.
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// List returns the list payload. ok is false for non-lists.
func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

// Object returns the object payload. ok is false for non-objects.
func (v Value) Object() (map[string]Value, bool) { return v.obj, v.kind == KindObject }

// Field looks up a key on an object value.
func (v Value) Field(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	val, ok := v.obj[key]
	return val, ok
}

// Len returns the element count for lists and objects, the rune count
// for strings, and 0 otherwise.
func (v Value) Len() int {
	switch v.kind {
	case KindList:
		return len(v.list)
	case KindObject:
		return len(v.obj)
	case KindString:
		return len([]rune(v.str))
	default:
		return 0
	}
}

// Truthy reports the boolean interpretation of the value: bools as
// themselves, numbers as nonzero, strings as nonempty, lists and
// objects as nonempty, null as false.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindString:
		return v.str != ""
	case KindList:
		return len(v.list) > 0
	case KindObject:
		return len(v.obj) > 0
	default:
		return false
	}
}

// Equal reports deep equality between two values. Values of different
// kinds are never equal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, val := range v.obj {
			other, ok := o.obj[k]
			if !ok || !val.Equal(other) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders the value for traces and templates. Strings render
// without quotes; composites render in JSON-ish form.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		parts := make([]string, len(v.list))
		for i, el := range v.list {
			parts[i] = el.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case KindObject:
		keys := make([]string, 0, len(v.obj))
		for k := range v.obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + v.obj[k].String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// Interface converts the value back into the encoding/json object model.
func (v Value) Interface() interface{} {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.b
	case KindList:
		out := make([]interface{}, len(v.list))
		for i, el := range v.list {
			out[i] = el.Interface()
		}
		return out
	case KindObject:
		out := make(map[string]interface{}, len(v.obj))
		for k, el := range v.obj {
			out[k] = el.Interface()
		}
		return out
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}
