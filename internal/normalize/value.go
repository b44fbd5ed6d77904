// Package normalize reshapes decoded understat JSON into flat tables.
//
// Every function in this package is a pure transformation: it performs no I/O
// and holds no shared state, so callers may run conversions concurrently.
// Objects keep their key order through decoding so the column order of a
// derived table follows the order fields appear in the source payload.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the JSON type held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is one key/value pair of an object.
type Field struct {
	Key   string
	Value Value
}

// Value is a decoded JSON value. The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	num    float64
	raw    string // number literal as it appeared in the source
	str    string
	items  []Value
	fields []Field
}

// Null returns the null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Number wraps a float.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f, raw: strconv.FormatFloat(f, 'f', -1, 64)}
}

// Int wraps an integer.
func Int(n int64) Value {
	return Value{kind: KindNumber, num: float64(n), raw: strconv.FormatInt(n, 10)}
}

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Array builds an array value.
func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, items: items}
}

// Object builds an object value. Later duplicates of a key replace earlier ones
// in place.
func Object(fields ...Field) Value {
	out := Value{kind: KindObject, fields: make([]Field, 0, len(fields))}
	for _, f := range fields {
		out.fields = setField(out.fields, f.Key, f.Value)
	}
	return out
}

func setField(fields []Field, key string, v Value) []Field {
	for i := range fields {
		if fields[i].Key == key {
			fields[i].Value = v
			return fields
		}
	}
	return append(fields, Field{Key: key, Value: v})
}

// FromAny converts an already-decoded Go structure (as produced by
// encoding/json into interface{}) into a Value. Map keys are sorted because Go
// maps carry no order.
func FromAny(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case int32:
		return Int(int64(x)), nil
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return Value{}, &ParseError{Msg: fmt.Sprintf("invalid number %q", x.String())}
		}
		return Value{kind: KindNumber, num: f, raw: x.String()}, nil
	case string:
		return String(x), nil
	case []any:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, iv)
		}
		return Array(items...), nil
	case []map[string]any:
		items := make([]Value, 0, len(x))
		for _, item := range x {
			iv, err := FromAny(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, iv)
		}
		return Array(items...), nil
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		fields := make([]Field, 0, len(keys))
		for _, k := range keys {
			fv, err := FromAny(x[k])
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, Field{Key: k, Value: fv})
		}
		return Value{kind: KindObject, fields: fields}, nil
	default:
		return Value{}, &ShapeError{Want: "decoded JSON", Got: fmt.Sprintf("%T", v)}
	}
}

// Kind reports the JSON type of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// IsObject reports whether v is an object.
func (v Value) IsObject() bool { return v.kind == KindObject }

// IsArray reports whether v is an array.
func (v Value) IsArray() bool { return v.kind == KindArray }

// IsScalar reports whether v is neither an array nor an object.
func (v Value) IsScalar() bool { return v.kind != KindArray && v.kind != KindObject }

// Len returns the number of array items or object fields.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.items)
	case KindObject:
		return len(v.fields)
	default:
		return 0
	}
}

// Items returns the elements of an array. Nil for other kinds.
func (v Value) Items() []Value {
	if v.kind != KindArray {
		return nil
	}
	return v.items
}

// Fields returns the ordered fields of an object. Nil for other kinds.
func (v Value) Fields() []Field {
	if v.kind != KindObject {
		return nil
	}
	return v.fields
}

// Keys returns the object keys in source order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.fields))
	for i, f := range v.fields {
		keys[i] = f.Key
	}
	return keys
}

// Get looks up an object field.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for _, f := range v.fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return Value{}, false
}

// With returns a copy of the object v with key set to val.
func (v Value) With(key string, val Value) Value {
	if v.kind != KindObject {
		return v
	}
	fields := make([]Field, len(v.fields), len(v.fields)+1)
	copy(fields, v.fields)
	return Value{kind: KindObject, fields: setField(fields, key, val)}
}

// Str returns the string held by v. Other kinds report false.
func (v Value) Str() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// BoolValue returns the boolean held by v.
func (v Value) BoolValue() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

// Float returns v as a float64. Numbers convert directly and strings are
// parsed; anything else reports false.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Int64 returns v as an integer. Values with a fractional part, or outside
// the int64 range, report false.
func (v Value) Int64() (int64, bool) {
	switch v.kind {
	case KindNumber:
		if n, err := strconv.ParseInt(v.raw, 10, 64); err == nil {
			return n, true
		}
		return floatToInt(v.num)
	case KindString:
		s := strings.TrimSpace(v.str)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	default:
		return 0, false
	}
}

// floatToInt converts a whole float that fits in an int64. 2^63 itself is
// representable as a float64 but not as an int64, hence the >= bound.
func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

// Text renders a scalar the way it should appear in a spreadsheet cell. Null
// renders as the empty string; arrays and objects render as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		if v.raw != "" {
			return v.raw
		}
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindString:
		return v.str
	default:
		b, _ := v.MarshalJSON()
		return string(b)
	}
}

// Equal reports deep equality. Numbers compare by value, not literal.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.num == o.num
	case KindString:
		return v.str == o.str
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for i := range v.fields {
			if v.fields[i].Key != o.fields[i].Key || !v.fields[i].Value.Equal(o.fields[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes v, keeping object key order.
func (v Value) MarshalJSON() ([]byte, error) {
	var sb strings.Builder
	if err := v.writeJSON(&sb); err != nil {
		return nil, err
	}
	return []byte(sb.String()), nil
}

func (v Value) writeJSON(sb *strings.Builder) error {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindBool:
		sb.WriteString(strconv.FormatBool(v.b))
	case KindNumber:
		if math.IsNaN(v.num) || math.IsInf(v.num, 0) {
			sb.WriteString("null")
			return nil
		}
		sb.WriteString(v.Text())
	case KindString:
		b, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		sb.Write(b)
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteByte(',')
			}
			if err := item.writeJSON(sb); err != nil {
				return err
			}
		}
		sb.WriteByte(']')
	case KindObject:
		sb.WriteByte('{')
		for i, f := range v.fields {
			if i > 0 {
				sb.WriteByte(',')
			}
			k, err := json.Marshal(f.Key)
			if err != nil {
				return err
			}
			sb.Write(k)
			sb.WriteByte(':')
			if err := f.Value.writeJSON(sb); err != nil {
				return err
			}
		}
		sb.WriteByte('}')
	}
	return nil
}

// UnmarshalJSON decodes JSON text into v, keeping object key order.
func (v *Value) UnmarshalJSON(data []byte) error {
	decoded, err := DecodeBytes(data)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// String implements fmt.Stringer.
func (v Value) String() string {
	if v.kind == KindString {
		return v.str
	}
	return v.Text()
}
