// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package template

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

// Kind identifies which member of the Value union is set.
type Kind int

const (
	// NullKind is the zero Kind. The zero Value is null.
	NullKind Kind = iota
	StringKind
	IntKind
	FloatKind
	BoolKind
	DateKind
	TimestampKind
	ListKind
	ContextKind
)

var kindNames = map[Kind]string{
	NullKind:      "null",
	StringKind:    "string",
	IntKind:       "int",
	FloatKind:     "float",
	BoolKind:      "bool",
	DateKind:      "date",
	TimestampKind: "timestamp",
	ListKind:      "list",
	ContextKind:   "context",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// timestampFormat matches the literal form BigQuery accepts for TIMESTAMP.
const timestampFormat = "2006-01-02 15:04:05.999999-07:00"

// Value is a dynamically typed value bound in a Context.
type Value struct {
	kind Kind
	s    string
	i    int64
	f    float64
	b    bool
	d    civil.Date
	t    time.Time
	list []Value
	ctx  *Context
}

// Null returns the null Value.
func Null() Value { return Value{} }

// String returns a string Value.
func String(s string) Value { return Value{kind: StringKind, s: s} }

// Int returns an integer Value.
func Int(i int64) Value { return Value{kind: IntKind, i: i} }

// Float returns a floating point Value.
func Float(f float64) Value { return Value{kind: FloatKind, f: f} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: BoolKind, b: b} }

// Date returns a calendar date Value.
func Date(d civil.Date) Value { return Value{kind: DateKind, d: d} }

// Timestamp returns a Value holding an instant in time.
func Timestamp(t time.Time) Value { return Value{kind: TimestampKind, t: t} }

// List returns a Value holding the given elements. The slice is copied.
func List(vs ...Value) Value {
	l := make([]Value, len(vs))
	copy(l, vs)
	return Value{kind: ListKind, list: l}
}

// Nested returns a Value holding a nested Context.
func Nested(c *Context) Value {
	if c == nil {
		return Null()
	}
	return Value{kind: ContextKind, ctx: c}
}

// Kind reports the kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == NullKind }

// Len returns the number of elements of a list Value, and 0 otherwise.
func (v Value) Len() int { return len(v.list) }

// Index returns the i'th element of a list Value.
func (v Value) Index(i int) (Value, bool) {
	if v.kind != ListKind || i < 0 || i >= len(v.list) {
		return Value{}, false
	}
	return v.list[i], true
}

// Context returns the nested Context of a context Value, or nil.
func (v Value) Context() *Context {
	if v.kind != ContextKind {
		return nil
	}
	return v.ctx
}

// Interface returns v as a plain Go value: nil, string, int64, float64, bool,
// civil.Date, time.Time, []any or map[string]any.
func (v Value) Interface() any {
	switch v.kind {
	case StringKind:
		return v.s
	case IntKind:
		return v.i
	case FloatKind:
		return v.f
	case BoolKind:
		return v.b
	case DateKind:
		return v.d
	case TimestampKind:
		return v.t
	case ListKind:
		out := make([]any, len(v.list))
		for i, e := range v.list {
			out[i] = e.Interface()
		}
		return out
	case ContextKind:
		out := map[string]any{}
		for k, e := range v.ctx.Snapshot() {
			out[k] = e.Interface()
		}
		return out
	default:
		return nil
	}
}

// Equal reports whether v and w hold the same kind and contents.
// Nested contexts compare by their visible bindings.
func (v Value) Equal(w Value) bool {
	if v.kind != w.kind {
		return false
	}
	switch v.kind {
	case NullKind:
		return true
	case StringKind:
		return v.s == w.s
	case IntKind:
		return v.i == w.i
	case FloatKind:
		return v.f == w.f
	case BoolKind:
		return v.b == w.b
	case DateKind:
		return v.d == w.d
	case TimestampKind:
		return v.t.Equal(w.t)
	case ListKind:
		if len(v.list) != len(w.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(w.list[i]) {
				return false
			}
		}
		return true
	case ContextKind:
		a, b := v.ctx.Snapshot(), w.ctx.Snapshot()
		if len(a) != len(b) {
			return false
		}
		for k, av := range a {
			bv, ok := b[k]
			if !ok || !av.Equal(bv) {
				return false
			}
		}
		return true
	}
	return false
}

// String renders v the way it is substituted into query text.
func (v Value) String() string {
	s, err := v.render()
	if err != nil {
		return fmt.Sprintf("%%!(%v)", err)
	}
	return s
}

func (v Value) render() (string, error) {
	switch v.kind {
	case NullKind:
		return "NULL", nil
	case StringKind:
		return v.s, nil
	case IntKind:
		return strconv.FormatInt(v.i, 10), nil
	case FloatKind:
		return strconv.FormatFloat(v.f, 'g', -1, 64), nil
	case BoolKind:
		return strconv.FormatBool(v.b), nil
	case DateKind:
		return v.d.String(), nil
	case TimestampKind:
		return v.t.UTC().Format(timestampFormat), nil
	case ListKind:
		parts := make([]string, len(v.list))
		for i, e := range v.list {
			s, err := e.render()
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return strings.Join(parts, ", "), nil
	case ContextKind:
		return "", fmt.Errorf("cannot render a nested context")
	}
	return "", fmt.Errorf("unknown value kind %v", v.kind)
}

// ValueOf converts a Go value into a Value. Slices and arrays become lists,
// maps with string keys become nested contexts (keys in sorted order).
// Pointers are followed; a nil pointer is NULL.
func ValueOf(x any) (Value, error) {
	if c, ok := x.(*Context); ok {
		return Nested(c), nil
	}
	if rv := reflect.ValueOf(x); rv.Kind() == reflect.Pointer {
		return pointerValue(rv)
	}
	switch x := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case int:
		return Int(int64(x)), nil
	case int8:
		return Int(int64(x)), nil
	case int16:
		return Int(int64(x)), nil
	case int32:
		return Int(int64(x)), nil
	case int64:
		return Int(x), nil
	case uint:
		return uintValue(uint64(x))
	case uint8:
		return Int(int64(x)), nil
	case uint16:
		return Int(int64(x)), nil
	case uint32:
		return Int(int64(x)), nil
	case uint64:
		return uintValue(x)
	case float32:
		return Float(float64(x)), nil
	case float64:
		return Float(x), nil
	case civil.Date:
		return Date(x), nil
	case time.Time:
		return Timestamp(x), nil
	case []byte:
		return String(string(x)), nil
	case fmt.Stringer:
		return String(x.String()), nil
	}
	return reflectValueOf(reflect.ValueOf(x))
}

// pointerValue converts the value rv points to. A pointer whose target is
// not convertible still converts through its String method, if it has one.
func pointerValue(rv reflect.Value) (Value, error) {
	if rv.IsNil() {
		return Null(), nil
	}
	v, err := ValueOf(rv.Elem().Interface())
	if err != nil {
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return String(s.String()), nil
		}
		return Value{}, err
	}
	return v, nil
}

func uintValue(u uint64) (Value, error) {
	if u > math.MaxInt64 {
		return Value{}, fmt.Errorf("template: %d overflows int64", u)
	}
	return Int(int64(u)), nil
}

func reflectValueOf(rv reflect.Value) (Value, error) {
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return Null(), nil
		}
		vs := make([]Value, rv.Len())
		for i := range vs {
			v, err := ValueOf(rv.Index(i).Interface())
			if err != nil {
				return Value{}, err
			}
			vs[i] = v
		}
		return Value{kind: ListKind, list: vs}, nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("template: map key type %v is not string", rv.Type().Key())
		}
		if rv.IsNil() {
			return Null(), nil
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		c := NewContext()
		for _, k := range keys {
			v, err := ValueOf(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return Value{}, err
			}
			c.Set(k, v)
		}
		return Nested(c), nil
	}
	if !rv.IsValid() {
		return Null(), nil
	}
	return Value{}, fmt.Errorf("template: unsupported value type %v", rv.Type())
}

// Values converts each argument with ValueOf.
func Values(xs ...any) ([]Value, error) {
	vs := make([]Value, len(xs))
	for i, x := range xs {
		v, err := ValueOf(x)
		if err != nil {
			return nil, fmt.Errorf("template: parameter %d: %w", i, err)
		}
		vs[i] = v
	}
	return vs, nil
}
