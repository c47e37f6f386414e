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

package gbq

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

// Row is one result row. Its cells are aligned with the result schema.
type Row struct {
	schema  []Field
	columns map[string]int // shared by all rows of a cursor
	cells   []*structpb.Value
}

// Len returns the number of cells in the row.
func (r *Row) Len() int { return len(r.cells) }

// Columns returns the column names of the row, in schema order.
func (r *Row) Columns() []string {
	names := make([]string, len(r.schema))
	for i, f := range r.schema {
		names[i] = f.Name
	}
	return names
}

// Cell returns the cell at position i.
func (r *Row) Cell(i int) (Cell, error) {
	if i < 0 || i >= len(r.cells) {
		return Cell{}, &UnknownColumnError{Index: i, Len: len(r.cells)}
	}
	c := Cell{v: r.cells[i]}
	if i < len(r.schema) {
		c.field = r.schema[i]
	}
	return c, nil
}

// Column returns the cell of the named column.
func (r *Row) Column(name string) (Cell, error) {
	i, ok := r.columns[name]
	if !ok {
		return Cell{}, &UnknownColumnError{Name: name, Len: len(r.cells)}
	}
	return r.Cell(i)
}

// Values returns the row's cells as Go values: nil for NULL, and otherwise
// whatever structpb.Value.AsInterface reports.
func (r *Row) Values() []any {
	out := make([]any, len(r.cells))
	for i, v := range r.cells {
		if isNull(v) {
			continue
		}
		out[i] = v.AsInterface()
	}
	return out
}

func (r *Row) String() string {
	parts := make([]string, len(r.cells))
	for i, v := range r.cells {
		parts[i] = Cell{v: v}.AsString().String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// Cell is a single value of a Row. The typed accessors parse the cell's text
// form; an explicit NULL yields an invalid Null* value for every accessor and
// is never an error.
type Cell struct {
	v     *structpb.Value
	field Field
}

// Name returns the cell's column name.
func (c Cell) Name() string { return c.field.Name }

// Type returns the cell's BigQuery column type.
func (c Cell) Type() string { return c.field.Type }

// Raw returns the underlying value. It is nil or a structpb null value for
// NULL cells.
func (c Cell) Raw() *structpb.Value { return c.v }

// IsNull reports whether the cell is an explicit NULL. An empty string is
// not NULL.
func (c Cell) IsNull() bool { return isNull(c.v) }

func isNull(v *structpb.Value) bool {
	if v == nil {
		return true
	}
	_, ok := v.GetKind().(*structpb.Value_NullValue)
	return ok || v.GetKind() == nil
}

// text returns the string form of a non-null cell. Records and arrays are
// rendered as JSON.
func (c Cell) text() string {
	switch k := c.v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		return strconv.FormatBool(k.BoolValue)
	default:
		b, err := protojson.Marshal(c.v)
		if err != nil {
			return c.v.String()
		}
		return string(b)
	}
}

func (c Cell) coercionError(want string, err error) error {
	if ne, ok := err.(*strconv.NumError); ok {
		err = ne.Err
	}
	return &TypeCoercionError{Column: c.field.Name, Want: want, Value: c.text(), Err: err}
}

// AsString returns the cell's text.
func (c Cell) AsString() NullString {
	if c.IsNull() {
		return NullString{}
	}
	return NullString{StringVal: c.text(), Valid: true}
}

// AsInt32 parses the cell as a 32-bit integer.
func (c Cell) AsInt32() (NullInt32, error) {
	if c.IsNull() {
		return NullInt32{}, nil
	}
	n, err := strconv.ParseInt(c.text(), 10, 32)
	if err != nil {
		return NullInt32{}, c.coercionError("int32", err)
	}
	return NullInt32{Int32: int32(n), Valid: true}, nil
}

// AsInt64 parses the cell as a 64-bit integer.
func (c Cell) AsInt64() (NullInt64, error) {
	if c.IsNull() {
		return NullInt64{}, nil
	}
	n, err := strconv.ParseInt(c.text(), 10, 64)
	if err != nil {
		return NullInt64{}, c.coercionError("int64", err)
	}
	return NullInt64{Int64: n, Valid: true}, nil
}

// AsFloat64 parses the cell as a floating point number.
func (c Cell) AsFloat64() (NullFloat64, error) {
	if c.IsNull() {
		return NullFloat64{}, nil
	}
	f, err := strconv.ParseFloat(c.text(), 64)
	if err != nil {
		return NullFloat64{}, c.coercionError("float64", err)
	}
	return NullFloat64{Float64: f, Valid: true}, nil
}

// AsBool parses the cell as a boolean.
func (c Cell) AsBool() (NullBool, error) {
	if c.IsNull() {
		return NullBool{}, nil
	}
	b, err := strconv.ParseBool(c.text())
	if err != nil {
		return NullBool{}, c.coercionError("bool", err)
	}
	return NullBool{Bool: b, Valid: true}, nil
}

// AsTime parses the cell as a point in time. Numeric text is seconds since
// the Unix epoch, which is how the REST API encodes TIMESTAMP columns.
// RFC 3339 text, DATETIME text and dates (midnight UTC) are also accepted.
func (c Cell) AsTime() (NullTime, error) {
	if c.IsNull() {
		return NullTime{}, nil
	}
	t, err := parseTime(c.text())
	if err != nil {
		return NullTime{}, c.coercionError("time.Time", err)
	}
	return NullTime{Time: t, Valid: true}, nil
}

// AsDate parses the cell as a civil date. Timestamps are truncated to their
// UTC date.
func (c Cell) AsDate() (NullDate, error) {
	if c.IsNull() {
		return NullDate{}, nil
	}
	s := c.text()
	if d, err := civil.ParseDate(s); err == nil {
		return NullDate{Date: d, Valid: true}, nil
	}
	t, err := parseTime(s)
	if err != nil {
		return NullDate{}, c.coercionError("civil.Date", err)
	}
	return NullDate{Date: civil.DateOf(t), Valid: true}, nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
}

var errTimeFormat = errors.New("unrecognized time format")

func parseTime(s string) (time.Time, error) {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, errTimeFormat
		}
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3).UTC(), nil
	}
	trimmed := strings.TrimSuffix(s, " UTC")
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, trimmed); err == nil {
			return t.UTC(), nil
		}
	}
	if d, err := civil.ParseDate(s); err == nil {
		return d.In(time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", errTimeFormat, s)
}
