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

package bqservice

import (
	"fmt"

	"github.com/softlynx/gbq"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/protobuf/types/known/structpb"
)

func convertSchema(s *bq.TableSchema) []gbq.Field {
	if s == nil {
		return nil
	}
	fields := make([]gbq.Field, len(s.Fields))
	for i, f := range s.Fields {
		fields[i] = gbq.Field{Name: f.Name, Type: f.Type}
	}
	return fields
}

// convertRows converts rows in the REST "f"/"v" encoding to raw cells.
// Cells past the end of the schema are kept as plain values.
func convertRows(rows []*bq.TableRow, s *bq.TableSchema) ([][]*structpb.Value, error) {
	var fields []*bq.TableFieldSchema
	if s != nil {
		fields = s.Fields
	}
	out := make([][]*structpb.Value, len(rows))
	for i, r := range rows {
		cells := make([]*structpb.Value, len(r.F))
		for j, c := range r.F {
			var f *bq.TableFieldSchema
			if j < len(fields) {
				f = fields[j]
			}
			v, err := convertCell(c.V, f)
			if err != nil {
				return nil, fmt.Errorf("bqservice: row %d: %w", i, err)
			}
			cells[j] = v
		}
		out[i] = cells
	}
	return out, nil
}

// convertCell converts one cell. Repeated fields become lists and records
// become structs keyed by the record's field names.
func convertCell(v any, f *bq.TableFieldSchema) (*structpb.Value, error) {
	if v == nil {
		return structpb.NewNullValue(), nil
	}
	if f != nil && f.Mode == "REPEATED" {
		return convertRepeated(v, f)
	}
	if f != nil && (f.Type == "RECORD" || f.Type == "STRUCT") {
		return convertRecord(v, f)
	}
	if s, ok := v.(string); ok {
		return structpb.NewStringValue(s), nil
	}
	sv, err := structpb.NewValue(v)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", fieldName(f), err)
	}
	return sv, nil
}

func convertRepeated(v any, f *bq.TableFieldSchema) (*structpb.Value, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("repeated field %s: got %T, want a list", f.Name, v)
	}
	elem := &bq.TableFieldSchema{Name: f.Name, Type: f.Type, Fields: f.Fields}
	vals := make([]*structpb.Value, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("repeated field %s[%d]: got %T, want a {\"v\": ...} object", f.Name, i, it)
		}
		ev, err := convertCell(m["v"], elem)
		if err != nil {
			return nil, err
		}
		vals[i] = ev
	}
	return structpb.NewListValue(&structpb.ListValue{Values: vals}), nil
}

func convertRecord(v any, f *bq.TableFieldSchema) (*structpb.Value, error) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("record field %s: got %T, want an object", f.Name, v)
	}
	cells, _ := m["f"].([]any)
	if len(cells) != len(f.Fields) {
		return nil, fmt.Errorf("record field %s: got %d values, want %d", f.Name, len(cells), len(f.Fields))
	}
	st := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(cells))}
	for i, c := range cells {
		cm, ok := c.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("record field %s.%s: got %T, want a {\"v\": ...} object", f.Name, f.Fields[i].Name, c)
		}
		sv, err := convertCell(cm["v"], f.Fields[i])
		if err != nil {
			return nil, err
		}
		st.Fields[f.Fields[i].Name] = sv
	}
	return structpb.NewStructValue(st), nil
}

func fieldName(f *bq.TableFieldSchema) string {
	if f == nil {
		return "?"
	}
	return f.Name
}
