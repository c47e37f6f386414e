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
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/softlynx/gbq"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/structpb"
)

var nestedSchema = &bq.TableSchema{Fields: []*bq.TableFieldSchema{
	{Name: "id", Type: "INTEGER"},
	{Name: "tags", Type: "STRING", Mode: "REPEATED"},
	{Name: "owner", Type: "RECORD", Fields: []*bq.TableFieldSchema{
		{Name: "name", Type: "STRING"},
		{Name: "emails", Type: "STRING", Mode: "REPEATED"},
	}},
	{Name: "events", Type: "RECORD", Mode: "REPEATED", Fields: []*bq.TableFieldSchema{
		{Name: "at", Type: "TIMESTAMP"},
	}},
}}

// rowsFromJSON decodes rows the way the REST client does, so cells hold
// the generic JSON types.
func rowsFromJSON(t *testing.T, s string) []*bq.TableRow {
	t.Helper()
	var rows []*bq.TableRow
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		t.Fatal(err)
	}
	return rows
}

func TestConvertSchema(t *testing.T) {
	want := []gbq.Field{
		{Name: "id", Type: "INTEGER"},
		{Name: "tags", Type: "STRING"},
		{Name: "owner", Type: "RECORD"},
		{Name: "events", Type: "RECORD"},
	}
	if diff := cmp.Diff(want, convertSchema(nestedSchema)); diff != "" {
		t.Errorf("schema mismatch (-want +got):\n%s", diff)
	}
	if got := convertSchema(nil); got != nil {
		t.Errorf("convertSchema(nil) = %v, want nil", got)
	}
}

func TestConvertRows(t *testing.T) {
	rows := rowsFromJSON(t, `[
		{"f": [
			{"v": "7"},
			{"v": [{"v": "a"}, {"v": "b"}]},
			{"v": {"f": [{"v": "ann"}, {"v": [{"v": "ann@example.com"}]}]}},
			{"v": [{"v": {"f": [{"v": "1.7e9"}]}}]}
		]},
		{"f": [
			{"v": null},
			{"v": []},
			{"v": null},
			{"v": [{"v": {"f": [{"v": null}]}}]}
		]}
	]`)
	got, err := convertRows(rows, nestedSchema)
	if err != nil {
		t.Fatal(err)
	}

	list := func(vs ...*structpb.Value) *structpb.Value {
		return structpb.NewListValue(&structpb.ListValue{Values: vs})
	}
	record := func(fields map[string]*structpb.Value) *structpb.Value {
		return structpb.NewStructValue(&structpb.Struct{Fields: fields})
	}
	str := structpb.NewStringValue
	want := [][]*structpb.Value{
		{
			str("7"),
			list(str("a"), str("b")),
			record(map[string]*structpb.Value{
				"name":   str("ann"),
				"emails": list(str("ann@example.com")),
			}),
			list(record(map[string]*structpb.Value{"at": str("1.7e9")})),
		},
		{
			structpb.NewNullValue(),
			list(),
			structpb.NewNullValue(),
			list(record(map[string]*structpb.Value{"at": structpb.NewNullValue()})),
		},
	}
	if diff := cmp.Diff(want, got, protocmp.Transform()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertRowsWithoutSchema(t *testing.T) {
	rows := rowsFromJSON(t, `[{"f": [{"v": "x"}, {"v": true}, {"v": null}]}]`)
	got, err := convertRows(rows, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]*structpb.Value{{structpb.NewStringValue("x"), structpb.NewBoolValue(true), structpb.NewNullValue()}}
	if diff := cmp.Diff(want, got, protocmp.Transform()); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestConvertRowsErrors(t *testing.T) {
	testCases := []struct {
		name string
		rows string
	}{
		{"repeated not a list", `[{"f": [{"v": "1"}, {"v": "a"}, {"v": null}, {"v": null}]}]`},
		{"repeated element not an object", `[{"f": [{"v": "1"}, {"v": ["a"]}, {"v": null}, {"v": null}]}]`},
		{"record not an object", `[{"f": [{"v": "1"}, {"v": null}, {"v": "ann"}, {"v": null}]}]`},
		{"record arity", `[{"f": [{"v": "1"}, {"v": null}, {"v": {"f": [{"v": "ann"}]}}, {"v": null}]}]`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := convertRows(rowsFromJSON(t, tc.rows), nestedSchema); err == nil {
				t.Error("got nil error")
			}
		})
	}
}
