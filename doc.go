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

/*
Package gbq runs templated BigQuery queries and reads their results through
lazily paginated cursors.

# Sessions

A Session pairs a QueryService with a library of query macros and a shared
variable context:

	lib, err := template.LoadLibrary(ctx, os.DirFS("queries"), "reports.vm")
	if err != nil {
		// TODO: Handle error.
	}
	svc, err := bqservice.NewService(ctx, "my-project")
	if err != nil {
		// TODO: Handle error.
	}
	s, err := gbq.NewSession(svc, lib, gbq.WithBindings(map[string]any{"DATASET": "sales"}))
	if err != nil {
		// TODO: Handle error.
	}

# Querying

Select expands a macro with positional parameters; SelectRaw takes SQL text
as is. Build submits the job and returns a Cursor:

	cur, err := s.Select("daily_totals", "2024-01-01").WithPageSize(500).Build(ctx)
	if err != nil {
		// TODO: Handle error.
	}

HasNext fetches pages as needed; Next returns the buffered row:

	for {
		ok, err := cur.HasNext(ctx)
		if err != nil {
			// TODO: Handle error.
		}
		if !ok {
			break
		}
		row := cur.Next()
		total, err := row.Column("total")
		if err != nil {
			// TODO: Handle error.
		}
		n, err := total.AsInt64()
		...
	}

Rows wraps the same loop as a range-over-func iterator.

A cursor can also be attached to a job started elsewhere with
Session.AttachToJob.
*/
package gbq // import "github.com/softlynx/gbq"
