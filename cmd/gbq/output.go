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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/softlynx/gbq"
)

// printRows writes up to maxRows rows of cur to w and returns how many it
// wrote. maxRows <= 0 means all rows.
func printRows(ctx context.Context, w io.Writer, format string, cur *gbq.Cursor, maxRows int64) (int64, error) {
	if format == "json" {
		return printJSONRows(ctx, w, cur, maxRows)
	}
	return printTableRows(ctx, w, cur, maxRows)
}

func printTableRows(ctx context.Context, w io.Writer, cur *gbq.Cursor, maxRows int64) (int64, error) {
	// Fetch the first page so the schema is known for the header.
	if _, err := cur.Columns(ctx); err != nil {
		return 0, err
	}
	// one-space padding.
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	names := make([]string, len(cur.Schema()))
	for i, f := range cur.Schema() {
		names[i] = f.Name
	}
	if len(names) > 0 {
		fmt.Fprintln(tw, strings.Join(names, "\t"))
	}
	n, err := eachRow(ctx, cur, maxRows, func(r *gbq.Row) error {
		sep := ""
		for i := range r.Len() {
			c, err := r.Cell(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(tw, "%s%s", sep, c.AsString())
			sep = "\t"
		}
		fmt.Fprintln(tw)
		return nil
	})
	if ferr := tw.Flush(); err == nil {
		err = ferr
	}
	return n, err
}

func printJSONRows(ctx context.Context, w io.Writer, cur *gbq.Cursor, maxRows int64) (int64, error) {
	enc := json.NewEncoder(w)
	return eachRow(ctx, cur, maxRows, func(r *gbq.Row) error {
		names := r.Columns()
		obj := make(map[string]any, len(names))
		for i, v := range r.Values() {
			if i < len(names) {
				obj[names[i]] = v
			}
		}
		return enc.Encode(obj)
	})
}

func eachRow(ctx context.Context, cur *gbq.Cursor, maxRows int64, f func(*gbq.Row) error) (int64, error) {
	var n int64
	for row, err := range cur.Rows(ctx) {
		if err != nil {
			return n, err
		}
		if err := f(row); err != nil {
			return n, err
		}
		n++
		if maxRows > 0 && n >= maxRows {
			break
		}
	}
	return n, nil
}

type statusOutput struct {
	JobID  string   `json:"job_id"`
	State  string   `json:"state"`
	Error  string   `json:"error,omitempty"`
	Errors []string `json:"errors,omitempty"`
}

func printStatus(w io.Writer, format, jobID string, st *gbq.JobStatus) error {
	out := statusOutput{JobID: jobID, State: string(st.State)}
	if st.Err != nil {
		out.Error = st.Err.Error()
	}
	for _, e := range st.Errors {
		out.Errors = append(out.Errors, e.Error())
	}
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	fmt.Fprintf(tw, "job\t%s\n", out.JobID)
	fmt.Fprintf(tw, "state\t%s\n", out.State)
	if out.Error != "" {
		fmt.Fprintf(tw, "error\t%s\n", out.Error)
	}
	for _, e := range out.Errors {
		fmt.Fprintf(tw, "\t%s\n", e)
	}
	return tw.Flush()
}
