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
	"fmt"
)

// SubmissionError is returned when BigQuery rejects a query job.
type SubmissionError struct {
	SQL string
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("gbq: submitting query: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// FetchError is returned when a page of results cannot be read. A Cursor
// that receives a FetchError is unchanged, so the same fetch can be retried
// by calling HasNext again.
type FetchError struct {
	JobID     string
	PageToken string
	Err       error
}

func (e *FetchError) Error() string {
	if e.PageToken == "" {
		return fmt.Sprintf("gbq: fetching first page of job %s: %v", e.JobID, e.Err)
	}
	return fmt.Sprintf("gbq: fetching page %q of job %s: %v", e.PageToken, e.JobID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// StatusError is returned when the status of a job cannot be determined.
type StatusError struct {
	JobID string
	Err   error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gbq: getting status of job %s: %v", e.JobID, e.Err)
}

func (e *StatusError) Unwrap() error { return e.Err }

// UnknownColumnError is returned by Row accessors for a column name that is
// not in the result schema, or a position outside the row.
type UnknownColumnError struct {
	// Name is set for lookups by name.
	Name string
	// Index is set for lookups by position.
	Index int
	// Len is the number of columns in the row.
	Len int
}

func (e *UnknownColumnError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("gbq: no column named %q", e.Name)
	}
	return fmt.Sprintf("gbq: column index %d out of range [0, %d)", e.Index, e.Len)
}

// TypeCoercionError is returned when a cell's text cannot be parsed as the
// requested type. It concerns only that cell; iteration can continue.
type TypeCoercionError struct {
	Column string
	// Want is the name of the requested Go type.
	Want string
	// Value is the cell's text.
	Value string
	Err   error
}

func (e *TypeCoercionError) Error() string {
	return fmt.Sprintf("gbq: column %q: cannot convert %q to %s: %v", e.Column, e.Value, e.Want, e.Err)
}

func (e *TypeCoercionError) Unwrap() error { return e.Err }
