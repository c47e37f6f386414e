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
	"context"

	"google.golang.org/protobuf/types/known/structpb"
)

// QueryService is the narrow view of BigQuery that Sessions and Cursors
// depend on. Package bqservice provides the implementation backed by the
// BigQuery REST API, and package gbqtest an in-memory one for tests.
//
// The core never retries a QueryService call. Errors are returned to the
// caller unchanged, so implementations should report failures as
// *SubmissionError, *FetchError and *StatusError respectively.
type QueryService interface {
	// SubmitJob starts an asynchronous query job and returns its ID.
	SubmitJob(ctx context.Context, sql string, opts JobOptions) (jobID string, err error)

	// FetchPage returns up to maxResults rows of the job's results starting
	// at pageToken. An empty pageToken requests the first page. FetchPage
	// blocks until the job has results or has failed.
	FetchPage(ctx context.Context, jobID, pageToken string, maxResults int64) (*Page, error)

	// JobStatus reports the current state of the job.
	JobStatus(ctx context.Context, jobID string) (*JobStatus, error)
}

// JobOptions are the execution options sent with a submitted query.
type JobOptions struct {
	// UseCache allows BigQuery to answer from its query result cache.
	UseCache bool
	// Priority is InteractivePriority or BatchPriority. Empty means
	// interactive.
	Priority Priority
	// LegacySQL selects BigQuery's legacy SQL dialect instead of standard
	// SQL.
	LegacySQL bool
}

// Field describes one column of a result schema.
type Field struct {
	Name string
	// Type is the BigQuery type name, e.g. "STRING" or "INTEGER".
	Type string
}

// Page is one batch of a job's result rows.
type Page struct {
	Schema []Field
	// Rows holds the raw cells of each row, aligned with Schema. A nil cell
	// or a structpb null value is an explicit NULL.
	Rows [][]*structpb.Value
	// NextPageToken is empty on the last page.
	NextPageToken string
	TotalRows     uint64
}

// State is the lifecycle state of a job as reported by BigQuery.
type State string

const (
	Pending State = "PENDING"
	Running State = "RUNNING"
	Done    State = "DONE"
)

// JobStatus contains the current State of a job, and errors encountered while processing that job.
type JobStatus struct {
	State State

	// Err is the error that caused a done job to fail, if any.
	Err error

	// All errors encountered during the running of the job.
	// Not all Errors are fatal, so errors here do not necessarily mean that the job has completed or was unsuccessful.
	Errors []error
}

// Done reports whether the job has completed.
func (s *JobStatus) Done() bool {
	return s != nil && s.State == Done
}
