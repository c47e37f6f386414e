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

// Package gbqtest provides a fake query service for testing code that uses
// gbq.
//
// A Server answers queries from results registered by SQL text:
//
//	srv := gbqtest.NewServer()
//	srv.AddResult("SELECT name FROM users", &gbqtest.Result{
//		Schema: []gbq.Field{{Name: "name", Type: "STRING"}},
//		Rows:   [][]any{{"ann"}, {"bob"}},
//	})
//	s, err := gbq.NewSession(srv, lib)
//
// Jobs report Pending, then Running, for the number of status polls given
// by Result.PendingPolls, and Done after that. Results are paged by the page
// size the cursor asks for.
package gbqtest

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/softlynx/gbq"
	"google.golang.org/protobuf/types/known/structpb"
)

// ErrNoResult is returned by SubmitJob for a query with no registered
// result when the server has no default result.
var ErrNoResult = errors.New("gbqtest: no result registered for query")

// ErrNoJob is returned for a job ID the server did not issue.
var ErrNoJob = errors.New("gbqtest: no such job")

// A Result is the scripted outcome of a query.
type Result struct {
	Schema []gbq.Field
	// Rows hold cell values. Each value is nil for NULL, a *structpb.Value,
	// or anything structpb.NewValue accepts. Use strings for values the way
	// BigQuery returns them.
	Rows [][]any
	// PendingPolls is the number of status polls answered before the job
	// is done.
	PendingPolls int
	// Err, if set, fails the job. Status reports it once the job is done,
	// and fetching results returns it.
	Err error
}

// A Job is a job that was submitted to the server.
type Job struct {
	ID      string
	SQL     string
	Options gbq.JobOptions
	// Fetches counts FetchPage calls for the job.
	Fetches int
	// Polls counts JobStatus calls for the job.
	Polls int

	result *Result
	rows   [][]*structpb.Value
}

// Server is an in-memory gbq.QueryService. It is safe for concurrent use.
type Server struct {
	mu         sync.Mutex
	results    map[string]*Result
	fallback   *Result
	jobs       map[string]*Job
	order      []*Job
	nextID     int
	submitErrs []error
	fetchErrs  map[string][]error
}

var _ gbq.QueryService = (*Server)(nil)

// NewServer creates an empty server.
func NewServer() *Server {
	return &Server{
		results:   map[string]*Result{},
		jobs:      map[string]*Job{},
		fetchErrs: map[string][]error{},
	}
}

// AddResult registers the result of queries whose text is sql, ignoring
// leading and trailing space.
func (s *Server) AddResult(sql string, r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[strings.TrimSpace(sql)] = r
}

// SetDefaultResult sets the result of queries with no registered result.
func (s *Server) SetDefaultResult(r *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fallback = r
}

// FailNextSubmit makes the next SubmitJob call fail with err.
func (s *Server) FailNextSubmit(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submitErrs = append(s.submitErrs, err)
}

// FailNextFetch makes the next FetchPage call for jobID fail with err. The
// call after it succeeds as usual.
func (s *Server) FailNextFetch(jobID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetchErrs[jobID] = append(s.fetchErrs[jobID], err)
}

// Submitted returns copies of the jobs submitted so far, in order.
func (s *Server) Submitted() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]Job, len(s.order))
	for i, j := range s.order {
		jobs[i] = *j
	}
	return jobs
}

// Job returns a copy of the job with the given ID.
func (s *Server) Job(id string) (Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *j, true
}

// SubmitJob implements gbq.QueryService.
func (s *Server) SubmitJob(ctx context.Context, sql string, opts gbq.JobOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &gbq.SubmissionError{SQL: sql, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.submitErrs) > 0 {
		err := s.submitErrs[0]
		s.submitErrs = s.submitErrs[1:]
		return "", &gbq.SubmissionError{SQL: sql, Err: err}
	}
	r, ok := s.results[strings.TrimSpace(sql)]
	if !ok {
		r = s.fallback
	}
	if r == nil {
		return "", &gbq.SubmissionError{SQL: sql, Err: ErrNoResult}
	}
	rows, err := convertRows(r.Rows)
	if err != nil {
		return "", &gbq.SubmissionError{SQL: sql, Err: err}
	}
	s.nextID++
	j := &Job{
		ID:      fmt.Sprintf("job-%d", s.nextID),
		SQL:     sql,
		Options: opts,
		result:  r,
		rows:    rows,
	}
	s.jobs[j.ID] = j
	s.order = append(s.order, j)
	return j.ID, nil
}

// FetchPage implements gbq.QueryService. Page tokens are the offset of the
// page's first row.
func (s *Server) FetchPage(ctx context.Context, jobID, pageToken string, maxResults int64) (*gbq.Page, error) {
	fail := func(err error) (*gbq.Page, error) {
		return nil, &gbq.FetchError{JobID: jobID, PageToken: pageToken, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return fail(ErrNoJob)
	}
	j.Fetches++
	if errs := s.fetchErrs[jobID]; len(errs) > 0 {
		s.fetchErrs[jobID] = errs[1:]
		return fail(errs[0])
	}
	if j.result.Err != nil {
		return fail(j.result.Err)
	}
	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil || n < 0 || n > len(j.rows) {
			return fail(fmt.Errorf("gbqtest: invalid page token %q", pageToken))
		}
		start = n
	}
	end := len(j.rows)
	if maxResults > 0 && int64(end-start) > maxResults {
		end = start + int(maxResults)
	}
	page := &gbq.Page{
		Schema:    j.result.Schema,
		Rows:      j.rows[start:end],
		TotalRows: uint64(len(j.rows)),
	}
	if end < len(j.rows) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

// JobStatus implements gbq.QueryService.
func (s *Server) JobStatus(ctx context.Context, jobID string) (*gbq.JobStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, &gbq.StatusError{JobID: jobID, Err: err}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[jobID]
	if !ok {
		return nil, &gbq.StatusError{JobID: jobID, Err: ErrNoJob}
	}
	j.Polls++
	switch {
	case j.Polls == 1 && j.result.PendingPolls > 0:
		return &gbq.JobStatus{State: gbq.Pending}, nil
	case j.Polls <= j.result.PendingPolls:
		return &gbq.JobStatus{State: gbq.Running}, nil
	}
	st := &gbq.JobStatus{State: gbq.Done, Err: j.result.Err}
	if j.result.Err != nil {
		st.Errors = []error{j.result.Err}
	}
	return st, nil
}

func convertRows(rows [][]any) ([][]*structpb.Value, error) {
	out := make([][]*structpb.Value, len(rows))
	for i, r := range rows {
		cells := make([]*structpb.Value, len(r))
		for j, v := range r {
			if pv, ok := v.(*structpb.Value); ok {
				cells[j] = pv
				continue
			}
			pv, err := structpb.NewValue(v)
			if err != nil {
				return nil, fmt.Errorf("gbqtest: row %d, cell %d: %w", i, j, err)
			}
			cells[j] = pv
		}
		out[i] = cells
	}
	return out, nil
}
