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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/softlynx/gbq"
	"github.com/softlynx/gbq/internal"
	"github.com/softlynx/gbq/internal/detect"
	"github.com/softlynx/gbq/internal/trace"
	"go.opentelemetry.io/otel/attribute"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/option"
)

const (
	// Scope is the OAuth2 scope for the service.
	Scope = bq.BigqueryScope

	// DetectProjectID asks NewService to find the project from the
	// environment.
	DetectProjectID = detect.ProjectIDSentinel

	// Version is the version of this package reported to the API.
	Version = "0.1.0"

	emulatorHostEnv = "BIGQUERY_EMULATOR_HOST"
	userAgent       = "gbq/" + Version
)

var xGoogHeader = fmt.Sprintf("gl-go/%s gbq/%s", goVersion(), Version)

func goVersion() string {
	return strings.TrimPrefix(runtime.Version(), "go")
}

func setClientHeader(headers http.Header) {
	headers.Set("x-goog-api-client", xGoogHeader)
}

// Service runs queries as BigQuery jobs. It is safe for concurrent use.
type Service struct {
	projectID   string
	location    string
	s           *bq.Service
	logger      *slog.Logger
	retry       gax.Backoff
	poll        gax.Backoff
	maxRetries  int
	jobIDPrefix string
	newJobID    func() string
}

var _ gbq.QueryService = (*Service)(nil)

// NewService creates a Service that runs jobs in projectID. Pass
// DetectProjectID to use the project of the environment.
//
// If the BIGQUERY_EMULATOR_HOST environment variable is set, requests go to
// that host without authentication.
func NewService(ctx context.Context, projectID string, opts ...option.ClientOption) (*Service, error) {
	s := &Service{
		retry:       defaultRetryBackoff(),
		poll:        defaultPollBackoff(),
		jobIDPrefix: "gbq_",
		newJobID:    uuid.NewString,
	}
	for _, opt := range opts {
		if cOpt, ok := opt.(*customClientOption); ok {
			cOpt.ApplyCustomClientOpt(s)
		}
	}
	s.logger = internallog.New(s.logger)

	if host := os.Getenv(emulatorHostEnv); host != "" {
		opts = append([]option.ClientOption{
			option.WithEndpoint("http://" + host + "/"),
			option.WithoutAuthentication(),
		}, opts...)
	}
	opts = append([]option.ClientOption{
		option.WithScopes(Scope),
		option.WithUserAgent(userAgent),
	}, opts...)

	pid, err := detect.ProjectID(ctx, projectID, emulatorHostEnv, opts...)
	if err != nil {
		return nil, fmt.Errorf("bqservice: %w", err)
	}
	if pid == "" {
		return nil, fmt.Errorf("bqservice: empty project ID")
	}
	s.projectID = pid

	bqs, err := bq.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bqservice: constructing client: %w", err)
	}
	s.s = bqs
	return s, nil
}

// Project returns the project jobs run in.
func (s *Service) Project() string { return s.projectID }

// Location returns the location jobs are created in, or "" if BigQuery
// chooses it.
func (s *Service) Location() string { return s.location }

// SubmitJob inserts a query job with a generated ID and returns the ID.
//
// The insert is retried on transient errors. Since the ID is chosen by the
// client, a conflict on a retried attempt means an earlier attempt created
// the job and is reported as success.
func (s *Service) SubmitJob(ctx context.Context, sql string, opts gbq.JobOptions) (string, error) {
	jobID := s.jobIDPrefix + s.newJobID()
	priority := opts.Priority
	if priority == "" {
		priority = gbq.InteractivePriority
	}
	job := &bq.Job{
		JobReference: &bq.JobReference{
			ProjectId: s.projectID,
			JobId:     jobID,
			Location:  s.location,
		},
		Configuration: &bq.JobConfiguration{
			Query: &bq.JobConfigurationQuery{
				Query:         sql,
				UseQueryCache: &opts.UseCache,
				UseLegacySql:  &opts.LegacySQL,
				Priority:      string(priority),
			},
		},
	}
	call := s.s.Jobs.Insert(s.projectID, job).Context(ctx)
	setClientHeader(call.Header())

	attempts := 0
	err := s.runWithRetry(ctx, jobRetryReasons, func() error {
		attempts++
		sCtx := trace.StartSpan(ctx, "gbq.jobs.insert", attribute.String("job_id", jobID))
		_, err := call.Do()
		if err != nil && attempts > 1 && alreadyExists(err) {
			err = nil
		}
		trace.EndSpan(sCtx, err)
		return err
	})
	if err != nil {
		return "", &gbq.SubmissionError{SQL: sql, Err: err}
	}
	s.logger.DebugContext(ctx, "bqservice: inserted job", "job_id", jobID, "attempts", attempts)
	return jobID, nil
}

// FetchPage reads one page of a job's results, polling with the service's
// poll backoff until the job has completed.
func (s *Service) FetchPage(ctx context.Context, jobID, pageToken string, maxResults int64) (*gbq.Page, error) {
	call := s.s.Jobs.GetQueryResults(s.projectID, jobID).Context(ctx)
	setClientHeader(call.Header())
	if maxResults > 0 {
		call.MaxResults(maxResults)
	}
	if pageToken != "" {
		call.PageToken(pageToken)
	}
	if s.location != "" {
		call.Location(s.location)
	}

	var res *bq.GetQueryResultsResponse
	polls := 0
	err := internal.RetryN(ctx, s.poll, s.maxRetries, func() (stop bool, err error) {
		sCtx := trace.StartSpan(ctx, "gbq.jobs.getQueryResults", attribute.String("job_id", jobID))
		r, err := call.Do()
		trace.EndSpan(sCtx, err)
		if err != nil {
			return !retryableError(err, defaultRetryReasons), err
		}
		if !r.JobComplete { // GetQueryResults may return early without error; retry.
			polls++
			s.logger.DebugContext(ctx, "bqservice: job not complete", "job_id", jobID, "polls", polls)
			return false, nil
		}
		res = r
		return true, nil
	})
	if err != nil {
		return nil, &gbq.FetchError{JobID: jobID, PageToken: pageToken, Err: err}
	}
	rows, err := convertRows(res.Rows, res.Schema)
	if err != nil {
		return nil, &gbq.FetchError{JobID: jobID, PageToken: pageToken, Err: err}
	}
	s.logger.DebugContext(ctx, "bqservice: read page", "job_id", jobID, "rows", len(rows), "more", res.PageToken != "")
	return &gbq.Page{
		Schema:        convertSchema(res.Schema),
		Rows:          rows,
		NextPageToken: res.PageToken,
		TotalRows:     res.TotalRows,
	}, nil
}

// JobStatus fetches the current status of a job.
func (s *Service) JobStatus(ctx context.Context, jobID string) (*gbq.JobStatus, error) {
	call := s.s.Jobs.Get(s.projectID, jobID).Fields("status").Context(ctx)
	setClientHeader(call.Header())
	if s.location != "" {
		call.Location(s.location)
	}
	var job *bq.Job
	err := s.runWithRetry(ctx, defaultRetryReasons, func() (err error) {
		sCtx := trace.StartSpan(ctx, "gbq.jobs.get", attribute.String("job_id", jobID))
		job, err = call.Do()
		trace.EndSpan(sCtx, err)
		return err
	})
	if err != nil {
		return nil, &gbq.StatusError{JobID: jobID, Err: err}
	}
	st, err := jobStatusFromProto(job.Status)
	if err != nil {
		return nil, &gbq.StatusError{JobID: jobID, Err: err}
	}
	s.logger.DebugContext(ctx, "bqservice: job status", "job_id", jobID, "state", string(st.State))
	return st, nil
}
