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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/softlynx/gbq"
	"github.com/softlynx/gbq/internal"
	"github.com/softlynx/gbq/internal/testutil"
	bq "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/testing/protocmp"
	"google.golang.org/protobuf/types/known/structpb"
)

// apiError is a scripted error response.
type apiError struct {
	code   int
	reason string
}

// fakeBackend answers the three job calls a Service makes. Each call pops
// the next scripted reply of its kind; when none is left it returns the
// fallback for that kind.
type fakeBackend struct {
	mu sync.Mutex

	insertReplies []any
	queryReplies  []any
	statusReplies []any

	inserts []*bq.Job
	queries []url.Values
	gets    []url.Values
	headers []string
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.headers = append(b.headers, r.Header.Get("x-goog-api-client"))
	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/projects/p/jobs"):
		var job bq.Job
		if err := json.NewDecoder(r.Body).Decode(&job); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.inserts = append(b.inserts, &job)
		writeReply(w, pop(&b.insertReplies, &job))
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/projects/p/queries/"):
		b.queries = append(b.queries, r.URL.Query())
		writeReply(w, pop(&b.queryReplies, apiError{http.StatusNotFound, "notFound"}))
	case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/projects/p/jobs/"):
		b.gets = append(b.gets, r.URL.Query())
		writeReply(w, pop(&b.statusReplies, apiError{http.StatusNotFound, "notFound"}))
	default:
		http.NotFound(w, r)
	}
}

func pop(q *[]any, fallback any) any {
	if len(*q) == 0 {
		return fallback
	}
	v := (*q)[0]
	*q = (*q)[1:]
	return v
}

func writeReply(w http.ResponseWriter, reply any) {
	w.Header().Set("Content-Type", "application/json")
	if e, ok := reply.(apiError); ok {
		w.WriteHeader(e.code)
		fmt.Fprintf(w, `{"error":{"code":%d,"message":"scripted %s","errors":[{"reason":%q,"message":"scripted %s"}]}}`,
			e.code, e.reason, e.reason, e.reason)
		return
	}
	json.NewEncoder(w).Encode(reply)
}

func newTestService(t *testing.T, b *fakeBackend, opts ...option.ClientOption) *Service {
	t.Helper()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)
	fast := gax.Backoff{Initial: time.Millisecond, Max: time.Millisecond, Multiplier: 1}
	opts = append([]option.ClientOption{
		option.WithEndpoint(srv.URL + "/"),
		option.WithoutAuthentication(),
		WithRetryBackoff(fast),
		WithPollBackoff(fast),
		WithMaxRetries(5),
	}, opts...)
	s, err := NewService(context.Background(), "p", opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	s.newJobID = func() string { return "fixed" }
	return s
}

func TestSubmitJob(t *testing.T) {
	b := &fakeBackend{}
	s := newTestService(t, b, WithLocation("EU"), WithJobIDPrefix("test_"))

	id, err := s.SubmitJob(context.Background(), "SELECT 1", gbq.JobOptions{
		UseCache:  false,
		Priority:  gbq.BatchPriority,
		LegacySQL: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := "test_fixed"; id != want {
		t.Errorf("job ID = %q, want %q", id, want)
	}
	if len(b.inserts) != 1 {
		t.Fatalf("got %d inserts, want 1", len(b.inserts))
	}
	got := b.inserts[0]
	wantRef := &bq.JobReference{ProjectId: "p", JobId: "test_fixed", Location: "EU"}
	if diff := cmp.Diff(wantRef, got.JobReference); diff != "" {
		t.Errorf("job reference mismatch (-want +got):\n%s", diff)
	}
	q := got.Configuration.Query
	if q.Query != "SELECT 1" || q.Priority != "BATCH" {
		t.Errorf("got query %q priority %q", q.Query, q.Priority)
	}
	if q.UseQueryCache == nil || *q.UseQueryCache {
		t.Errorf("UseQueryCache = %v, want explicit false", q.UseQueryCache)
	}
	if q.UseLegacySql == nil || !*q.UseLegacySql {
		t.Errorf("UseLegacySql = %v, want true", q.UseLegacySql)
	}
	if !strings.HasPrefix(b.headers[0], "gl-go/") {
		t.Errorf("x-goog-api-client = %q", b.headers[0])
	}
}

func TestSubmitJobDefaults(t *testing.T) {
	b := &fakeBackend{}
	s := newTestService(t, b)
	id, err := s.SubmitJob(context.Background(), "SELECT 2", gbq.JobOptions{UseCache: true})
	if err != nil {
		t.Fatal(err)
	}
	if want := "gbq_fixed"; id != want {
		t.Errorf("job ID = %q, want %q", id, want)
	}
	q := b.inserts[0].Configuration.Query
	if q.Priority != "INTERACTIVE" {
		t.Errorf("Priority = %q, want INTERACTIVE", q.Priority)
	}
	if q.UseQueryCache == nil || !*q.UseQueryCache {
		t.Errorf("UseQueryCache = %v, want true", q.UseQueryCache)
	}
	if loc := b.inserts[0].JobReference.Location; loc != "" {
		t.Errorf("Location = %q, want empty", loc)
	}
}

func TestSubmitJobRetries(t *testing.T) {
	b := &fakeBackend{insertReplies: []any{
		apiError{http.StatusServiceUnavailable, "backendError"},
		apiError{http.StatusInternalServerError, "internalError"},
		apiError{http.StatusConflict, "duplicate"},
	}}
	s := newTestService(t, b)
	id, err := s.SubmitJob(context.Background(), "SELECT 1", gbq.JobOptions{})
	if err != nil {
		t.Fatalf("conflict after a retry should count as success, got %v", err)
	}
	if len(b.inserts) != 3 {
		t.Fatalf("got %d inserts, want 3", len(b.inserts))
	}
	for i, job := range b.inserts {
		if job.JobReference.JobId != id {
			t.Errorf("insert %d used job ID %q, want %q", i, job.JobReference.JobId, id)
		}
	}
}

func TestSubmitJobErrors(t *testing.T) {
	testCases := []struct {
		name     string
		replies  []any
		wantCode int
		inserts  int
	}{
		{"invalid query", []any{apiError{http.StatusBadRequest, "invalidQuery"}}, http.StatusBadRequest, 1},
		{"conflict on first attempt", []any{apiError{http.StatusConflict, "duplicate"}}, http.StatusConflict, 1},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{insertReplies: tc.replies}
			s := newTestService(t, b)
			_, err := s.SubmitJob(context.Background(), "SELEC 1", gbq.JobOptions{})
			var se *gbq.SubmissionError
			if !errors.As(err, &se) {
				t.Fatalf("got %T (%v), want *gbq.SubmissionError", err, err)
			}
			if se.SQL != "SELEC 1" {
				t.Errorf("SQL = %q", se.SQL)
			}
			var ge *googleapi.Error
			if !errors.As(err, &ge) || ge.Code != tc.wantCode {
				t.Errorf("got %v, want googleapi error with code %d", err, tc.wantCode)
			}
			if len(b.inserts) != tc.inserts {
				t.Errorf("got %d inserts, want %d", len(b.inserts), tc.inserts)
			}
		})
	}
}

func TestFetchPagePollsUntilComplete(t *testing.T) {
	b := &fakeBackend{queryReplies: []any{
		&bq.GetQueryResultsResponse{JobComplete: false},
		apiError{http.StatusServiceUnavailable, "backendError"},
		&bq.GetQueryResultsResponse{JobComplete: false},
		&bq.GetQueryResultsResponse{
			JobComplete: true,
			Schema: &bq.TableSchema{Fields: []*bq.TableFieldSchema{
				{Name: "name", Type: "STRING"},
				{Name: "n", Type: "INTEGER"},
			}},
			Rows: []*bq.TableRow{
				{F: []*bq.TableCell{{V: "a"}, {V: "1"}}},
				{F: []*bq.TableCell{{V: ""}, {V: nil}}},
			},
			PageToken: "t2",
			TotalRows: 3,
		},
	}}
	s := newTestService(t, b, WithLocation("EU"))
	page, err := s.FetchPage(context.Background(), "job-1", "t1", 2)
	if err != nil {
		t.Fatal(err)
	}
	want := &gbq.Page{
		Schema: []gbq.Field{{Name: "name", Type: "STRING"}, {Name: "n", Type: "INTEGER"}},
		Rows: [][]*structpb.Value{
			{structpb.NewStringValue("a"), structpb.NewStringValue("1")},
			{structpb.NewStringValue(""), structpb.NewNullValue()},
		},
		NextPageToken: "t2",
		TotalRows:     3,
	}
	if diff := cmp.Diff(want, page, protocmp.Transform()); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	if len(b.queries) != 4 {
		t.Fatalf("got %d getQueryResults calls, want 4", len(b.queries))
	}
	for _, q := range b.queries {
		if q.Get("pageToken") != "t1" || q.Get("maxResults") != "2" || q.Get("location") != "EU" {
			t.Errorf("unexpected query parameters %v", q)
		}
	}
}

func TestFetchPageFirstPageOmitsToken(t *testing.T) {
	b := &fakeBackend{queryReplies: []any{&bq.GetQueryResultsResponse{JobComplete: true}}}
	s := newTestService(t, b)
	page, err := s.FetchPage(context.Background(), "job-1", "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Rows) != 0 || page.NextPageToken != "" {
		t.Errorf("got %+v, want an empty last page", page)
	}
	q := b.queries[0]
	if q.Has("pageToken") || q.Has("maxResults") || q.Has("location") {
		t.Errorf("unexpected query parameters %v", q)
	}
}

func TestFetchPageErrors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		s := newTestService(t, &fakeBackend{})
		_, err := s.FetchPage(context.Background(), "job-1", "tok", 10)
		var fe *gbq.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("got %T (%v), want *gbq.FetchError", err, err)
		}
		if fe.JobID != "job-1" || fe.PageToken != "tok" {
			t.Errorf("got %+v", fe)
		}
		var ge *googleapi.Error
		if !errors.As(err, &ge) || ge.Code != http.StatusNotFound {
			t.Errorf("got %v, want a 404", err)
		}
	})
	t.Run("retries exhausted", func(t *testing.T) {
		var replies []any
		for range 5 {
			replies = append(replies, apiError{http.StatusServiceUnavailable, "backendError"})
		}
		b := &fakeBackend{queryReplies: replies}
		s := newTestService(t, b, WithMaxRetries(3))
		_, err := s.FetchPage(context.Background(), "job-1", "", 10)
		var ee *internal.ExhaustedError
		if !errors.As(err, &ee) {
			t.Fatalf("got %T (%v), want an exhausted retry", err, err)
		}
		if len(ee.Errors) != 3 || len(b.queries) != 3 {
			t.Errorf("got %d failures over %d calls, want 3", len(ee.Errors), len(b.queries))
		}
	})
	t.Run("malformed record", func(t *testing.T) {
		b := &fakeBackend{queryReplies: []any{&bq.GetQueryResultsResponse{
			JobComplete: true,
			Schema: &bq.TableSchema{Fields: []*bq.TableFieldSchema{
				{Name: "r", Type: "RECORD", Fields: []*bq.TableFieldSchema{{Name: "x", Type: "STRING"}}},
			}},
			Rows: []*bq.TableRow{{F: []*bq.TableCell{{V: "not a record"}}}},
		}}}
		s := newTestService(t, b)
		_, err := s.FetchPage(context.Background(), "job-1", "", 10)
		var fe *gbq.FetchError
		if !errors.As(err, &fe) {
			t.Fatalf("got %T (%v), want *gbq.FetchError", err, err)
		}
	})
}

func TestJobStatus(t *testing.T) {
	testCases := []struct {
		name       string
		status     *bq.JobStatus
		want       gbq.State
		wantErr    error
		wantErrors []error
	}{
		{
			name:   "pending",
			status: &bq.JobStatus{State: "PENDING"},
			want:   gbq.Pending,
		},
		{
			name:   "running",
			status: &bq.JobStatus{State: "RUNNING"},
			want:   gbq.Running,
		},
		{
			name:   "done",
			status: &bq.JobStatus{State: "DONE"},
			want:   gbq.Done,
		},
		{
			name: "failed",
			status: &bq.JobStatus{
				State:       "DONE",
				ErrorResult: &bq.ErrorProto{Reason: "invalidQuery", Message: "bad", Location: "query"},
				Errors:      []*bq.ErrorProto{{Reason: "invalidQuery", Message: "bad", Location: "query"}},
			},
			want:       gbq.Done,
			wantErr:    &Error{Reason: "invalidQuery", Message: "bad", Location: "query"},
			wantErrors: []error{&Error{Reason: "invalidQuery", Message: "bad", Location: "query"}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{statusReplies: []any{&bq.Job{Status: tc.status}}}
			s := newTestService(t, b)
			st, err := s.JobStatus(context.Background(), "job-1")
			if err != nil {
				t.Fatal(err)
			}
			if st.State != tc.want {
				t.Errorf("State = %v, want %v", st.State, tc.want)
			}
			if diff := cmp.Diff(tc.wantErr, st.Err); diff != "" {
				t.Errorf("Err mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tc.wantErrors, st.Errors); diff != "" {
				t.Errorf("Errors mismatch (-want +got):\n%s", diff)
			}
			if got := b.gets[0].Get("fields"); got != "status" {
				t.Errorf("fields = %q, want status", got)
			}
		})
	}
}

func TestJobStatusErrors(t *testing.T) {
	testCases := []struct {
		name    string
		replies []any
	}{
		{"not found", nil},
		{"unexpected state", []any{&bq.Job{Status: &bq.JobStatus{State: "PAUSED"}}}},
		{"missing status", []any{&bq.Job{}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestService(t, &fakeBackend{statusReplies: tc.replies})
			_, err := s.JobStatus(context.Background(), "job-9")
			var se *gbq.StatusError
			if !errors.As(err, &se) {
				t.Fatalf("got %T (%v), want *gbq.StatusError", err, err)
			}
			if se.JobID != "job-9" {
				t.Errorf("JobID = %q", se.JobID)
			}
		})
	}
}

func TestServiceSpans(t *testing.T) {
	rec := testutil.NewSpanRecorder(t)
	b := &fakeBackend{
		queryReplies:  []any{&bq.GetQueryResultsResponse{JobComplete: true}},
		statusReplies: []any{&bq.Job{Status: &bq.JobStatus{State: "DONE"}}},
	}
	s := newTestService(t, b)
	ctx := context.Background()
	id, err := s.SubmitJob(ctx, "SELECT 1", gbq.JobOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.FetchPage(ctx, id, "", 10); err != nil {
		t.Fatal(err)
	}
	if _, err := s.JobStatus(ctx, id); err != nil {
		t.Fatal(err)
	}
	// The HTTP transport may add spans of its own.
	var got []string
	for _, name := range rec.SpanNames() {
		if strings.HasPrefix(name, "gbq.") {
			got = append(got, name)
		}
	}
	want := []string{"gbq.jobs.insert", "gbq.jobs.getQueryResults", "gbq.jobs.get"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("span names mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceImplementsCursorProtocol(t *testing.T) {
	b := &fakeBackend{queryReplies: []any{
		&bq.GetQueryResultsResponse{
			JobComplete: true,
			Schema:      &bq.TableSchema{Fields: []*bq.TableFieldSchema{{Name: "n", Type: "INTEGER"}}},
			Rows:        []*bq.TableRow{{F: []*bq.TableCell{{V: "1"}}}, {F: []*bq.TableCell{{V: "2"}}}},
			PageToken:   "next",
			TotalRows:   3,
		},
		&bq.GetQueryResultsResponse{
			JobComplete: true,
			Schema:      &bq.TableSchema{Fields: []*bq.TableFieldSchema{{Name: "n", Type: "INTEGER"}}},
			Rows:        []*bq.TableRow{{F: []*bq.TableCell{{V: "3"}}}},
			TotalRows:   3,
		},
	}}
	svc := newTestService(t, b)
	s, err := gbq.NewSession(svc, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	cur, err := s.SelectRaw("SELECT n FROM t").WithPageSize(2).Build(ctx)
	if err != nil {
		t.Fatal(err)
	}
	var got []int64
	for row, err := range cur.Rows(ctx) {
		if err != nil {
			t.Fatal(err)
		}
		c, err := row.Column("n")
		if err != nil {
			t.Fatal(err)
		}
		n, err := c.AsInt64()
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, n.Int64)
	}
	if diff := cmp.Diff([]int64{1, 2, 3}, got); diff != "" {
		t.Errorf("rows mismatch (-want +got):\n%s", diff)
	}
	if got := b.queries[1].Get("pageToken"); got != "next" {
		t.Errorf("second page token = %q, want next", got)
	}
}
