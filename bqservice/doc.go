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

// Package bqservice implements gbq.QueryService on top of the BigQuery REST
// API.
//
// A Service submits each query as a jobs.insert call with a client-generated
// job ID, so that retried inserts are idempotent, and reads results with
// jobs.getQueryResults, polling until the job has finished:
//
//	svc, err := bqservice.NewService(ctx, "my-project", bqservice.WithLocation("EU"))
//	if err != nil {
//		// TODO: Handle error.
//	}
//	s, err := gbq.NewSession(svc, lib)
//
// Transient failures (rate limiting, backend errors, 5xx responses and reset
// connections) are retried with exponential backoff. Errors reported to the
// caller are *gbq.SubmissionError, *gbq.FetchError or *gbq.StatusError
// wrapping the transport error.
package bqservice // import "github.com/softlynx/gbq/bqservice"
