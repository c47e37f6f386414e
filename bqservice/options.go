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
	"log/slog"

	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
	"google.golang.org/api/option/internaloption"
)

// WithLocation sets the location in which jobs are created and looked up.
// If unset, BigQuery infers the location from the datasets a query reads.
func WithLocation(location string) option.ClientOption {
	return &customClientOption{location: location}
}

// WithLogger sets the logger used for debug output about jobs and pages.
func WithLogger(l *slog.Logger) option.ClientOption {
	return &customClientOption{logger: l}
}

// WithRetryBackoff configures the backoff used when retrying failed API
// calls. Unset fields of bo take gax defaults.
func WithRetryBackoff(bo gax.Backoff) option.ClientOption {
	return &customClientOption{retry: &bo}
}

// WithPollBackoff configures the backoff used between polls of a job that
// has not yet finished.
func WithPollBackoff(bo gax.Backoff) option.ClientOption {
	return &customClientOption{poll: &bo}
}

// WithJobIDPrefix sets the prefix of generated job IDs. The default is
// "gbq_".
func WithJobIDPrefix(prefix string) option.ClientOption {
	return &customClientOption{jobIDPrefix: &prefix}
}

// WithMaxRetries limits the number of failed attempts of a single API call
// before giving up. Zero, the default, retries until the context is done.
func WithMaxRetries(n int) option.ClientOption {
	return &customClientOption{maxRetries: &n}
}

type customClientOption struct {
	internaloption.EmbeddableAdapter
	location    string
	logger      *slog.Logger
	retry       *gax.Backoff
	poll        *gax.Backoff
	jobIDPrefix *string
	maxRetries  *int
}

func (o *customClientOption) ApplyCustomClientOpt(s *Service) {
	if o.location != "" {
		s.location = o.location
	}
	if o.logger != nil {
		s.logger = o.logger
	}
	if o.retry != nil {
		s.retry = *o.retry
	}
	if o.poll != nil {
		s.poll = *o.poll
	}
	if o.jobIDPrefix != nil {
		s.jobIDPrefix = *o.jobIDPrefix
	}
	if o.maxRetries != nil {
		s.maxRetries = *o.maxRetries
	}
}
