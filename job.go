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
	"strings"
)

// DefaultPageSize is the number of rows requested per page when no positive
// page size is configured.
const DefaultPageSize int64 = 1000

// Priority is the scheduling priority of a query job.
type Priority string

const (
	// BatchPriority queues the query until idle resources are available.
	BatchPriority Priority = "BATCH"
	// InteractivePriority runs the query as soon as possible. This is the
	// default.
	InteractivePriority Priority = "INTERACTIVE"
)

// ParsePriority converts a case-insensitive priority name into a Priority.
// The empty string is InteractivePriority.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToUpper(strings.TrimSpace(s)))
	if p == "" {
		return InteractivePriority, nil
	}
	if err := p.validate(); err != nil {
		return "", err
	}
	return p, nil
}

func (p Priority) validate() error {
	switch p {
	case "", BatchPriority, InteractivePriority:
		return nil
	}
	return fmt.Errorf("gbq: unknown job priority %q, want %s or %s", string(p), InteractivePriority, BatchPriority)
}

func (p Priority) orDefault() Priority {
	if p == "" {
		return InteractivePriority
	}
	return p
}

// JobDescriptor identifies a submitted query job and how its results are
// read. It does not change once the job is submitted.
type JobDescriptor struct {
	JobID string
	// SQL is empty for cursors attached to an existing job.
	SQL      string
	Options  JobOptions
	PageSize int64
}

func normalizePageSize(n int64) int64 {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}
