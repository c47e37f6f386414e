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
	"iter"
	"log/slog"
	"maps"

	"github.com/googleapis/gax-go/v2/internallog"
	"google.golang.org/protobuf/types/known/structpb"
)

// A Cursor reads the results of one query job a page at a time.
//
// HasNext is the only method that fetches pages; Next only returns rows
// already buffered by HasNext. A Cursor holds at most one page in memory
// and is not safe for concurrent use.
type Cursor struct {
	svc    QueryService
	desc   JobDescriptor
	logger *slog.Logger

	fetched bool // a page has been fetched
	done    bool // no more rows will be returned
	rows    [][]*structpb.Value
	pos     int
	token   string

	schema    []Field
	columns   map[string]int
	totalRows uint64
}

func newCursor(svc QueryService, desc JobDescriptor, logger *slog.Logger) *Cursor {
	desc.PageSize = normalizePageSize(desc.PageSize)
	return &Cursor{svc: svc, desc: desc, logger: internallog.New(logger)}
}

// JobID returns the ID of the job whose results the cursor reads.
func (c *Cursor) JobID() string { return c.desc.JobID }

// SQL returns the query text of the job, or "" for a cursor attached to an
// existing job.
func (c *Cursor) SQL() string { return c.desc.SQL }

// PageSize returns the number of rows requested per page.
func (c *Cursor) PageSize() int64 { return c.desc.PageSize }

// Descriptor returns the job descriptor the cursor was created with.
func (c *Cursor) Descriptor() JobDescriptor { return c.desc }

// Schema returns the result schema. It is nil until the first page has been
// fetched.
func (c *Cursor) Schema() []Field { return c.schema }

// TotalRows returns the total number of rows in the result as reported with
// the most recently fetched page.
func (c *Cursor) TotalRows() uint64 { return c.totalRows }

// HasNext reports whether Next will return a row, fetching the next page of
// results if the current one has been consumed. An empty page ends the
// results even if the service reported a next page token.
//
// Calling HasNext again without an intervening Next returns the same answer
// without fetching. If fetching fails the error is returned as is and the
// cursor is unchanged, so a later call retries the same page.
func (c *Cursor) HasNext(ctx context.Context) (bool, error) {
	for {
		if c.pos < len(c.rows) {
			return true, nil
		}
		if c.done {
			return false, nil
		}
		if c.fetched && c.token == "" {
			c.finish()
			return false, nil
		}
		if err := c.fetch(ctx); err != nil {
			return false, err
		}
	}
}

// Next returns the next buffered row and advances past it. It returns nil
// if no row is buffered, which is always the case unless the preceding
// HasNext call returned true.
func (c *Cursor) Next() *Row {
	if c.pos >= len(c.rows) {
		return nil
	}
	r := &Row{schema: c.schema, columns: c.columns, cells: c.rows[c.pos]}
	c.pos++
	return r
}

// Rows returns an iterator over the remaining rows. Iteration stops after
// the first error.
func (c *Cursor) Rows(ctx context.Context) iter.Seq2[*Row, error] {
	return func(yield func(*Row, error) bool) {
		for {
			ok, err := c.HasNext(ctx)
			if err != nil {
				yield(nil, err)
				return
			}
			if !ok {
				return
			}
			if !yield(c.Next(), nil) {
				return
			}
		}
	}
}

// Columns returns the position of each column by name. If no page has been
// fetched yet, Columns fetches the first one; its rows stay buffered for
// HasNext and Next.
func (c *Cursor) Columns(ctx context.Context) (map[string]int, error) {
	if !c.fetched {
		if err := c.fetch(ctx); err != nil {
			return nil, err
		}
	}
	return maps.Clone(c.columns), nil
}

// Status asks the service for the job's current status. The result is not
// cached.
func (c *Cursor) Status(ctx context.Context) (*JobStatus, error) {
	st, err := c.svc.JobStatus(ctx, c.desc.JobID)
	if err != nil {
		return nil, err
	}
	c.logger.DebugContext(ctx, "gbq: job status", "job_id", c.desc.JobID, "state", string(st.State))
	return st, nil
}

// IsCompleted reports whether the job's state is Done.
func (c *Cursor) IsCompleted(ctx context.Context) (bool, error) {
	st, err := c.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Done(), nil
}

// fetch requests the page at the current token and replaces the buffered
// page with it. The cursor is left untouched on error.
func (c *Cursor) fetch(ctx context.Context) error {
	p, err := c.svc.FetchPage(ctx, c.desc.JobID, c.token, c.desc.PageSize)
	if err != nil {
		return err
	}
	if c.columns == nil {
		c.schema = p.Schema
		c.columns = columnIndex(p.Schema)
	}
	c.fetched = true
	c.rows = p.Rows
	c.pos = 0
	c.token = p.NextPageToken
	c.totalRows = p.TotalRows
	c.logger.DebugContext(ctx, "gbq: fetched page",
		"job_id", c.desc.JobID, "rows", len(p.Rows), "more", p.NextPageToken != "")
	if len(p.Rows) == 0 {
		c.finish()
	}
	return nil
}

func (c *Cursor) finish() {
	c.done = true
	c.rows = nil
	c.pos = 0
	c.token = ""
}

// columnIndex maps column names to positions. The first of duplicate names
// wins.
func columnIndex(schema []Field) map[string]int {
	m := make(map[string]int, len(schema))
	for i, f := range schema {
		if _, ok := m[f.Name]; !ok {
			m[f.Name] = i
		}
	}
	return m
}
