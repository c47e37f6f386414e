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
	"errors"
	"fmt"

	"github.com/softlynx/gbq/template"
)

var errNoQuery = errors.New("gbq: query has neither SQL text nor a template")

// A QueryBuilder configures one query. Obtain one from Session.Select or
// Session.SelectRaw, adjust it with the With* methods and submit it with
// Build.
//
// The query text is computed on the first call to SQL or Build and reused
// until the template, its parameters or the per-query bindings change.
type QueryBuilder struct {
	s *Session

	useCache  bool
	priority  Priority
	pageSize  int64
	legacySQL bool

	raw    string
	macro  string
	params []any
	locals *template.Context // per-query bindings layered over the session's
	err    error             // first With conversion error

	sql      string
	resolved bool
}

// UseCache sets whether the query may be answered from BigQuery's result
// cache.
func (b *QueryBuilder) UseCache(use bool) *QueryBuilder {
	b.useCache = use
	return b
}

// WithPriority sets the job's scheduling priority.
func (b *QueryBuilder) WithPriority(p Priority) *QueryBuilder {
	b.priority = p
	return b
}

// WithLegacySQL selects BigQuery's legacy SQL dialect.
func (b *QueryBuilder) WithLegacySQL(legacy bool) *QueryBuilder {
	b.legacySQL = legacy
	return b
}

// WithPageSize sets the number of rows fetched per page. Sizes of zero or
// less mean DefaultPageSize.
func (b *QueryBuilder) WithPageSize(n int64) *QueryBuilder {
	b.pageSize = n
	return b
}

// WithRawSQL replaces the query with the given text, which is used as is.
func (b *QueryBuilder) WithRawSQL(sql string) *QueryBuilder {
	b.raw, b.macro, b.params = sql, "", nil
	b.reset()
	return b
}

// WithTemplate replaces the query with the expansion of the named macro.
// Parameters are converted with template.ValueOf when the text is computed.
func (b *QueryBuilder) WithTemplate(name string, params ...any) *QueryBuilder {
	b.raw, b.macro, b.params = "", name, params
	b.reset()
	return b
}

// With binds key to value for this query only. The binding shadows any
// session binding of the same name and is not visible to other queries.
func (b *QueryBuilder) With(key string, value any) *QueryBuilder {
	if b.locals == nil {
		b.locals = b.s.vars.Child()
	}
	if err := b.locals.SetAny(key, value); err != nil && b.err == nil {
		b.err = fmt.Errorf("gbq: binding %q: %w", key, err)
	}
	b.reset()
	return b
}

func (b *QueryBuilder) reset() {
	b.sql, b.resolved = "", false
}

// PageSize returns the effective page size of the query.
func (b *QueryBuilder) PageSize() int64 { return normalizePageSize(b.pageSize) }

// SQL returns the query text, expanding the template if there is one.
// Expansion failures are *template.Error values.
func (b *QueryBuilder) SQL() (string, error) {
	if b.resolved {
		return b.sql, nil
	}
	if b.err != nil {
		return "", b.err
	}
	var sql string
	switch {
	case b.macro != "":
		vars := b.s.vars
		if b.locals != nil {
			vars = b.locals
		}
		var err error
		if sql, err = b.s.expand(b.macro, b.params, vars); err != nil {
			return "", err
		}
	case b.raw != "":
		sql = b.raw
	default:
		return "", errNoQuery
	}
	b.sql, b.resolved = sql, true
	return sql, nil
}

// Build submits the query and returns a cursor over its results. Errors
// from the QueryService are returned unchanged.
func (b *QueryBuilder) Build(ctx context.Context) (*Cursor, error) {
	sql, err := b.SQL()
	if err != nil {
		return nil, err
	}
	if err := b.priority.validate(); err != nil {
		return nil, err
	}
	opts := JobOptions{
		UseCache:  b.useCache,
		Priority:  b.priority.orDefault(),
		LegacySQL: b.legacySQL,
	}
	jobID, err := b.s.svc.SubmitJob(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	b.s.logger.DebugContext(ctx, "gbq: submitted query", "job_id", jobID, "priority", string(opts.Priority))
	desc := JobDescriptor{
		JobID:    jobID,
		SQL:      sql,
		Options:  opts,
		PageSize: b.PageSize(),
	}
	return newCursor(b.s.svc, desc, b.s.logger), nil
}
