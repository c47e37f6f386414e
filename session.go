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
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/googleapis/gax-go/v2/internallog"
	"github.com/softlynx/gbq/template"
)

// A Session expands query templates against a shared variable context and
// submits the resulting queries to a QueryService.
//
// A Session may be used by multiple goroutines. Cursors it returns may not.
type Session struct {
	svc    QueryService
	engine *template.Engine
	vars   *template.Context
	logger *slog.Logger

	pageSize int64
	priority Priority
	useCache bool
}

// NewSession returns a Session that submits queries to svc and expands
// macros defined in lib. lib may be nil if only raw SQL is used.
func NewSession(svc QueryService, lib *template.Library, opts ...Option) (*Session, error) {
	if svc == nil {
		return nil, errors.New("gbq: NewSession requires a QueryService")
	}
	cfg := defaultSessionConfig()
	for _, o := range opts {
		o.apply(cfg)
	}
	if err := cfg.priority.validate(); err != nil {
		return nil, err
	}
	s := &Session{
		svc:      svc,
		engine:   template.NewEngine(lib),
		vars:     template.NewContext(),
		logger:   internallog.New(cfg.logger),
		pageSize: cfg.pageSize,
		priority: cfg.priority.orDefault(),
		useCache: cfg.useCache,
	}
	if err := s.vars.SetAll(cfg.bindings); err != nil {
		return nil, fmt.Errorf("gbq: %w", err)
	}
	return s, nil
}

// Context returns the session's variable context. Bindings made on it are
// visible to every later expansion.
func (s *Session) Context() *template.Context { return s.vars }

// Library returns the session's macro library.
func (s *Session) Library() *template.Library { return s.engine.Library() }

// Set binds key to value in the session context. Values are converted with
// template.ValueOf.
func (s *Session) Set(key string, value any) error {
	if err := s.vars.SetAny(key, value); err != nil {
		return fmt.Errorf("gbq: binding %q: %w", key, err)
	}
	return nil
}

// Unset removes key from the session context.
func (s *Session) Unset(key string) { s.vars.Unset(key) }

// Select returns a builder for a query produced by expanding the named
// macro with params.
func (s *Session) Select(name string, params ...any) *QueryBuilder {
	return s.newBuilder().WithTemplate(name, params...)
}

// SelectRaw returns a builder for the given query text. The text is used as
// is and is not expanded.
func (s *Session) SelectRaw(sql string) *QueryBuilder {
	return s.newBuilder().WithRawSQL(sql)
}

// Expand returns the text of the named macro expanded with params against
// the session context, without submitting anything.
func (s *Session) Expand(name string, params ...any) (string, error) {
	return s.expand(name, params, s.vars)
}

// expand converts params and expands the named macro against vars. All
// failures are *template.Error values.
func (s *Session) expand(name string, params []any, vars *template.Context) (string, error) {
	vs, err := template.Values(params...)
	if err != nil {
		return "", &template.Error{Macro: name, Err: fmt.Errorf("%w: %v", template.ErrBadReference, err)}
	}
	return s.engine.Expand(name, vs, vars)
}

// AttachToJob returns a cursor over the results of an existing job, which
// need not have been started by this package.
func (s *Session) AttachToJob(jobID string) (*Cursor, error) {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return nil, errors.New("gbq: AttachToJob requires a job ID")
	}
	desc := JobDescriptor{
		JobID:    jobID,
		Options:  JobOptions{UseCache: s.useCache, Priority: s.priority},
		PageSize: s.pageSize,
	}
	return newCursor(s.svc, desc, s.logger), nil
}

func (s *Session) newBuilder() *QueryBuilder {
	return &QueryBuilder{
		s:        s,
		useCache: s.useCache,
		priority: s.priority,
		pageSize: s.pageSize,
	}
}
