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
	"log/slog"
)

type sessionConfig struct {
	logger   *slog.Logger
	pageSize int64
	priority Priority
	useCache bool
	bindings map[string]any
}

func defaultSessionConfig() *sessionConfig {
	return &sessionConfig{
		pageSize: DefaultPageSize,
		priority: InteractivePriority,
		useCache: true,
	}
}

// An Option configures a Session.
type Option interface {
	apply(*sessionConfig)
}

type optionFunc func(*sessionConfig)

func (f optionFunc) apply(c *sessionConfig) { f(c) }

// WithLogger sets the logger used for debug logging of job submission and
// page fetches. By default logging is controlled by the
// GOOGLE_SDK_GO_LOGGING_LEVEL environment variable.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(c *sessionConfig) { c.logger = l })
}

// WithPageSize sets the default number of rows per page for queries of the
// session. Sizes of zero or less mean DefaultPageSize.
func WithPageSize(n int64) Option {
	return optionFunc(func(c *sessionConfig) { c.pageSize = normalizePageSize(n) })
}

// WithPriority sets the default job priority for queries of the session.
func WithPriority(p Priority) Option {
	return optionFunc(func(c *sessionConfig) { c.priority = p })
}

// WithQueryCache sets whether queries of the session may be answered from
// BigQuery's result cache. The default is true.
func WithQueryCache(use bool) Option {
	return optionFunc(func(c *sessionConfig) { c.useCache = use })
}

// WithBindings adds variables to the session's template context. Values are
// converted with template.ValueOf and bound in sorted key order.
func WithBindings(vars map[string]any) Option {
	return optionFunc(func(c *sessionConfig) {
		if c.bindings == nil {
			c.bindings = map[string]any{}
		}
		for k, v := range vars {
			c.bindings[k] = v
		}
	})
}
