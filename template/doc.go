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

// Package template expands named query macros against a scoped set of
// variables.
//
// A Library holds macros loaded from one or more sources. Two source formats
// are understood. The line format:
//
//	## Rows of a table in the session's dataset.
//	#macro(alltabledata $table)
//	SELECT * FROM ${DATASET|ident}.${table|ident}
//	#end
//
// and YAML (files ending in .yaml or .yml):
//
//	macros:
//	  - name: alltabledata
//	    params: [table]
//	    body: SELECT * FROM ${DATASET|ident}.${table|ident}
//
// A macro body refers to its arguments either by formal name or by position
// through the macro's own name: ${alltabledata[0]} and ${table} above are the
// same value. Other names resolve through the Context passed to
// Engine.Expand. A reference may be followed by filters: quote, sql, ident,
// upper and lower.
package template // import "github.com/softlynx/gbq/template"
