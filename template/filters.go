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

package template

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// A filter transforms a value before it is rendered. Filters map over lists
// element by element.
type filter func(Value) (Value, error)

var filters = map[string]filter{
	"quote": elementwise(quoteFilter),
	"sql":   elementwise(sqlFilter),
	"ident": elementwise(identFilter),
	"upper": elementwise(caseFilter(func() cases.Caser { return cases.Upper(language.Und) })),
	"lower": elementwise(caseFilter(func() cases.Caser { return cases.Lower(language.Und) })),
}

func applyFilters(v Value, names []string) (Value, error) {
	for _, name := range names {
		f, ok := filters[name]
		if !ok {
			return Value{}, fmt.Errorf("%w: unknown filter %q", ErrBadReference, name)
		}
		var err error
		if v, err = f(v); err != nil {
			return Value{}, fmt.Errorf("%w: filter %q: %v", ErrBadReference, name, err)
		}
	}
	return v, nil
}

func elementwise(f filter) filter {
	var g filter
	g = func(v Value) (Value, error) {
		if v.kind != ListKind {
			return f(v)
		}
		out := make([]Value, len(v.list))
		for i, e := range v.list {
			r, err := g(e)
			if err != nil {
				return Value{}, err
			}
			out[i] = r
		}
		return Value{kind: ListKind, list: out}, nil
	}
	return g
}

var literalEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`, "\r", `\r`)

// quoteFilter turns any scalar into a single quoted string literal. NULL stays
// bare.
func quoteFilter(v Value) (Value, error) {
	if v.kind == NullKind {
		return v, nil
	}
	s, err := v.render()
	if err != nil {
		return Value{}, err
	}
	return String("'" + literalEscaper.Replace(s) + "'"), nil
}

// sqlFilter renders v as a literal of its own type: text, dates and
// timestamps are quoted, numbers, booleans and NULL are not.
func sqlFilter(v Value) (Value, error) {
	switch v.kind {
	case StringKind, DateKind, TimestampKind:
		return quoteFilter(v)
	case ContextKind:
		return Value{}, fmt.Errorf("cannot render a nested context")
	}
	return v, nil
}

var identEscaper = strings.NewReplacer(`\`, `\\`, "`", "\\`")

// identFilter quotes v as an identifier, e.g. `my-project.dataset.table`.
func identFilter(v Value) (Value, error) {
	if v.kind == NullKind {
		return Value{}, fmt.Errorf("NULL is not an identifier")
	}
	s, err := v.render()
	if err != nil {
		return Value{}, err
	}
	if s == "" {
		return Value{}, fmt.Errorf("empty identifier")
	}
	return String("`" + identEscaper.Replace(s) + "`"), nil
}

func caseFilter(newCaser func() cases.Caser) filter {
	return func(v Value) (Value, error) {
		if v.kind != StringKind {
			return v, nil
		}
		return String(newCaser().String(v.s)), nil
	}
}
