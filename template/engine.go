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
	"errors"
	"fmt"
	"io"

	"github.com/valyala/fasttemplate"
)

const (
	startTag = "${"
	endTag   = "}"
)

// Engine expands macros from a Library into query text.
type Engine struct {
	lib *Library
}

// NewEngine returns an Engine that expands macros defined in lib.
func NewEngine(lib *Library) *Engine {
	if lib == nil {
		lib = NewLibrary()
	}
	return &Engine{lib: lib}
}

// Library returns the engine's macro library.
func (e *Engine) Library() *Library { return e.lib }

// Expand renders the macro called name with the given positional parameters.
//
// The body is rendered in a new scope layered over ctx, in which name is
// bound to the list of all parameters and each formal parameter name to its
// positional value. ctx itself is never modified, and the scope is dropped
// when Expand returns, so expanding the same inputs always yields the same
// text.
func (e *Engine) Expand(name string, params []Value, ctx *Context) (string, error) {
	m, ok := e.lib.Lookup(name)
	if !ok {
		return "", &Error{Macro: name, Err: ErrUndefinedMacro}
	}
	if ctx == nil {
		ctx = NewContext()
	}
	scope := ctx.Child()
	scope.Set(m.Name, List(params...))
	for i, p := range m.Params {
		if i < len(params) {
			scope.Set(p, params[i])
		}
	}
	r := &renderer{scope: scope, macro: m, nparams: len(params)}
	out, err := r.render(m.Body)
	if err != nil {
		var te *Error
		if errors.As(err, &te) {
			te.Macro = m.Name
			te.Library = m.Library
			return "", te
		}
		return "", &Error{Macro: m.Name, Library: m.Library, Err: err}
	}
	return out, nil
}

// Render substitutes references in text against ctx without invoking a
// macro.
func (e *Engine) Render(text string, ctx *Context) (string, error) {
	if ctx == nil {
		ctx = NewContext()
	}
	r := &renderer{scope: ctx}
	return r.render(text)
}

type renderer struct {
	scope   *Context
	macro   *Macro // nil outside of macro expansion
	nparams int
}

func (r *renderer) render(text string) (string, error) {
	return fasttemplate.ExecuteFuncStringWithErr(text, startTag, endTag, r.substitute)
}

func (r *renderer) substitute(w io.Writer, tag string) (int, error) {
	ref, err := parseRef(tag)
	if err != nil {
		return 0, &Error{Ref: tag, Err: err}
	}
	v, err := r.resolve(ref)
	if err != nil {
		return 0, &Error{Ref: tag, Err: err}
	}
	v, err = applyFilters(v, ref.filters)
	if err != nil {
		return 0, &Error{Ref: tag, Err: err}
	}
	s, err := v.render()
	if err != nil {
		return 0, &Error{Ref: tag, Err: fmt.Errorf("%w: %v", ErrBadReference, err)}
	}
	return io.WriteString(w, s)
}

func (r *renderer) resolve(ref *reference) (Value, error) {
	if r.macro != nil {
		for i, p := range r.macro.Params {
			if p == ref.head && i >= r.nparams {
				return Value{}, fmt.Errorf("%w: parameter %q is #%d, %d given", ErrParamOutOfRange, p, i, r.nparams)
			}
		}
	}
	v, ok := r.scope.Lookup(ref.head)
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrUndefinedVariable, ref.head)
	}
	for _, s := range ref.steps {
		if s.field != "" {
			c := v.Context()
			if c == nil {
				return Value{}, fmt.Errorf("%w: .%s on a %v value", ErrBadReference, s.field, v.Kind())
			}
			if v, ok = c.Lookup(s.field); !ok {
				return Value{}, fmt.Errorf("%w: field %s", ErrUndefinedVariable, s.field)
			}
			continue
		}
		if v.Kind() != ListKind {
			return Value{}, fmt.Errorf("%w: [%d] on a %v value", ErrBadReference, s.index, v.Kind())
		}
		n := v.Len()
		if v, ok = v.Index(s.index); !ok {
			return Value{}, fmt.Errorf("%w: index %d, length %d", ErrParamOutOfRange, s.index, n)
		}
	}
	return v, nil
}
