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
	"io"
	"path"
	"slices"
	"strings"
	"sync"
)

// Macro is a named, parameterized piece of query text.
type Macro struct {
	Name string
	// Params are the formal parameter names. They are optional: a body can
	// always address the i'th argument as ${Name[i]}.
	Params []string
	Body   string
	// Library is the name of the source the macro was loaded from.
	Library string
}

// Library holds macro definitions. Macro names are unique across a Library;
// defining a name twice is an error, whichever source it comes from.
type Library struct {
	mu     sync.RWMutex
	macros map[string]*Macro
	names  []string
}

// NewLibrary returns an empty Library.
func NewLibrary() *Library {
	return &Library{macros: map[string]*Macro{}}
}

// Define adds m to the library.
func (l *Library) Define(m *Macro) error {
	return l.defineAll([]*Macro{m})
}

// defineAll adds every macro in ms, or none of them if any is invalid or
// its name is already taken.
func (l *Library) defineAll(ms []*Macro) error {
	for _, m := range ms {
		if err := validateMacro(m); err != nil {
			return err
		}
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	seen := make(map[string]*Macro, len(ms))
	for _, m := range ms {
		prev, ok := l.macros[m.Name]
		if !ok {
			prev, ok = seen[m.Name]
		}
		if ok {
			return &Error{
				Library: m.Library,
				Macro:   m.Name,
				Err:     fmt.Errorf("%w: already defined in %q", ErrDuplicateMacro, prev.Library),
			}
		}
		seen[m.Name] = m
	}
	for _, m := range ms {
		cp := *m
		cp.Params = slices.Clone(m.Params)
		l.macros[m.Name] = &cp
		l.names = append(l.names, m.Name)
	}
	return nil
}

func validateMacro(m *Macro) error {
	if m == nil || m.Name == "" {
		return &Error{Library: macroLib(m), Err: fmt.Errorf("%w: macro has no name", ErrParse)}
	}
	if !isIdent(m.Name) {
		return &Error{Library: m.Library, Macro: m.Name, Err: fmt.Errorf("%w: invalid macro name", ErrParse)}
	}
	for _, p := range m.Params {
		if !isIdent(p) {
			return &Error{Library: m.Library, Macro: m.Name, Err: fmt.Errorf("%w: invalid parameter name %q", ErrParse, p)}
		}
	}
	return nil
}

func macroLib(m *Macro) string {
	if m == nil {
		return ""
	}
	return m.Library
}

// Lookup returns the macro with the given name.
func (l *Library) Lookup(name string) (*Macro, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m, ok := l.macros[name]
	return m, ok
}

// Names returns the defined macro names in definition order.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.names)
}

// Len returns the number of defined macros.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.names)
}

// Parse reads a template library from r and defines its macros. The format
// is chosen from name's extension: ".yaml" and ".yml" are YAML, anything
// else uses the #macro ... #end syntax. Nothing is defined if r fails to
// parse or defines a name that is already taken.
func (l *Library) Parse(name string, r io.Reader) error {
	var (
		macros []*Macro
		err    error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".yaml", ".yml":
		macros, err = parseYAML(name, r)
	default:
		macros, err = parseMacros(name, r)
	}
	if err != nil {
		return err
	}
	return l.defineAll(macros)
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', 'a' <= r && r <= 'z', 'A' <= r && r <= 'Z':
		case i > 0 && '0' <= r && r <= '9':
		default:
			return false
		}
	}
	return true
}
