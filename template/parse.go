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
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	macroHeader = regexp.MustCompile(`^#macro\s*\(([^)]*)\)\s*$`)
	paramSep    = regexp.MustCompile(`[\s,]+`)
)

// parseMacros reads the line oriented library format:
//
//	## comment
//	#macro(name $first $second)
//	SELECT ${first} FROM ${DATASET}.t WHERE id = ${name[1]}
//	#end
func parseMacros(lib string, r io.Reader) ([]*Macro, error) {
	var (
		macros []*Macro
		cur    *Macro
		start  int
		body   []string
	)
	perr := func(line int, format string, args ...any) error {
		return &Error{Library: lib, Line: line, Err: fmt.Errorf("%w: "+format, append([]any{ErrParse}, args...)...)}
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSuffix(sc.Text(), "\r")
		trimmed := strings.TrimSpace(line)

		if cur != nil {
			switch {
			case trimmed == "#end":
				cur.Body = strings.Join(body, "\n")
				macros = append(macros, cur)
				cur, body = nil, nil
			case macroHeader.MatchString(trimmed):
				return nil, perr(n, "#macro inside macro %q started on line %d", cur.Name, start)
			default:
				body = append(body, line)
			}
			continue
		}

		switch {
		case trimmed == "", strings.HasPrefix(trimmed, "##"):
		case trimmed == "#end":
			return nil, perr(n, "#end without #macro")
		default:
			m := macroHeader.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, perr(n, "unexpected text outside of a macro: %q", trimmed)
			}
			fields := paramSep.Split(strings.TrimSpace(m[1]), -1)
			if len(fields) == 0 || fields[0] == "" {
				return nil, perr(n, "#macro without a name")
			}
			cur = &Macro{Name: fields[0], Library: lib}
			for _, p := range fields[1:] {
				cur.Params = append(cur.Params, strings.TrimPrefix(p, "$"))
			}
			start = n
		}
	}
	if err := sc.Err(); err != nil {
		return nil, &Error{Library: lib, Err: fmt.Errorf("%w: %v", ErrParse, err)}
	}
	if cur != nil {
		return nil, perr(start, "macro %q is missing #end", cur.Name)
	}
	return macros, nil
}

type yamlLibrary struct {
	Macros []yamlMacro `yaml:"macros"`
}

type yamlMacro struct {
	Name   string   `yaml:"name"`
	Params []string `yaml:"params"`
	Body   string   `yaml:"body"`
}

// parseYAML reads a library of the form
//
//	macros:
//	  - name: greet
//	    params: [who]
//	    body: Hello, ${greet[0]}!
func parseYAML(lib string, r io.Reader) ([]*Macro, error) {
	var doc yamlLibrary
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, &Error{Library: lib, Err: fmt.Errorf("%w: %v", ErrParse, err)}
	}
	macros := make([]*Macro, 0, len(doc.Macros))
	for _, ym := range doc.Macros {
		m := &Macro{
			Name:    ym.Name,
			Body:    strings.TrimSuffix(ym.Body, "\n"),
			Library: lib,
		}
		for _, p := range ym.Params {
			m.Params = append(m.Params, strings.TrimPrefix(p, "$"))
		}
		macros = append(macros, m)
	}
	return macros, nil
}
