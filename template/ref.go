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
	"strconv"
	"strings"
)

// A reference is the parsed content of a ${...} substitution point:
//
//	head ( "[" index "]" | "." field )* ( "|" filter )*
type reference struct {
	head    string
	steps   []step
	filters []string
}

type step struct {
	field string // set for .field steps
	index int    // used when field is empty
}

func parseRef(s string) (*reference, error) {
	parts := strings.Split(s, "|")
	ref := &reference{}
	for _, f := range parts[1:] {
		f = strings.TrimSpace(f)
		if !isIdent(f) {
			return nil, fmt.Errorf("%w: bad filter name %q", ErrBadReference, f)
		}
		ref.filters = append(ref.filters, f)
	}

	p := strings.TrimSpace(parts[0])
	head, rest := scanIdent(p)
	if head == "" {
		return nil, fmt.Errorf("%w: reference must start with a name", ErrBadReference)
	}
	ref.head = head
	for rest != "" {
		switch rest[0] {
		case '[':
			end := strings.IndexByte(rest, ']')
			if end < 0 {
				return nil, fmt.Errorf("%w: missing ]", ErrBadReference)
			}
			digits := rest[1:end]
			if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
				return nil, fmt.Errorf("%w: index %q is not a non-negative integer", ErrBadReference, digits)
			}
			i, err := strconv.Atoi(digits)
			if err != nil {
				return nil, fmt.Errorf("%w: index %q: %v", ErrBadReference, digits, err)
			}
			ref.steps = append(ref.steps, step{index: i})
			rest = rest[end+1:]
		case '.':
			var f string
			f, rest = scanIdent(rest[1:])
			if f == "" {
				return nil, fmt.Errorf("%w: missing field name after .", ErrBadReference)
			}
			ref.steps = append(ref.steps, step{field: f})
		default:
			return nil, fmt.Errorf("%w: unexpected %q", ErrBadReference, rest)
		}
	}
	return ref, nil
}

// scanIdent splits s into a leading identifier and the remainder.
func scanIdent(s string) (ident, rest string) {
	i := 0
	for i < len(s) {
		c := s[i]
		if c == '_' || 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || i > 0 && '0' <= c && c <= '9' {
			i++
			continue
		}
		break
	}
	return s[:i], s[i:]
}
