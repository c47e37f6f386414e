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
)

var (
	// ErrUndefinedMacro is reported when expanding a name no library defines.
	ErrUndefinedMacro = errors.New("undefined macro")
	// ErrParamOutOfRange is reported when a reference indexes past the end of
	// a list, including a macro's own parameter list.
	ErrParamOutOfRange = errors.New("parameter index out of range")
	// ErrUndefinedVariable is reported for a reference to an unbound name.
	ErrUndefinedVariable = errors.New("undefined variable")
	// ErrBadReference is reported for malformed references, unknown filters
	// and values that cannot be rendered as text.
	ErrBadReference = errors.New("bad reference")
	// ErrDuplicateMacro is reported when two libraries define the same macro.
	ErrDuplicateMacro = errors.New("duplicate macro")
	// ErrParse is reported for malformed template library sources.
	ErrParse = errors.New("parse error")
)

// Error describes a failure to load or expand a template. Use errors.Is with
// the Err* sentinels to distinguish the cause.
type Error struct {
	// Macro is the macro being defined or expanded, if any.
	Macro string
	// Ref is the text of the offending substitution reference, if any.
	Ref string
	// Library and Line locate parse errors.
	Library string
	Line    int

	Err error
}

func (e *Error) Error() string {
	var loc string
	switch {
	case e.Library != "" && e.Line > 0:
		loc = fmt.Sprintf("%s:%d: ", e.Library, e.Line)
	case e.Library != "":
		loc = e.Library + ": "
	}
	msg := "template: " + loc
	if e.Macro != "" {
		msg += fmt.Sprintf("macro %q: ", e.Macro)
	}
	if e.Ref != "" {
		msg += fmt.Sprintf("${%s}: ", e.Ref)
	}
	return msg + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }
