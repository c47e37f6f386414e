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

// Package internal holds helpers shared by the packages of this module.
package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gax "github.com/googleapis/gax-go/v2"
)

// Retry calls f until f reports stop, pausing between calls according to
// bo. It returns f's error from the stopping call. If ctx is done while
// pausing, Retry returns an error that matches both the context error and
// the last error f returned.
func Retry(ctx context.Context, bo gax.Backoff, f func() (stop bool, err error)) error {
	return retry(ctx, bo, 0, f, gax.Sleep)
}

// RetryN is like Retry but gives up once f has failed maxFailures times,
// returning an *ExhaustedError holding every failure. Calls that return a
// nil error without stopping, such as polls of a job that has not finished,
// are not failures. maxFailures <= 0 means no limit.
func RetryN(ctx context.Context, bo gax.Backoff, maxFailures int, f func() (stop bool, err error)) error {
	return retry(ctx, bo, maxFailures, f, gax.Sleep)
}

type sleeper func(context.Context, time.Duration) error

func retry(ctx context.Context, bo gax.Backoff, maxFailures int, f func() (bool, error), sleep sleeper) error {
	var failures []error
	for {
		stop, err := f()
		if stop {
			return err
		}
		if err != nil && !isContextErr(err) {
			failures = append(failures, err)
			if maxFailures > 0 && len(failures) >= maxFailures {
				return &ExhaustedError{Errors: failures}
			}
		}
		if serr := sleep(ctx, bo.Pause()); serr != nil {
			if len(failures) == 0 {
				return serr
			}
			return &interruptedError{ctxErr: serr, last: failures[len(failures)-1]}
		}
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ExhaustedError is returned by RetryN when the failure limit is reached.
type ExhaustedError struct {
	// Errors are the failures in the order they happened.
	Errors []error
}

func (e *ExhaustedError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "gave up after %d failed attempts", len(e.Errors))
	if n := len(e.Errors); n > 0 {
		fmt.Fprintf(&b, "; last error: %v", e.Errors[n-1])
	}
	return b.String()
}

// Unwrap returns the most recent failure.
func (e *ExhaustedError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// interruptedError matches both the context error that ended a retry loop
// and the failure that preceded it.
type interruptedError struct {
	ctxErr error
	last   error
}

func (e *interruptedError) Error() string {
	return fmt.Sprintf("retry interrupted by %v; last error: %v", e.ctxErr, e.last)
}

func (e *interruptedError) Unwrap() []error { return []error{e.last, e.ctxErr} }
