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
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/softlynx/gbq/template"
)

func testLibrary(t *testing.T) *template.Library {
	t.Helper()
	lib := template.NewLibrary()
	err := lib.Parse("test.vm", strings.NewReader(`
#macro(greet $who)
Hello, ${greet[0]}!
#end
#macro(alltabledata $table)
SELECT * FROM ${DATASET}.${table}
#end
#macro(second)
${second[1]}
#end
`))
	if err != nil {
		t.Fatal(err)
	}
	return lib
}

func testSession(t *testing.T, svc QueryService, opts ...Option) *Session {
	t.Helper()
	s, err := NewSession(svc, testLibrary(t), opts...)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestBuilderPageSize(t *testing.T) {
	testCases := []struct {
		in, want int64
	}{
		{0, 1000},
		{-5, 1000},
		{1, 1},
		{250, 250},
	}
	for _, tc := range testCases {
		svc := twoPageService()
		s := testSession(t, svc)
		b := s.SelectRaw("SELECT 1").WithPageSize(tc.in)
		if got := b.PageSize(); got != tc.want {
			t.Errorf("PageSize(%d) = %d, want %d", tc.in, got, tc.want)
		}
		c, err := b.Build(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if got := c.PageSize(); got != tc.want {
			t.Errorf("cursor PageSize for %d = %d, want %d", tc.in, got, tc.want)
		}
		if _, err := c.HasNext(context.Background()); err != nil {
			t.Fatal(err)
		}
		if got := svc.fetches[0].MaxResults; got != tc.want {
			t.Errorf("fetch maxResults for %d = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestBuilderSubmitsOptions(t *testing.T) {
	svc := &stubService{jobID: "j42"}
	s := testSession(t, svc, WithPriority(BatchPriority), WithQueryCache(false))

	c, err := s.Select("greet", "World").Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.SelectRaw("SELECT 2").UseCache(true).WithPriority(InteractivePriority).WithLegacySQL(true).Build(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []submission{
		{"Hello, World!", JobOptions{UseCache: false, Priority: BatchPriority}},
		{"SELECT 2", JobOptions{UseCache: true, Priority: InteractivePriority, LegacySQL: true}},
	}
	if diff := cmp.Diff(want, svc.submitted); diff != "" {
		t.Errorf("submissions mismatch (-want +got):\n%s", diff)
	}
	wantDesc := JobDescriptor{
		JobID:    "j42",
		SQL:      "Hello, World!",
		Options:  JobOptions{Priority: BatchPriority},
		PageSize: DefaultPageSize,
	}
	if diff := cmp.Diff(wantDesc, c.Descriptor()); diff != "" {
		t.Errorf("Descriptor() mismatch (-want +got):\n%s", diff)
	}
	if c.JobID() != "j42" || c.SQL() != "Hello, World!" {
		t.Errorf("cursor = (%q, %q)", c.JobID(), c.SQL())
	}
}

func TestBuilderErrors(t *testing.T) {
	ctx := context.Background()
	subErr := &SubmissionError{SQL: "SELECT 1", Err: errors.New("invalid query")}

	t.Run("submission error is returned unchanged", func(t *testing.T) {
		s := testSession(t, &stubService{submitErr: subErr})
		_, err := s.SelectRaw("SELECT 1").Build(ctx)
		if err != subErr {
			t.Errorf("got %v, want %v", err, subErr)
		}
	})
	t.Run("undefined macro", func(t *testing.T) {
		svc := &stubService{}
		_, err := testSession(t, svc).Select("nope").Build(ctx)
		var te *template.Error
		if !errors.As(err, &te) || !errors.Is(err, template.ErrUndefinedMacro) {
			t.Errorf("got %v, want an undefined macro *template.Error", err)
		}
		if len(svc.submitted) != 0 {
			t.Error("a query was submitted")
		}
	})
	t.Run("parameter out of range", func(t *testing.T) {
		_, err := testSession(t, &stubService{}).Select("second", "only").Build(ctx)
		if !errors.Is(err, template.ErrParamOutOfRange) {
			t.Errorf("got %v, want ErrParamOutOfRange", err)
		}
	})
	t.Run("bad priority", func(t *testing.T) {
		_, err := testSession(t, &stubService{}).SelectRaw("SELECT 1").WithPriority("URGENT").Build(ctx)
		if err == nil {
			t.Error("Build with an unknown priority succeeded")
		}
	})
	t.Run("no query", func(t *testing.T) {
		_, err := testSession(t, &stubService{}).SelectRaw("").Build(ctx)
		if !errors.Is(err, errNoQuery) {
			t.Errorf("got %v, want errNoQuery", err)
		}
	})
	t.Run("unconvertible parameter", func(t *testing.T) {
		svc := &stubService{}
		s := testSession(t, svc)
		_, buildErr := s.Select("greet", make(chan int)).Build(ctx)
		_, expandErr := s.Expand("greet", struct{}{})
		for _, err := range []error{buildErr, expandErr} {
			var te *template.Error
			if !errors.As(err, &te) || te.Macro != "greet" || !errors.Is(err, template.ErrBadReference) {
				t.Errorf("got %v, want a bad reference *template.Error for greet", err)
			}
		}
		if len(svc.submitted) != 0 {
			t.Error("a query was submitted")
		}
	})
	t.Run("unconvertible binding", func(t *testing.T) {
		_, err := testSession(t, &stubService{}).Select("greet", "x").With("bad", struct{}{}).SQL()
		if err == nil {
			t.Error("With(struct{}{}) succeeded")
		}
	})
}

func TestBuilderSQLIsMemoized(t *testing.T) {
	s := testSession(t, &stubService{})
	if err := s.Set("DATASET", "ds1"); err != nil {
		t.Fatal(err)
	}
	b := s.Select("alltabledata", "t")
	first, err := b.SQL()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("DATASET", "ds2"); err != nil {
		t.Fatal(err)
	}
	second, _ := b.SQL()
	if first != "SELECT * FROM ds1.t" || second != first {
		t.Errorf("SQL() = %q then %q, want the first expansion twice", first, second)
	}

	// Changing the template recomputes.
	third, _ := b.WithTemplate("alltabledata", "u").SQL()
	if want := "SELECT * FROM ds2.u"; third != want {
		t.Errorf("after WithTemplate, SQL() = %q, want %q", third, want)
	}
	// A failed expansion is not remembered.
	b.WithTemplate("alltabledata")
	if _, err := b.SQL(); err == nil {
		t.Fatal("expansion without the table parameter succeeded")
	}
	b.WithTemplate("alltabledata", "v")
	if got, _ := b.SQL(); got != "SELECT * FROM ds2.v" {
		t.Errorf("SQL() = %q after a failed expansion", got)
	}
}

func TestBuilderWithBindings(t *testing.T) {
	s := testSession(t, &stubService{}, WithBindings(map[string]any{"DATASET": "shared"}))

	local := s.Select("alltabledata", "t").With("DATASET", "mine")
	got, err := local.SQL()
	if err != nil {
		t.Fatal(err)
	}
	if want := "SELECT * FROM mine.t"; got != want {
		t.Errorf("SQL() = %q, want %q", got, want)
	}
	if v, _ := s.Context().Lookup("DATASET"); v.String() != "shared" {
		t.Errorf("session DATASET = %v, want shared", v)
	}
	other, _ := s.Select("alltabledata", "t").SQL()
	if want := "SELECT * FROM shared.t"; other != want {
		t.Errorf("other query SQL() = %q, want %q", other, want)
	}

	// Per-query bindings see later session updates for names they don't
	// shadow.
	b := s.Select("alltabledata", "t").With("unused", 1)
	if err := s.Set("DATASET", "updated"); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.SQL(); got != "SELECT * FROM updated.t" {
		t.Errorf("SQL() = %q, want the updated session binding", got)
	}
}
