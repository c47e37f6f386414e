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

// Package testutil contains helpers for tests of this module.
package testutil

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// SpanRecorder collects the spans ended while it is installed as the global
// tracer provider.
type SpanRecorder struct {
	exporter *tracetest.InMemoryExporter
}

// NewSpanRecorder installs a recording tracer provider for the duration of
// the test. Tests using it must not run in parallel.
func NewSpanRecorder(t testing.TB) *SpanRecorder {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		tp.Shutdown(context.Background())
		otel.SetTracerProvider(prev)
	})
	return &SpanRecorder{exporter: exporter}
}

// Spans returns the spans ended so far.
func (r *SpanRecorder) Spans() tracetest.SpanStubs {
	return r.exporter.GetSpans()
}

// SpanNames returns the names of the spans ended so far, in order.
func (r *SpanRecorder) SpanNames() []string {
	var names []string
	for _, s := range r.exporter.GetSpans() {
		names = append(names, s.Name)
	}
	return names
}
