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

package main

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/softlynx/gbq"
)

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gbq.yaml")
	data := `
project: my-project
location: US
credentials_file: key.json
libraries: [queries.vm, gs://bucket/more.yaml]
page_size: 250
priority: batch
use_cache: false
legacy_sql: true
log_level: debug
bindings:
  DATASET: my_dataset
  LIMIT: 10
  IDS: [1, 2]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatal(err)
	}
	noCache := false
	want := &Config{
		Project:         "my-project",
		Location:        "US",
		CredentialsFile: "key.json",
		Libraries:       []string{"queries.vm", "gs://bucket/more.yaml"},
		PageSize:        250,
		Priority:        "batch",
		UseCache:        &noCache,
		LegacySQL:       true,
		LogLevel:        "debug",
		Bindings: map[string]any{
			"DATASET": "my_dataset",
			"LIMIT":   10,
			"IDS":     []any{1, 2},
		},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
	if cfg.useCache() {
		t.Error("useCache() = true, want false")
	}
	if p, err := cfg.priority(); err != nil || p != gbq.BatchPriority {
		t.Errorf("priority() = %v, %v", p, err)
	}
	if l, err := cfg.logLevel(); err != nil || l != slog.LevelDebug {
		t.Errorf("logLevel() = %v, %v", l, err)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"), false)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.useCache() {
		t.Error("useCache() = false, want true by default")
	}
	if l, _ := cfg.logLevel(); l != slog.LevelWarn {
		t.Errorf("logLevel() = %v, want WARN", l)
	}
	if p, _ := cfg.priority(); p != gbq.InteractivePriority {
		t.Errorf("priority() = %v, want INTERACTIVE", p)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("project: [unterminated"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(bad, true); err == nil {
		t.Error("malformed YAML: got nil error")
	}
	if _, err := loadConfig(filepath.Join(dir, "absent.yaml"), true); err == nil {
		t.Error("missing explicit config: got nil error")
	}
}

func TestSetBindings(t *testing.T) {
	cfg := &Config{Bindings: map[string]any{"DATASET": "a", "KEEP": 1}}
	if err := cfg.setBindings([]string{"DATASET=b", " EXTRA =x=y", "EMPTY="}); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"DATASET": "b", "KEEP": 1, "EXTRA": "x=y", "EMPTY": ""}
	if diff := cmp.Diff(want, cfg.Bindings); diff != "" {
		t.Errorf("bindings mismatch (-want +got):\n%s", diff)
	}
	for _, bad := range []string{"novalue", "=v"} {
		if err := (&Config{}).setBindings([]string{bad}); err == nil {
			t.Errorf("setBindings(%q): got nil error", bad)
		}
	}
}
