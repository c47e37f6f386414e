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
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/softlynx/gbq"
	"gopkg.in/yaml.v3"
)

const defaultConfigPath = "gbq.yaml"

// Config is the contents of a gbq.yaml file. Flags override it.
type Config struct {
	Project         string         `yaml:"project"`
	Location        string         `yaml:"location,omitempty"`
	CredentialsFile string         `yaml:"credentials_file,omitempty"`
	Libraries       []string       `yaml:"libraries,omitempty"`
	PageSize        int64          `yaml:"page_size,omitempty"`
	Priority        string         `yaml:"priority,omitempty"`
	UseCache        *bool          `yaml:"use_cache,omitempty"`
	LegacySQL       bool           `yaml:"legacy_sql,omitempty"`
	LogLevel        string         `yaml:"log_level,omitempty"`
	Bindings        map[string]any `yaml:"bindings,omitempty"`

	// AccessToken is only set from the command line.
	AccessToken string `yaml:"-"`
}

// loadConfig reads the config at path. A missing file is an error only if
// the path was given explicitly.
func loadConfig(path string, explicit bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) useCache() bool {
	return c.UseCache == nil || *c.UseCache
}

func (c *Config) priority() (gbq.Priority, error) {
	return gbq.ParsePriority(c.Priority)
}

func (c *Config) logLevel() (slog.Level, error) {
	if c.LogLevel == "" {
		return slog.LevelWarn, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}

// setBindings parses KEY=VALUE pairs into c.Bindings, replacing bindings
// from the config file.
func (c *Config) setBindings(pairs []string) error {
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return fmt.Errorf("--set %q: want KEY=VALUE", p)
		}
		if c.Bindings == nil {
			c.Bindings = map[string]any{}
		}
		c.Bindings[k] = v
	}
	return nil
}
