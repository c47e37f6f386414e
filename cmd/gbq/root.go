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
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/softlynx/gbq"
	"github.com/softlynx/gbq/bqservice"
	"github.com/softlynx/gbq/template"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

// cliEnv holds what the commands need from the outside world.
type cliEnv struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	newService func(ctx context.Context, cfg *Config, logger *slog.Logger) (gbq.QueryService, error)
	newStorage func(ctx context.Context, cfg *Config) (*storage.Client, error)
}

type rootFlags struct {
	configPath      string
	project         string
	location        string
	credentialsFile string
	accessToken     string
	libraries       []string
	sets            []string
	pageSize        int64
	priority        string
	noCache         bool
	legacySQL       bool
	logLevel        string
	format          string
	maxRows         int64
}

// app is the state shared by the commands of one invocation.
type app struct {
	env    *cliEnv
	flags  rootFlags
	cfg    *Config
	logger *slog.Logger
}

func newRootCmd(env *cliEnv) *cobra.Command {
	a := &app{env: env}
	rootCmd := &cobra.Command{
		Use:           "gbq",
		Short:         "Run templated BigQuery queries",
		Long:          "Expand query macros from template libraries and run them as BigQuery jobs.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.configure(cmd.Flags())
		},
	}
	addFlags(rootCmd.PersistentFlags(), &a.flags)

	rootCmd.AddCommand(
		newExpandCmd(a),
		newRunCmd(a),
		newSQLCmd(a),
		newReadCmd(a),
		newStatusCmd(a),
	)
	return rootCmd
}

func addFlags(fs *pflag.FlagSet, f *rootFlags) {
	fs.StringVar(&f.configPath, "config", defaultConfigPath, "path of the YAML config file")
	fs.StringVar(&f.project, "project", "", "project to run jobs in")
	fs.StringVar(&f.location, "location", "", "location to run jobs in")
	fs.StringVar(&f.credentialsFile, "credentials-file", "", "service account key file")
	fs.StringVar(&f.accessToken, "access-token", "", "OAuth2 access token to use instead of other credentials")
	fs.StringSliceVarP(&f.libraries, "library", "l", nil, "template library to load (repeatable; local path or gs://bucket/object)")
	fs.StringArrayVar(&f.sets, "set", nil, "bind a template variable, as KEY=VALUE (repeatable)")
	fs.Int64Var(&f.pageSize, "page-size", 0, "rows per result page (default 1000)")
	fs.StringVar(&f.priority, "priority", "", "job priority: INTERACTIVE or BATCH")
	fs.BoolVar(&f.noCache, "no-cache", false, "do not answer from the query cache")
	fs.BoolVar(&f.legacySQL, "legacy-sql", false, "use legacy SQL")
	fs.StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVarP(&f.format, "format", "o", "table", "output format: table or json")
	fs.Int64Var(&f.maxRows, "max-rows", 0, "stop after this many rows (0 for all)")
}

// configure loads the config file and applies flags that were set on top
// of it.
func (a *app) configure(fs *pflag.FlagSet) error {
	if err := validateOutputFormat(a.flags.format); err != nil {
		return err
	}
	cfg, err := loadConfig(a.flags.configPath, fs.Changed("config"))
	if err != nil {
		return err
	}
	f := a.flags
	if fs.Changed("project") {
		cfg.Project = f.project
	}
	if fs.Changed("location") {
		cfg.Location = f.location
	}
	if fs.Changed("credentials-file") {
		cfg.CredentialsFile = f.credentialsFile
	}
	if fs.Changed("library") {
		cfg.Libraries = f.libraries
	}
	if fs.Changed("page-size") {
		cfg.PageSize = f.pageSize
	}
	if fs.Changed("priority") {
		cfg.Priority = f.priority
	}
	if fs.Changed("no-cache") {
		useCache := !f.noCache
		cfg.UseCache = &useCache
	}
	if fs.Changed("legacy-sql") {
		cfg.LegacySQL = f.legacySQL
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	cfg.AccessToken = f.accessToken
	if err := cfg.setBindings(f.sets); err != nil {
		return err
	}
	if _, err := cfg.priority(); err != nil {
		return err
	}
	level, err := cfg.logLevel()
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = slog.New(slog.NewTextHandler(a.env.stderr, &slog.HandlerOptions{Level: level}))
	return nil
}

func validateOutputFormat(format string) error {
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", format)
	}
	return nil
}

// library loads the configured template libraries.
func (a *app) library(ctx context.Context) (*template.Library, error) {
	ld := &template.Loader{}
	if slices.ContainsFunc(a.cfg.Libraries, isStorageURI) {
		client, err := a.env.newStorage(ctx, a.cfg)
		if err != nil {
			return nil, fmt.Errorf("creating storage client: %w", err)
		}
		defer client.Close()
		ld.Storage = client
	}
	lib := template.NewLibrary()
	if err := ld.Load(ctx, lib, a.cfg.Libraries...); err != nil {
		return nil, err
	}
	return lib, nil
}

func isStorageURI(name string) bool {
	return strings.HasPrefix(name, "gs://")
}

// session connects to the query service and returns a session over the
// configured libraries and bindings.
func (a *app) session(ctx context.Context) (*gbq.Session, error) {
	lib, err := a.library(ctx)
	if err != nil {
		return nil, err
	}
	svc, err := a.env.newService(ctx, a.cfg, a.logger)
	if err != nil {
		return nil, err
	}
	priority, err := a.cfg.priority()
	if err != nil {
		return nil, err
	}
	opts := []gbq.Option{
		gbq.WithLogger(a.logger),
		gbq.WithPriority(priority),
		gbq.WithQueryCache(a.cfg.useCache()),
		gbq.WithBindings(a.cfg.Bindings),
	}
	if a.cfg.PageSize != 0 {
		opts = append(opts, gbq.WithPageSize(a.cfg.PageSize))
	}
	return gbq.NewSession(svc, lib, opts...)
}

func clientOptions(cfg *Config) []option.ClientOption {
	var opts []option.ClientOption
	switch {
	case cfg.AccessToken != "":
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
		opts = append(opts, option.WithTokenSource(ts))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	return opts
}

func newBigQueryService(ctx context.Context, cfg *Config, logger *slog.Logger) (gbq.QueryService, error) {
	project := cfg.Project
	if project == "" {
		project = bqservice.DetectProjectID
	}
	opts := append(clientOptions(cfg), bqservice.WithLogger(logger))
	if cfg.Location != "" {
		opts = append(opts, bqservice.WithLocation(cfg.Location))
	}
	return bqservice.NewService(ctx, project, opts...)
}

func newStorageClient(ctx context.Context, cfg *Config) (*storage.Client, error) {
	return storage.NewClient(ctx, clientOptions(cfg)...)
}
