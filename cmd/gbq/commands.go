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
	"fmt"
	"io"
	"strings"

	"github.com/softlynx/gbq"
	"github.com/softlynx/gbq/template"
	"github.com/spf13/cobra"
)

func newExpandCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "expand MACRO [PARAM...]",
		Short: "Print the SQL a macro expands to without running it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			lib, err := a.library(cmd.Context())
			if err != nil {
				return err
			}
			vars := template.NewContext()
			if err := vars.SetAll(a.cfg.Bindings); err != nil {
				return err
			}
			params, err := template.Values(stringParams(args[1:])...)
			if err != nil {
				return err
			}
			sql, err := template.NewEngine(lib).Expand(args[0], params, vars)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimSpace(sql))
			return nil
		},
	}
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run MACRO [PARAM...]",
		Short: "Expand a macro, run it and print the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return a.runQuery(cmd, s.Select(args[0], stringParams(args[1:])...))
		},
	}
}

func newSQLCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sql TEXT",
		Short: "Run a query given as text (\"-\" reads it from standard input)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := args[0]
			if text == "-" {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("reading query: %w", err)
				}
				text = string(b)
			}
			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("empty query")
			}
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			return a.runQuery(cmd, s.SelectRaw(text))
		},
	}
}

func newReadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "read JOB_ID",
		Short: "Print the results of an existing job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			cur, err := s.AttachToJob(args[0])
			if err != nil {
				return err
			}
			return a.printResults(cmd, cur)
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status JOB_ID",
		Short: "Print the state of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.session(cmd.Context())
			if err != nil {
				return err
			}
			cur, err := s.AttachToJob(args[0])
			if err != nil {
				return err
			}
			st, err := cur.Status(cmd.Context())
			if err != nil {
				return err
			}
			return printStatus(cmd.OutOrStdout(), a.flags.format, cur.JobID(), st)
		},
	}
}

func (a *app) runQuery(cmd *cobra.Command, qb *gbq.QueryBuilder) error {
	cur, err := qb.WithLegacySQL(a.cfg.LegacySQL).Build(cmd.Context())
	if err != nil {
		return err
	}
	return a.printResults(cmd, cur)
}

func (a *app) printResults(cmd *cobra.Command, cur *gbq.Cursor) error {
	n, err := printRows(cmd.Context(), cmd.OutOrStdout(), a.flags.format, cur, a.flags.maxRows)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "job %s: %d rows\n", cur.JobID(), n)
	return nil
}

func stringParams(args []string) []any {
	params := make([]any, len(args))
	for i, a := range args {
		params[i] = a
	}
	return params
}
