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

// Command gbq expands query macros and runs them as BigQuery jobs.
//
// Usage:
//
//	gbq [flags] expand MACRO [PARAM...]
//	gbq [flags] run MACRO [PARAM...]
//	gbq [flags] sql TEXT
//	gbq [flags] read JOB_ID
//	gbq [flags] status JOB_ID
//
// Settings are read from gbq.yaml in the current directory, or the file
// named by --config, and may be overridden by flags. Macro parameters are
// passed as strings.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:], defaultEnv())
	stop()
	os.Exit(code)
}

func execute(ctx context.Context, args []string, env *cliEnv) int {
	cmd := newRootCmd(env)
	cmd.SetArgs(args)
	cmd.SetIn(env.stdin)
	cmd.SetOut(env.stdout)
	cmd.SetErr(env.stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(env.stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func defaultEnv() *cliEnv {
	return &cliEnv{
		stdin:      os.Stdin,
		stdout:     os.Stdout,
		stderr:     os.Stderr,
		newService: newBigQueryService,
		newStorage: newStorageClient,
	}
}
