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

// Package detect finds the project to run jobs in from the environment.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/transport"
)

// ProjectIDSentinel asks ProjectID to detect the project.
const ProjectIDSentinel = "*detect-project-id*"

const envProjectID = "GOOGLE_CLOUD_PROJECT"

var (
	envLookupFunc = os.Getenv
	adcLookupFunc = func(ctx context.Context, opts ...option.ClientOption) (*google.Credentials, error) {
		return transport.Creds(ctx, opts...)
	}
)

// ProjectID returns projectID unless it is ProjectIDSentinel, in which case
// it looks, in order, at:
//  1. the GOOGLE_CLOUD_PROJECT environment variable
//  2. the project of the application default credentials
//  3. a fixed "emulated-project" if emulatorEnvVar is set
func ProjectID(ctx context.Context, projectID string, emulatorEnvVar string, opts ...option.ClientOption) (string, error) {
	if projectID != ProjectIDSentinel {
		return projectID, nil
	}
	if id := envLookupFunc(envProjectID); id != "" {
		return id, nil
	}
	creds, err := adcLookupFunc(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("fetching creds: %w", err)
	}
	if creds.ProjectID == "" && emulatorEnvVar != "" && envLookupFunc(emulatorEnvVar) != "" {
		return "emulated-project", nil
	}
	if creds.ProjectID == "" {
		return "", errors.New("unable to detect project ID; set " + envProjectID + " or pass a project")
	}
	return creds.ProjectID, nil
}
