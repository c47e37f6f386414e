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

package bqservice

import (
	"fmt"

	"github.com/softlynx/gbq"
	bq "google.golang.org/api/bigquery/v2"
)

// An Error contains detailed information about a failed job.
type Error struct {
	// Mirrors bq.ErrorProto, but drops DebugInfo
	Location, Message, Reason string
}

func (e Error) Error() string {
	return fmt.Sprintf("{Location: %q; Message: %q; Reason: %q}", e.Location, e.Message, e.Reason)
}

func errorFromErrorProto(ep *bq.ErrorProto) *Error {
	if ep == nil {
		return nil
	}
	return &Error{
		Location: ep.Location,
		Message:  ep.Message,
		Reason:   ep.Reason,
	}
}

var stateMap = map[string]gbq.State{"PENDING": gbq.Pending, "RUNNING": gbq.Running, "DONE": gbq.Done}

func jobStatusFromProto(status *bq.JobStatus) (*gbq.JobStatus, error) {
	if status == nil {
		return nil, fmt.Errorf("bqservice: job has no status")
	}
	state, ok := stateMap[status.State]
	if !ok {
		return nil, fmt.Errorf("bqservice: unexpected job state: %v", status.State)
	}

	newStatus := &gbq.JobStatus{State: state}
	if err := errorFromErrorProto(status.ErrorResult); state == gbq.Done && err != nil {
		newStatus.Err = err
	}
	for _, ep := range status.Errors {
		if e := errorFromErrorProto(ep); e != nil {
			newStatus.Errors = append(newStatus.Errors, e)
		}
	}
	return newStatus, nil
}
