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
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	gax "github.com/googleapis/gax-go/v2"
	"github.com/softlynx/gbq/internal"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	defaultRetryReasons = []string{"backendError", "rateLimitExceeded"}
	jobRetryReasons     = []string{"backendError", "rateLimitExceeded", "internalError"}
	retry5xxCodes       = []int{
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
	}
)

func defaultRetryBackoff() gax.Backoff {
	return gax.Backoff{
		Initial:    1 * time.Second,
		Max:        32 * time.Second,
		Multiplier: 2,
	}
}

func defaultPollBackoff() gax.Backoff {
	return gax.Backoff{
		Initial:    1 * time.Second,
		Max:        60 * time.Second,
		Multiplier: 2,
	}
}

// runWithRetry calls the function until it returns nil or a non-retryable
// error, the context is done, or the service's retry limit is reached.
func (s *Service) runWithRetry(ctx context.Context, allowedReasons []string, call func() error) error {
	return internal.RetryN(ctx, s.retry, s.maxRetries, func() (stop bool, err error) {
		err = call()
		if err == nil {
			return true, nil
		}
		return !retryableError(err, allowedReasons), err
	})
}

// retryableError reports whether err is worth another attempt. In addition
// to the structured error reasons in allowedReasons, it accepts 5xx
// responses, unavailable gRPC statuses and some network failures.
func retryableError(err error, allowedReasons []string) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	// Streams may be refused on a new HTTP/2 connection before the server's
	// SETTINGS frame arrives.
	if err.Error() == "http2: stream closed" {
		return true
	}

	var ge *googleapi.Error
	if errors.As(err, &ge) {
		if len(ge.Errors) > 0 && slices.Contains(allowedReasons, ge.Errors[0].Reason) {
			return true
		}
		return slices.Contains(retry5xxCodes, ge.Code)
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		msg := ue.Error()
		return strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset")
	}
	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Unavailable, codes.ResourceExhausted:
			return true
		}
	}
	return false
}

// alreadyExists reports whether err is the conflict returned when inserting
// a job whose ID is taken.
func alreadyExists(err error) bool {
	var ge *googleapi.Error
	return errors.As(err, &ge) && ge.Code == http.StatusConflict
}
