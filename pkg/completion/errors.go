// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package completion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/zvdy/gpt-cli/gollm"
)

// ErrNothingToSave is returned by Save before any Generate has succeeded.
var ErrNothingToSave = errors.New("no previous response to save")

// RemoteServiceError reports a failed call to the completion service.
// The provider's message is kept verbatim.
type RemoteServiceError struct {
	StatusCode int
	Err        error
}

func (e *RemoteServiceError) Error() string {
	return e.Err.Error()
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}

// EmptyResponseError reports a successful call that returned no candidates.
type EmptyResponseError struct {
	Err error
}

func (e *EmptyResponseError) Error() string {
	return "No response generated"
}

func (e *EmptyResponseError) Unwrap() error {
	return e.Err
}

// IOError reports a transcript write that failed.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	var pathErr *fs.PathError
	if errors.As(e.Err, &pathErr) {
		return pathErr.Error()
	}
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnexpectedError is any other failure while generating.
type UnexpectedError struct {
	Err error
}

func (e *UnexpectedError) Error() string {
	return e.Err.Error()
}

func (e *UnexpectedError) Unwrap() error {
	return e.Err
}

// classify maps a provider error onto one of the error kinds above.
// Cancellation of ctx is returned unchanged so callers can stop.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, gollm.ErrEmptyResponse) {
		return &EmptyResponseError{Err: err}
	}
	var apiErr *gollm.APIError
	if errors.As(err, &apiErr) {
		return &RemoteServiceError{StatusCode: apiErr.StatusCode, Err: apiErr}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &RemoteServiceError{Err: fmt.Errorf("request timed out: %w", err)}
	}
	return &UnexpectedError{Err: err}
}

// Kind names the error kind for logs and trace events.
func Kind(err error) string {
	var (
		remoteErr     *RemoteServiceError
		emptyErr      *EmptyResponseError
		ioErr         *IOError
		unexpectedErr *UnexpectedError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNothingToSave):
		return "nothing-to-save"
	case errors.As(err, &remoteErr):
		return "remote-service"
	case errors.As(err, &emptyErr):
		return "empty-response"
	case errors.As(err, &ioErr):
		return "io"
	case errors.As(err, &unexpectedErr):
		return "unexpected"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "unexpected"
	}
}
