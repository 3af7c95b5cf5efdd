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
	"os"
	"testing"

	"github.com/zvdy/gpt-cli/gollm"
)

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{err: nil, want: ""},
		{err: ErrNothingToSave, want: "nothing-to-save"},
		{err: &RemoteServiceError{Err: errors.New("boom")}, want: "remote-service"},
		{err: &EmptyResponseError{}, want: "empty-response"},
		{err: &IOError{Path: "x", Err: os.ErrPermission}, want: "io"},
		{err: &UnexpectedError{Err: errors.New("boom")}, want: "unexpected"},
		{err: fmt.Errorf("waiting: %w", context.Canceled), want: "canceled"},
		{err: errors.New("plain"), want: "unexpected"},
	}

	for _, tc := range tests {
		if got := Kind(tc.err); got != tc.want {
			t.Errorf("Kind(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestClassify(t *testing.T) {
	ctx := context.Background()

	var remote *RemoteServiceError
	err := classify(ctx, &gollm.APIError{StatusCode: 429, Message: "slow down"})
	if !errors.As(err, &remote) || remote.StatusCode != 429 {
		t.Errorf("expected a RemoteServiceError with status 429, got %#v", err)
	}

	err = classify(ctx, fmt.Errorf("dial: %w", context.DeadlineExceeded))
	if !errors.As(err, &remote) || remote.Error() != "request timed out: dial: context deadline exceeded" {
		t.Errorf("unexpected timeout error %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if err := classify(canceled, errors.New("transport closed")); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIOErrorMessage(t *testing.T) {
	_, openErr := os.Open("/does/not/exist")
	err := &IOError{Path: "/does/not/exist", Err: openErr}
	if got, want := err.Error(), "open /does/not/exist: no such file or directory"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	err = &IOError{Path: "t.txt", Err: errors.New("short write")}
	if got, want := err.Error(), "write t.txt: short write"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestNewClientRequiresLLM(t *testing.T) {
	if _, err := NewClient(nil, DefaultGenerationConfig()); err == nil {
		t.Errorf("NewClient accepted a nil llm client")
	}
}
