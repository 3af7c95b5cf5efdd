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

package gollm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// newTestOpenAIClient points an OpenAIClient at a local server that answers
// /v1/completions with the given handler.
func newTestOpenAIClient(t *testing.T, handler http.HandlerFunc) *OpenAIClient {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/completions", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return &OpenAIClient{
		client: newOpenAISDKClient(ClientOptions{APIKey: "test-key"}, server.URL+"/v1"),
	}
}

func TestOpenAIGenerateCompletion(t *testing.T) {
	var got map[string]any
	client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-key" {
			t.Errorf("unexpected Authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1",
			"object": "text_completion",
			"created": 1,
			"model": "gpt-3.5-turbo-instruct",
			"choices": [
				{"text": "\n\nHello there", "index": 0, "finish_reason": "stop", "logprobs": null},
				{"text": "second", "index": 1, "finish_reason": "stop", "logprobs": null}
			],
			"usage": {"prompt_tokens": 2, "completion_tokens": 3, "total_tokens": 5}
		}`))
	})

	resp, err := client.GenerateCompletion(context.Background(), &CompletionRequest{
		Model:            "gpt-3.5-turbo-instruct",
		Prompt:           "Say hello",
		MaxTokens:        1024,
		Temperature:      0.5,
		TopP:             1,
		FrequencyPenalty: 0.2,
		PresencePenalty:  0.2,
		Stop:             []string{"100."},
	})
	if err != nil {
		t.Fatalf("GenerateCompletion: %v", err)
	}

	candidates := resp.Candidates()
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].Text() != "\n\nHello there" {
		t.Errorf("unexpected first candidate %q", candidates[0].Text())
	}
	if resp.UsageMetadata() == nil {
		t.Errorf("expected usage metadata")
	}

	wantParams := map[string]any{
		"model":             "gpt-3.5-turbo-instruct",
		"prompt":            "Say hello",
		"max_tokens":        float64(1024),
		"n":                 float64(1),
		"temperature":       0.5,
		"top_p":             float64(1),
		"frequency_penalty": 0.2,
		"presence_penalty":  0.2,
	}
	for key, want := range wantParams {
		if got[key] != want {
			t.Errorf("request param %q = %v, want %v", key, got[key], want)
		}
	}
	stop, ok := got["stop"].([]any)
	if !ok || len(stop) != 1 || stop[0] != "100." {
		t.Errorf("unexpected stop param %v", got["stop"])
	}
}

func TestOpenAIGenerateCompletionErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
		wantEmpty  bool
	}{
		{
			name:       "unauthorized",
			status:     http.StatusUnauthorized,
			body:       `{"error": {"message": "Incorrect API key provided", "type": "invalid_request_error", "code": "invalid_api_key"}}`,
			wantStatus: http.StatusUnauthorized,
			wantMsg:    "Incorrect API key provided",
		},
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       `{"error": {"message": "Rate limit reached", "type": "requests", "code": "rate_limit_exceeded"}}`,
			wantStatus: http.StatusTooManyRequests,
			wantMsg:    "Rate limit reached",
		},
		{
			name:      "no choices",
			status:    http.StatusOK,
			body:      `{"id": "cmpl-2", "object": "text_completion", "created": 1, "model": "m", "choices": []}`,
			wantEmpty: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			client := newTestOpenAIClient(t, func(w http.ResponseWriter, r *http.Request) {
				calls++
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			})

			_, err := client.GenerateCompletion(context.Background(), &CompletionRequest{Model: "m", Prompt: "p"})
			if err == nil {
				t.Fatalf("expected an error")
			}
			if calls != 1 {
				t.Errorf("expected exactly one request, got %d", calls)
			}

			if tc.wantEmpty {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Errorf("expected ErrEmptyResponse, got %v", err)
				}
				return
			}

			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T: %v", err, err)
			}
			if apiErr.StatusCode != tc.wantStatus {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tc.wantStatus)
			}
			if apiErr.Error() != tc.wantMsg {
				t.Errorf("Error() = %q, want %q", apiErr.Error(), tc.wantMsg)
			}
		})
	}
}

func TestNewOpenAIClientRequiresAPIKey(t *testing.T) {
	if _, err := NewOpenAIClient(context.Background(), ClientOptions{}); err == nil {
		t.Fatalf("expected an error without an API key")
	}
}
