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
	"errors"
	"net/url"
	"slices"
	"testing"
)

type fakeClient struct {
	opts ClientOptions
}

func (c *fakeClient) Close() error { return nil }

func (c *fakeClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	return NewCompletionResponse(nil, req.Prompt), nil
}

func (c *fakeClient) ListModels(ctx context.Context) ([]string, error) {
	return []string{"fake-model"}, nil
}

func TestRegistryNewClient(t *testing.T) {
	var r registry
	if err := r.RegisterProvider("fake", func(ctx context.Context, opts ClientOptions) (Client, error) {
		return &fakeClient{opts: opts}, nil
	}); err != nil {
		t.Fatalf("RegisterProvider: %v", err)
	}
	if err := r.RegisterProvider("fake", nil); err == nil {
		t.Errorf("expected duplicate registration to fail")
	}

	tests := []struct {
		providerID string
		wantHost   string
		wantErr    bool
	}{
		{providerID: "fake"},
		{providerID: "fake://"},
		{providerID: "fake://localhost:8080/v1", wantHost: "localhost:8080"},
		{providerID: "unknown", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.providerID, func(t *testing.T) {
			client, err := r.NewClient(context.Background(), tc.providerID, WithAPIKey("k"), WithSkipVerifySSL())
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			fake := client.(*fakeClient)
			if fake.opts.APIKey != "k" || !fake.opts.SkipVerifySSL {
				t.Errorf("options not applied: %+v", fake.opts)
			}
			if fake.opts.URL.Host != tc.wantHost {
				t.Errorf("URL host = %q, want %q", fake.opts.URL.Host, tc.wantHost)
			}
		})
	}
}

func TestProvidersRegistered(t *testing.T) {
	providers := Providers()
	for _, id := range []string{"azopenai", "bedrock", "gemini", "grok", "llamacpp", "ollama", "openai", "openai-compatible", "vertexai"} {
		if !slices.Contains(providers, id) {
			t.Errorf("provider %q not registered, have %v", id, providers)
		}
	}
	if !slices.IsSorted(providers) {
		t.Errorf("providers not sorted: %v", providers)
	}
}

func TestNewClientUsesEnv(t *testing.T) {
	t.Setenv("LLM_CLIENT", "")
	if _, err := NewClient(context.Background(), ""); err == nil {
		t.Errorf("expected an error when LLM_CLIENT is unset")
	}
}

func TestEndpointFromURL(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "openai://", want: ""},
		{raw: "openai://api.example.com/v1", want: "https://api.example.com/v1"},
		{raw: "ollama://localhost:11434", want: "https://localhost:11434"},
	}
	for _, tc := range tests {
		u, err := url.Parse(tc.raw)
		if err != nil {
			t.Fatalf("parsing %q: %v", tc.raw, err)
		}
		if got := endpointFromURL(u, "https"); got != tc.want {
			t.Errorf("endpointFromURL(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
	if got := endpointFromURL(nil, "https"); got != "" {
		t.Errorf("endpointFromURL(nil) = %q", got)
	}
}

func TestAPIError(t *testing.T) {
	cause := errors.New("connection refused")
	tests := []struct {
		err  *APIError
		want string
	}{
		{err: &APIError{StatusCode: 401, Message: "bad key"}, want: "bad key"},
		{err: &APIError{Err: cause}, want: "connection refused"},
		{err: &APIError{StatusCode: 503}, want: "API error: status 503"},
	}
	for _, tc := range tests {
		if got := tc.err.Error(); got != tc.want {
			t.Errorf("Error() = %q, want %q", got, tc.want)
		}
	}
	if !errors.Is(&APIError{Err: cause}, cause) {
		t.Errorf("APIError should unwrap to its cause")
	}
}
