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
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"
	"sync"

	"k8s.io/klog/v2"
)

var globalRegistry registry

type registry struct {
	mutex     sync.Mutex
	providers map[string]FactoryFunc
}

// FactoryFunc builds a Client for a provider.
type FactoryFunc func(ctx context.Context, opts ClientOptions) (Client, error)

// ClientOptions holds the settings a provider factory receives.
type ClientOptions struct {
	// URL is the parsed provider id, e.g. "ollama://localhost:11434".
	// Providers may use the host/path to override their default endpoint.
	URL *url.URL
	// APIKey is the credential for providers that authenticate with a key.
	APIKey string
	// SkipVerifySSL disables TLS certificate verification.
	SkipVerifySSL bool
}

// Option configures ClientOptions.
type Option func(*ClientOptions)

// WithAPIKey sets the API key passed to the provider.
func WithAPIKey(apiKey string) Option {
	return func(o *ClientOptions) {
		o.APIKey = apiKey
	}
}

// WithSkipVerifySSL disables TLS certificate verification for the provider.
func WithSkipVerifySSL() Option {
	return func(o *ClientOptions) {
		o.SkipVerifySSL = true
	}
}

func RegisterProvider(id string, factoryFunc FactoryFunc) error {
	return globalRegistry.RegisterProvider(id, factoryFunc)
}

func (r *registry) RegisterProvider(id string, factoryFunc FactoryFunc) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.providers == nil {
		r.providers = make(map[string]FactoryFunc)
	}
	_, exists := r.providers[id]
	if exists {
		return fmt.Errorf("provider %q is already registered", id)
	}
	r.providers[id] = factoryFunc
	return nil
}

// Providers returns the registered provider ids, sorted.
func Providers() []string {
	return globalRegistry.Providers()
}

func (r *registry) Providers() []string {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (r *registry) NewClient(ctx context.Context, providerID string, opts ...Option) (Client, error) {
	// providerID can be just an ID, for example "openai" instead of "openai://"
	if !strings.Contains(providerID, "/") && !strings.Contains(providerID, ":") {
		providerID = providerID + "://"
	}

	u, err := url.Parse(providerID)
	if err != nil {
		return nil, fmt.Errorf("parsing provider id %q: %w", providerID, err)
	}

	r.mutex.Lock()
	factoryFunc := r.providers[u.Scheme]
	r.mutex.Unlock()
	if factoryFunc == nil {
		return nil, fmt.Errorf("provider %q not registered", u.Scheme)
	}

	clientOptions := ClientOptions{URL: u}
	for _, opt := range opts {
		opt(&clientOptions)
	}

	return factoryFunc(ctx, clientOptions)
}

// NewClient builds a Client based on the LLM_CLIENT env var or the provided providerID.
// ProviderID (if not empty) overrides the provider from the LLM_CLIENT env var.
func NewClient(ctx context.Context, providerID string, opts ...Option) (Client, error) {
	if providerID == "" {
		s := os.Getenv("LLM_CLIENT")
		if s == "" {
			return nil, fmt.Errorf("LLM_CLIENT is not set")
		}
		providerID = s
	}

	return globalRegistry.NewClient(ctx, providerID, opts...)
}

// ErrEmptyResponse is returned when the remote call succeeded but produced no candidates.
var ErrEmptyResponse = errors.New("no candidates in response")

// APIError represents a failed call to the LLM provider.
// StatusCode is zero when the request never got an HTTP response.
type APIError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("API error: status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// createCustomHTTPClient returns the HTTP client used by all providers.
func createCustomHTTPClient(skipVerify bool) *http.Client {
	if !skipVerify {
		return http.DefaultClient
	}

	klog.Warning("TLS certificate verification is disabled for the LLM provider")
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	return &http.Client{Transport: transport}
}

// endpointFromURL returns the endpoint encoded in a provider id such as
// "openai://api.example.com/v1", or "" when the id carries no host.
func endpointFromURL(u *url.URL, scheme string) string {
	if u == nil || u.Host == "" {
		return ""
	}
	endpoint := *u
	endpoint.Scheme = scheme
	return endpoint.String()
}

func ptrTo[T any](t T) *T {
	return &t
}
