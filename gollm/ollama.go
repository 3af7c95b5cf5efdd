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
	"fmt"
	"net/url"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
	"k8s.io/klog/v2"
)

func init() {
	if err := RegisterProvider("ollama", ollamaFactory); err != nil {
		klog.Fatalf("Failed to register ollama provider: %v", err)
	}
}

// ollamaFactory is the provider factory function for Ollama.
// The server address comes from the provider URL ("ollama://host:port") or OLLAMA_HOST.
func ollamaFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewOllamaClient(ctx, opts)
}

type OllamaClient struct {
	client *api.Client
}

var _ Client = &OllamaClient{}

// NewOllamaClient creates a new client for Ollama.
func NewOllamaClient(ctx context.Context, opts ClientOptions) (*OllamaClient, error) {
	host := envconfig.Host()
	if endpoint := endpointFromURL(opts.URL, "http"); endpoint != "" {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, fmt.Errorf("parsing ollama endpoint %q: %w", endpoint, err)
		}
		host = u
	}

	httpClient := createCustomHTTPClient(opts.SkipVerifySSL)
	return &OllamaClient{
		client: api.NewClient(host, httpClient),
	}, nil
}

func (c *OllamaClient) Close() error {
	return nil
}

func (c *OllamaClient) GenerateCompletion(ctx context.Context, request *CompletionRequest) (CompletionResponse, error) {
	options := map[string]any{
		"temperature":       request.Temperature,
		"top_p":             request.TopP,
		"frequency_penalty": request.FrequencyPenalty,
		"presence_penalty":  request.PresencePenalty,
	}
	if request.MaxTokens > 0 {
		options["num_predict"] = request.MaxTokens
	}
	if len(request.Stop) > 0 {
		options["stop"] = request.Stop
	}

	req := &api.GenerateRequest{
		Model:   request.Model,
		Prompt:  request.Prompt,
		Stream:  ptrTo(false),
		Options: options,
	}

	// Ollama produces a single candidate per request.
	var texts []string
	var usage any
	respFunc := func(resp api.GenerateResponse) error {
		texts = append(texts, resp.Response)
		if resp.Done {
			usage = resp.Metrics
		}
		return nil
	}

	if err := c.client.Generate(ctx, req, respFunc); err != nil {
		return nil, toOllamaAPIError(err)
	}
	if len(texts) == 0 {
		return nil, fmt.Errorf("ollama: %w", ErrEmptyResponse)
	}

	return NewCompletionResponse(usage, texts...), nil
}

func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	modelResponse, err := c.client.List(ctx)
	if err != nil {
		return nil, toOllamaAPIError(err)
	}

	var models []string
	for _, model := range modelResponse.Models {
		models = append(models, model.Name)
	}

	return models, nil
}

func toOllamaAPIError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		message := statusErr.ErrorMessage
		if message == "" {
			message = statusErr.Error()
		}
		return &APIError{
			StatusCode: statusErr.StatusCode,
			Message:    message,
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Message: err.Error(), Err: err}
}
