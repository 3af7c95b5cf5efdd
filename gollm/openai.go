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
	"os"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"k8s.io/klog/v2"
)

// init registers the OpenAI provider factory.
// The legacy completions endpoint is what this client speaks, so any
// OpenAI-compatible server exposing /completions works as well.
func init() {
	if err := RegisterProvider("openai", newOpenAIClientFactory); err != nil {
		klog.Fatalf("Failed to register openai provider: %v", err)
	}

	aliases := []string{"openai-compatible"}
	for _, alias := range aliases {
		if err := RegisterProvider(alias, newOpenAIClientFactory); err != nil {
			klog.Warningf("Failed to register openai provider alias %q: %v", alias, err)
		}
	}
}

func newOpenAIClientFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewOpenAIClient(ctx, opts)
}

// OpenAIClient implements the gollm.Client interface for OpenAI models.
type OpenAIClient struct {
	client openai.Client
}

// Ensure OpenAIClient implements the Client interface.
var _ Client = &OpenAIClient{}

// NewOpenAIClient creates a new client for interacting with OpenAI.
// The endpoint can be overridden with the provider URL
// ("openai://host/v1"), OPENAI_ENDPOINT or OPENAI_API_BASE.
func NewOpenAIClient(ctx context.Context, opts ClientOptions) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("OpenAI API key not found. Set via OPENAI_API_KEY env var or apiKey in the config file")
	}

	baseURL := endpointFromURL(opts.URL, "https")
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_ENDPOINT")
	}
	if baseURL == "" {
		baseURL = os.Getenv("OPENAI_API_BASE")
	}

	return &OpenAIClient{
		client: newOpenAISDKClient(opts, baseURL),
	}, nil
}

// newOpenAISDKClient builds the SDK client shared by the openai and grok providers.
func newOpenAISDKClient(opts ClientOptions, baseURL string) openai.Client {
	options := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithHTTPClient(createCustomHTTPClient(opts.SkipVerifySSL)),
		// Failed requests are reported to the user as-is.
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		klog.Infof("Using custom OpenAI base URL: %s", baseURL)
		options = append(options, option.WithBaseURL(baseURL))
	}
	return openai.NewClient(options...)
}

// Close cleans up any resources used by the client.
func (c *OpenAIClient) Close() error {
	return nil
}

// GenerateCompletion sends a request to the legacy completions endpoint.
func (c *OpenAIClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	klog.V(1).InfoS("OpenAI GenerateCompletion called", "model", req.Model, "maxTokens", req.MaxTokens)
	klog.V(2).Infof("Prompt:\n%s", req.Prompt)

	params := openai.CompletionNewParams{
		Model: openai.CompletionNewParamsModel(req.Model),
		Prompt: openai.CompletionNewParamsPromptUnion{
			OfString: openai.String(req.Prompt),
		},
		N:                openai.Int(int64(req.CandidateCount())),
		Temperature:      openai.Float(req.Temperature),
		TopP:             openai.Float(req.TopP),
		FrequencyPenalty: openai.Float(req.FrequencyPenalty),
		PresencePenalty:  openai.Float(req.PresencePenalty),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if len(req.Stop) > 0 {
		params.Stop = openai.CompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	completion, err := c.client.Completions.New(ctx, params)
	if err != nil {
		klog.Errorf("OpenAI completion API error: %v", err)
		return nil, toOpenAIAPIError(err)
	}
	klog.V(1).InfoS("Received response from OpenAI completions API", "id", completion.ID, "choices", len(completion.Choices))

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	texts := make([]string, 0, len(completion.Choices))
	for _, choice := range completion.Choices {
		texts = append(texts, choice.Text)
	}

	var usage any
	if completion.Usage.TotalTokens > 0 {
		usage = completion.Usage
	}
	return NewCompletionResponse(usage, texts...), nil
}

// ListModels returns a slice of strings with model IDs.
// Note: This may not work with all OpenAI-compatible providers if they don't fully implement
// the Models.List endpoint or return data in a different format.
func (c *OpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	return listOpenAIModels(ctx, c.client)
}

func listOpenAIModels(ctx context.Context, client openai.Client) ([]string, error) {
	res, err := client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("error listing models: %w", toOpenAIAPIError(err))
	}

	modelIDs := make([]string, 0, len(res.Data))
	for _, model := range res.Data {
		modelIDs = append(modelIDs, model.ID)
	}

	return modelIDs, nil
}

// toOpenAIAPIError converts an openai-go error into an *APIError, keeping the
// server's message when the SDK decoded one.
func toOpenAIAPIError(err error) error {
	var openaiErr *openai.Error
	if errors.As(err, &openaiErr) {
		message := openaiErr.Message
		if message == "" {
			message = err.Error()
		}
		return &APIError{
			StatusCode: openaiErr.StatusCode,
			Message:    message,
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Message: err.Error(), Err: err}
}
