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
	"k8s.io/klog/v2"
)

const defaultGrokEndpoint = "https://api.x.ai/v1"

// Register the Grok provider factory on package initialization.
func init() {
	if err := RegisterProvider("grok", newGrokClientFactory); err != nil {
		klog.Fatalf("Failed to register Grok provider: %v", err)
	}
}

func newGrokClientFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewGrokClient(ctx, opts)
}

// GrokClient implements the gollm.Client interface for X.AI's Grok model.
// X.AI only serves chat completions, so each prompt is sent as a single user message.
type GrokClient struct {
	client openai.Client
}

// Ensure GrokClient implements the Client interface.
var _ Client = &GrokClient{}

// NewGrokClient creates a new client for interacting with X.AI's Grok model.
// The endpoint defaults to https://api.x.ai/v1 and can be overridden with GROK_ENDPOINT.
func NewGrokClient(ctx context.Context, opts ClientOptions) (*GrokClient, error) {
	if opts.APIKey == "" {
		return nil, errors.New("Grok API key not found. Set via GROK_API_KEY env var or apiKey in the config file")
	}

	endpoint := endpointFromURL(opts.URL, "https")
	if endpoint == "" {
		endpoint = os.Getenv("GROK_ENDPOINT")
	}
	if endpoint == "" {
		endpoint = defaultGrokEndpoint
	}

	return &GrokClient{
		client: newOpenAISDKClient(opts, endpoint),
	}, nil
}

// Close cleans up any resources used by the client.
func (c *GrokClient) Close() error {
	return nil
}

// GenerateCompletion sends the prompt to the Grok chat completions API.
func (c *GrokClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	klog.V(1).InfoS("Grok GenerateCompletion called", "model", req.Model)

	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(req.Model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
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
		params.Stop = openai.ChatCompletionNewParamsStopUnion{OfStringArray: req.Stop}
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, toOpenAIAPIError(err)
	}

	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("grok: %w", ErrEmptyResponse)
	}

	texts := make([]string, 0, len(completion.Choices))
	for _, choice := range completion.Choices {
		texts = append(texts, choice.Message.Content)
	}

	var usage any
	if completion.Usage.TotalTokens > 0 {
		usage = completion.Usage
	}
	return NewCompletionResponse(usage, texts...), nil
}

// ListModels returns the models served by the X.AI endpoint.
func (c *GrokClient) ListModels(ctx context.Context) ([]string, error) {
	return listOpenAIModels(ctx, c.client)
}
