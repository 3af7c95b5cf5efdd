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
	"strings"

	"google.golang.org/genai"
	"k8s.io/klog/v2"
)

func init() {
	if err := RegisterProvider("gemini", geminiFactory); err != nil {
		klog.Fatalf("Failed to register gemini provider: %v", err)
	}
	if err := RegisterProvider("vertexai", vertexaiFactory); err != nil {
		klog.Fatalf("Failed to register vertexai provider: %v", err)
	}
}

func geminiFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	if opts.APIKey == "" {
		return nil, errors.New("Gemini API key not found. Set via GEMINI_API_KEY env var or apiKey in the config file")
	}
	return NewGeminiClient(ctx, opts, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
}

// vertexaiFactory uses application default credentials; project and location
// come from GOOGLE_CLOUD_PROJECT and GOOGLE_CLOUD_LOCATION.
func vertexaiFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewGeminiClient(ctx, opts, &genai.ClientConfig{
		Backend: genai.BackendVertexAI,
	})
}

// GeminiClient implements the gollm.Client interface for Gemini models,
// served either by the Gemini API or by Vertex AI.
type GeminiClient struct {
	client *genai.Client
}

var _ Client = &GeminiClient{}

// NewGeminiClient builds a new GeminiClient.
func NewGeminiClient(ctx context.Context, opts ClientOptions, cc *genai.ClientConfig) (*GeminiClient, error) {
	cc.HTTPClient = createCustomHTTPClient(opts.SkipVerifySSL)
	if endpoint := endpointFromURL(opts.URL, "https"); endpoint != "" {
		cc.HTTPOptions.BaseURL = endpoint
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("building gemini client: %w", err)
	}
	return &GeminiClient{
		client: client,
	}, nil
}

// Close frees the resources used by the client.
func (c *GeminiClient) Close() error {
	return nil
}

// GenerateCompletion generates content for a single-turn prompt.
func (c *GeminiClient) GenerateCompletion(ctx context.Context, request *CompletionRequest) (CompletionResponse, error) {
	log := klog.FromContext(ctx)
	log.V(1).Info("Gemini GenerateCompletion called", "model", request.Model)

	config := &genai.GenerateContentConfig{
		CandidateCount:   int32(request.CandidateCount()),
		Temperature:      ptrTo(float32(request.Temperature)),
		TopP:             ptrTo(float32(request.TopP)),
		FrequencyPenalty: ptrTo(float32(request.FrequencyPenalty)),
		PresencePenalty:  ptrTo(float32(request.PresencePenalty)),
		StopSequences:    request.Stop,
	}
	if request.MaxTokens > 0 {
		config.MaxOutputTokens = int32(request.MaxTokens)
	}

	result, err := c.client.Models.GenerateContent(ctx, request.Model, genai.Text(request.Prompt), config)
	if err != nil {
		return nil, toGeminiAPIError(err)
	}

	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	texts := make([]string, 0, len(result.Candidates))
	for _, candidate := range result.Candidates {
		texts = append(texts, geminiCandidateText(candidate))
	}

	var usage any
	if result.UsageMetadata != nil {
		usage = result.UsageMetadata
	}
	return NewCompletionResponse(usage, texts...), nil
}

func geminiCandidateText(candidate *genai.Candidate) string {
	if candidate == nil || candidate.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		sb.WriteString(part.Text)
	}
	return sb.String()
}

// ListModels lists the models served by the backend.
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	var modelNames []string

	page, err := c.client.Models.List(ctx, nil)
	for {
		if err != nil {
			return nil, fmt.Errorf("listing models: %w", toGeminiAPIError(err))
		}
		for _, model := range page.Items {
			modelNames = append(modelNames, strings.TrimPrefix(model.Name, "models/"))
		}
		page, err = page.Next(ctx)
		if errors.Is(err, genai.ErrPageDone) {
			break
		}
	}

	return modelNames, nil
}

func toGeminiAPIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			StatusCode: apiErr.Code,
			Message:    apiErr.Message,
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Message: err.Error(), Err: err}
}
