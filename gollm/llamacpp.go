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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"k8s.io/klog/v2"
)

func init() {
	if err := RegisterProvider("llamacpp", llamacppFactory); err != nil {
		klog.Fatalf("Failed to register llamacpp provider: %v", err)
	}
}

func llamacppFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewLlamaCppClient(ctx, opts)
}

// LlamaCppClient talks to the native /completion endpoint of a llama.cpp server.
type LlamaCppClient struct {
	baseURL    *url.URL
	httpClient *http.Client
}

var _ Client = &LlamaCppClient{}

func NewLlamaCppClient(ctx context.Context, opts ClientOptions) (*LlamaCppClient, error) {
	host := os.Getenv("LLAMACPP_HOST")
	if host == "" {
		host = "http://127.0.0.1:8080/"
	}
	if endpoint := endpointFromURL(opts.URL, "http"); endpoint != "" {
		host = endpoint
	}

	baseURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("parsing host %q: %w", host, err)
	}
	klog.Infof("using llama.cpp with base url %v", baseURL.String())

	return &LlamaCppClient{
		baseURL:    baseURL,
		httpClient: createCustomHTTPClient(opts.SkipVerifySSL),
	}, nil
}

func (c *LlamaCppClient) Close() error {
	return nil
}

// GenerateCompletion issues one /completion call per requested candidate;
// the server has no n parameter.
func (c *LlamaCppClient) GenerateCompletion(ctx context.Context, request *CompletionRequest) (CompletionResponse, error) {
	llamacppRequest := &llamacppCompletionRequest{
		Prompt:           request.Prompt,
		Temperature:      request.Temperature,
		TopP:             request.TopP,
		FrequencyPenalty: request.FrequencyPenalty,
		PresencePenalty:  request.PresencePenalty,
		Stop:             request.Stop,
	}
	if request.MaxTokens > 0 {
		llamacppRequest.NPredict = request.MaxTokens
	}

	var texts []string
	var usage *llamacppUsage
	for range request.CandidateCount() {
		resp := &llamacppCompletionResponse{}
		if err := c.doRequest(ctx, http.MethodPost, "completion", llamacppRequest, resp); err != nil {
			return nil, err
		}
		texts = append(texts, resp.Content)
		if usage == nil {
			usage = &llamacppUsage{}
		}
		usage.PromptTokens += resp.TokensEvaluated
		usage.CompletionTokens += resp.TokensPredicted
	}

	if len(texts) == 0 {
		return nil, fmt.Errorf("llamacpp: %w", ErrEmptyResponse)
	}
	return NewCompletionResponse(usage, texts...), nil
}

func (c *LlamaCppClient) doRequest(ctx context.Context, httpMethod, relativePath string, req any, response any) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("building json body: %w", err)
	}
	u := c.baseURL.JoinPath(relativePath)
	klog.V(2).Infof("sending %s request to %v: %v", httpMethod, u.String(), string(body))
	httpRequest, err := http.NewRequestWithContext(ctx, httpMethod, u.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building http request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &APIError{Message: err.Error(), Err: err}
	}
	defer httpResponse.Body.Close()

	b, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		apiErr := &APIError{
			StatusCode: httpResponse.StatusCode,
			Message:    fmt.Sprintf("unexpected http status %q", httpResponse.Status),
		}
		var errResponse llamacppErrorResponse
		if json.Unmarshal(b, &errResponse) == nil && errResponse.Error.Message != "" {
			apiErr.Message = errResponse.Error.Message
		}
		return apiErr
	}

	if err := json.Unmarshal(b, response); err != nil {
		return fmt.Errorf("unmarshalling json response: %w", err)
	}

	return nil
}

func (c *LlamaCppClient) ListModels(ctx context.Context) ([]string, error) {
	return nil, fmt.Errorf("model listing not supported by llama.cpp")
}

type llamacppCompletionRequest struct {
	Prompt           string   `json:"prompt"`
	NPredict         int      `json:"n_predict,omitempty"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"top_p"`
	FrequencyPenalty float64  `json:"frequency_penalty"`
	PresencePenalty  float64  `json:"presence_penalty"`
	Stop             []string `json:"stop,omitempty"`
}

type llamacppCompletionResponse struct {
	Content         string `json:"content"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
}

type llamacppUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
}

type llamacppErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
