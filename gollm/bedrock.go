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
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"k8s.io/klog/v2"
)

func init() {
	if err := RegisterProvider("bedrock", newBedrockClientFactory); err != nil {
		klog.Fatalf("Failed to register bedrock provider: %v", err)
	}
}

// newBedrockClientFactory creates a new Bedrock client with the given options
func newBedrockClientFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewBedrockClient(ctx, opts)
}

// BedrockClient implements the gollm.Client interface for AWS Bedrock models.
// Credentials and region come from the default AWS configuration chain.
type BedrockClient struct {
	client *bedrockruntime.Client
}

// Ensure BedrockClient implements the Client interface
var _ Client = &BedrockClient{}

// NewBedrockClient creates a new client for interacting with AWS Bedrock models
func NewBedrockClient(ctx context.Context, opts ClientOptions) (*BedrockClient, error) {
	// Load AWS config with timeout protection
	configCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(configCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	// Default to us-east-1 for Bedrock if no region is set
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}

	endpoint := endpointFromURL(opts.URL, "https")
	httpClient := createCustomHTTPClient(opts.SkipVerifySSL)
	client := bedrockruntime.NewFromConfig(cfg, func(o *bedrockruntime.Options) {
		o.HTTPClient = httpClient
		// Failed requests are reported to the user as-is.
		o.RetryMaxAttempts = 1
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})

	return &BedrockClient{
		client: client,
	}, nil
}

// Close cleans up any resources used by the client
func (c *BedrockClient) Close() error {
	return nil
}

// GenerateCompletion sends the prompt as a single user turn to the Converse API.
// Converse returns one candidate and has no frequency/presence penalties.
func (c *BedrockClient) GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error) {
	inferenceConfig := &types.InferenceConfiguration{
		Temperature:   aws.Float32(float32(req.Temperature)),
		TopP:          aws.Float32(float32(req.TopP)),
		StopSequences: req.Stop,
	}
	if req.MaxTokens > 0 {
		inferenceConfig.MaxTokens = aws.Int32(int32(req.MaxTokens))
	}
	klog.V(2).InfoS("Bedrock ignores penalties", "frequencyPenalty", req.FrequencyPenalty, "presencePenalty", req.PresencePenalty)

	input := &bedrockruntime.ConverseInput{
		ModelId: aws.String(req.Model),
		Messages: []types.Message{
			{
				Role: types.ConversationRoleUser,
				Content: []types.ContentBlock{
					&types.ContentBlockMemberText{Value: req.Prompt},
				},
			},
		},
		InferenceConfig: inferenceConfig,
	}

	output, err := c.client.Converse(ctx, input)
	if err != nil {
		return nil, toBedrockAPIError(err)
	}

	msg, ok := output.Output.(*types.ConverseOutputMemberMessage)
	if !ok || len(msg.Value.Content) == 0 {
		return nil, fmt.Errorf("bedrock: %w", ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, block := range msg.Value.Content {
		if text, ok := block.(*types.ContentBlockMemberText); ok {
			sb.WriteString(text.Value)
		}
	}

	var usage any
	if output.Usage != nil {
		usage = output.Usage
	}
	return NewCompletionResponse(usage, sb.String()), nil
}

// ListModels returns the list of supported Bedrock models
func (c *BedrockClient) ListModels(ctx context.Context) ([]string, error) {
	return []string{
		"us.anthropic.claude-sonnet-4-20250514-v1:0",
		"us.anthropic.claude-3-7-sonnet-20250219-v1:0",
	}, nil
}

func toBedrockAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	apiErr := &APIError{Message: err.Error(), Err: err}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		apiErr.StatusCode = respErr.HTTPStatusCode()
	}
	var smithyErr smithy.APIError
	if errors.As(err, &smithyErr) && smithyErr.ErrorMessage() != "" {
		apiErr.Message = fmt.Sprintf("%s: %s", smithyErr.ErrorCode(), smithyErr.ErrorMessage())
	}
	return apiErr
}
