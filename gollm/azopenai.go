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
	"slices"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/ai/azopenai"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/arm"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/cognitiveservices/armcognitiveservices"
	"github.com/Azure/azure-sdk-for-go/sdk/resourcemanager/subscription/armsubscription"
	"k8s.io/klog/v2"
)

func init() {
	if err := RegisterProvider("azopenai", azureOpenAIFactory); err != nil {
		klog.Fatalf("Failed to register azopenai provider: %v", err)
	}
}

/*
azureOpenAIFactory is the provider factory function for Azure OpenAI.
The model name of a request is used as the deployment name.
*/
func azureOpenAIFactory(ctx context.Context, opts ClientOptions) (Client, error) {
	return NewAzureOpenAIClient(ctx, opts)
}

type AzureOpenAIClient struct {
	client   *azopenai.Client
	endpoint string
}

var _ Client = &AzureOpenAIClient{}

// NewAzureOpenAIClient creates a new Azure OpenAI client.
// It authenticates with the API key when one is configured and falls back to
// the default Azure credential chain otherwise.
func NewAzureOpenAIClient(ctx context.Context, opts ClientOptions) (*AzureOpenAIClient, error) {
	azureOpenAIEndpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	if endpoint := endpointFromURL(opts.URL, "https"); endpoint != "" {
		azureOpenAIEndpoint = endpoint
	}
	if azureOpenAIEndpoint == "" {
		return nil, fmt.Errorf("AZURE_OPENAI_ENDPOINT environment variable not set")
	}
	azureOpenAIClient := AzureOpenAIClient{
		endpoint: strings.TrimSuffix(azureOpenAIEndpoint, "/"),
	}

	httpClient := createCustomHTTPClient(opts.SkipVerifySSL)
	clientOpts := &azopenai.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Transport: httpClient,
			// Failed requests are reported to the user as-is.
			Retry: policy.RetryOptions{MaxRetries: -1},
		},
	}

	if opts.APIKey != "" {
		keyCredential := azcore.NewKeyCredential(opts.APIKey)
		client, err := azopenai.NewClientWithKeyCredential(azureOpenAIEndpoint, keyCredential, clientOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure openai client: %w", err)
		}
		azureOpenAIClient.client = client
	} else {
		credential, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to get credential: %w", err)
		}
		client, err := azopenai.NewClient(azureOpenAIEndpoint, credential, clientOpts)
		if err != nil {
			return nil, fmt.Errorf("failed to create azure openai client: %w", err)
		}
		azureOpenAIClient.client = client
	}

	return &azureOpenAIClient, nil
}

func (c *AzureOpenAIClient) Close() error {
	return nil
}

// GenerateCompletion calls the completions API of the deployment named by request.Model.
func (c *AzureOpenAIClient) GenerateCompletion(ctx context.Context, request *CompletionRequest) (CompletionResponse, error) {
	body := azopenai.CompletionsOptions{
		DeploymentName:   &request.Model,
		Prompt:           []string{request.Prompt},
		N:                ptrTo(int32(request.CandidateCount())),
		Temperature:      ptrTo(float32(request.Temperature)),
		TopP:             ptrTo(float32(request.TopP)),
		FrequencyPenalty: ptrTo(float32(request.FrequencyPenalty)),
		PresencePenalty:  ptrTo(float32(request.PresencePenalty)),
		Stop:             request.Stop,
	}
	if request.MaxTokens > 0 {
		body.MaxTokens = ptrTo(int32(request.MaxTokens))
	}

	resp, err := c.client.GetCompletions(ctx, body, nil)
	if err != nil {
		return nil, toAzureAPIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("azopenai: %w", ErrEmptyResponse)
	}

	texts := make([]string, 0, len(resp.Choices))
	for _, choice := range resp.Choices {
		text := ""
		if choice.Text != nil {
			text = *choice.Text
		}
		texts = append(texts, text)
	}

	var usage any
	if resp.Usage != nil {
		usage = resp.Usage
	}
	return NewCompletionResponse(usage, texts...), nil
}

// ListModels lists the deployment names of the Azure OpenAI account that serves c.endpoint.
func (c *AzureOpenAIClient) ListModels(ctx context.Context) ([]string, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get credential: %w", err)
	}

	subClient, err := armsubscription.NewSubscriptionsClient(cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriptions client: %w", err)
	}

	subPager := subClient.NewListPager(nil)
	for subPager.More() {
		subResp, err := subPager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get subscriptions page: %w", err)
		}

		for _, sub := range subResp.Value {
			modelNames, found, err := c.listDeployments(ctx, *sub.SubscriptionID, cred)
			if err != nil {
				return nil, err
			}
			if found {
				return modelNames, nil
			}
		}
	}

	return nil, fmt.Errorf("no Azure OpenAI account found for endpoint %q", c.endpoint)
}

// listDeployments looks for the account serving c.endpoint in one subscription.
func (c *AzureOpenAIClient) listDeployments(ctx context.Context, subscriptionID string, cred *azidentity.DefaultAzureCredential) ([]string, bool, error) {
	accountClient, err := armcognitiveservices.NewAccountsClient(subscriptionID, cred, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create accounts client: %w", err)
	}

	accountPager := accountClient.NewListPager(nil)
	for accountPager.More() {
		accountResp, err := accountPager.NextPage(ctx)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get accounts page: %w", err)
		}

		for _, account := range accountResp.Value {
			if account.Kind == nil || !slices.Contains([]string{"OpenAI", "CognitiveServices", "AIServices"}, *account.Kind) {
				continue
			}
			if account.Properties == nil || account.Properties.Endpoint == nil || strings.TrimSuffix(*account.Properties.Endpoint, "/") != c.endpoint {
				continue
			}

			resourceID, err := arm.ParseResourceID(*account.ID)
			if err != nil {
				return nil, false, fmt.Errorf("failed to parse resource ID %q: %w", *account.Name, err)
			}

			deploymentClient, err := armcognitiveservices.NewDeploymentsClient(subscriptionID, cred, nil)
			if err != nil {
				return nil, false, fmt.Errorf("failed to create deployments client: %w", err)
			}

			var modelNames []string
			deploymentPager := deploymentClient.NewListPager(resourceID.ResourceGroupName, *account.Name, nil)
			for deploymentPager.More() {
				deploymentResp, err := deploymentPager.NextPage(ctx)
				if err != nil {
					return nil, false, fmt.Errorf("failed to get deployments page: %w", err)
				}
				for _, deployment := range deploymentResp.Value {
					modelNames = append(modelNames, *deployment.Name)
				}
			}
			slices.Sort(modelNames)
			return modelNames, true, nil
		}
	}
	return nil, false, nil
}

func toAzureAPIError(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return &APIError{
			StatusCode: respErr.StatusCode,
			Message:    err.Error(),
			Err:        err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &APIError{Message: err.Error(), Err: err}
}
