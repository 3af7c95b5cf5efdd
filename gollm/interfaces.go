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
	"io"
)

// Client is a client for a text-completion language model.
type Client interface {
	io.Closer

	// GenerateCompletion generates a completion for a given prompt.
	// Failures of the remote call are reported as *APIError; a successful call
	// that yields no candidates is reported as ErrEmptyResponse.
	GenerateCompletion(ctx context.Context, req *CompletionRequest) (CompletionResponse, error)

	// ListModels lists the models available in the LLM.
	ListModels(ctx context.Context) ([]string, error)
}

// CompletionRequest is a request to generate a completion for a given prompt.
type CompletionRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt,omitempty"`

	// MaxTokens caps the length of the generated text.
	MaxTokens int `json:"maxTokens,omitempty"`
	// N is the number of candidates requested.
	N int `json:"n,omitempty"`

	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"topP"`
	FrequencyPenalty float64  `json:"frequencyPenalty"`
	PresencePenalty  float64  `json:"presencePenalty"`
	Stop             []string `json:"stop,omitempty"`
}

// CandidateCount returns the number of candidates to request, at least one.
func (r *CompletionRequest) CandidateCount() int {
	if r.N < 1 {
		return 1
	}
	return r.N
}

// CompletionResponse is a response from the GenerateCompletion method.
type CompletionResponse interface {
	// Candidates are the alternative completions returned by the LLM, in order.
	Candidates() []Candidate

	UsageMetadata() any
}

// Candidate is one of a set of candidate completions from the LLM.
type Candidate interface {
	// Text returns the generated text, untrimmed.
	Text() string
}
