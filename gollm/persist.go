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
	"encoding/json"
	"fmt"
)

// We define some standard structs so that completion responses can be written
// to the trace journal regardless of which provider produced them.

type RecordCompletionResponse struct {
	Candidates []string `json:"candidates"`
	Usage      any      `json:"usage,omitempty"`
}

// textCandidate is a Candidate holding plain text.
type textCandidate string

func (c textCandidate) Text() string {
	return string(c)
}

func (c textCandidate) String() string {
	return string(c)
}

// completionResponse is the CompletionResponse shared by all providers.
type completionResponse struct {
	candidates []Candidate
	usage      any
}

var _ CompletionResponse = &completionResponse{}

// NewCompletionResponse builds a CompletionResponse from candidate texts.
func NewCompletionResponse(usage any, texts ...string) CompletionResponse {
	candidates := make([]Candidate, 0, len(texts))
	for _, text := range texts {
		candidates = append(candidates, textCandidate(text))
	}
	return &completionResponse{
		candidates: candidates,
		usage:      usage,
	}
}

func (r *completionResponse) Candidates() []Candidate {
	return r.candidates
}

func (r *completionResponse) UsageMetadata() any {
	return r.usage
}

func (r *completionResponse) MarshalJSON() ([]byte, error) {
	record := RecordCompletionResponse{
		Usage: r.usage,
	}
	for _, c := range r.candidates {
		record.Candidates = append(record.Candidates, c.Text())
	}
	return json.Marshal(&record)
}

func (r *completionResponse) String() string {
	return fmt.Sprintf("completionResponse{candidates=%d}", len(r.candidates))
}
