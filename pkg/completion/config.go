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

package completion

import (
	"errors"
	"fmt"
)

// DefaultTranscriptFile is where Save writes when no filename was ever given.
const DefaultTranscriptFile = "transcript.txt"

// maxStopSequences is the most stop sequences the completion endpoints accept.
const maxStopSequences = 4

// GenerationConfig holds the parameters sent with every completion request.
// It is built once at startup and copied into the Client.
type GenerationConfig struct {
	Model            string   `json:"model"`
	MaxTokens        int      `json:"maxTokens"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"topP"`
	FrequencyPenalty float64  `json:"frequencyPenalty"`
	PresencePenalty  float64  `json:"presencePenalty"`
	Stop             []string `json:"stop,omitempty"`
}

// DefaultGenerationConfig returns the parameters used when nothing is configured.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		Model:            "gpt-3.5-turbo-instruct",
		MaxTokens:        1024,
		Temperature:      0.5,
		TopP:             1,
		FrequencyPenalty: 0.2,
		PresencePenalty:  0.2,
		Stop:             []string{"100."},
	}
}

// Validate reports every out-of-range parameter.
func (c GenerationConfig) Validate() error {
	var errs []error
	if c.Model == "" {
		errs = append(errs, errors.New("model must be set"))
	}
	if c.MaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("max tokens must be positive, got %d", c.MaxTokens))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be between 0 and 2, got %v", c.Temperature))
	}
	if c.TopP <= 0 || c.TopP > 1 {
		errs = append(errs, fmt.Errorf("top-p must be in (0, 1], got %v", c.TopP))
	}
	if c.FrequencyPenalty < -2 || c.FrequencyPenalty > 2 {
		errs = append(errs, fmt.Errorf("frequency penalty must be between -2 and 2, got %v", c.FrequencyPenalty))
	}
	if c.PresencePenalty < -2 || c.PresencePenalty > 2 {
		errs = append(errs, fmt.Errorf("presence penalty must be between -2 and 2, got %v", c.PresencePenalty))
	}
	if len(c.Stop) > maxStopSequences {
		errs = append(errs, fmt.Errorf("at most %d stop sequences are allowed, got %d", maxStopSequences, len(c.Stop)))
	}
	return errors.Join(errs...)
}

func (c GenerationConfig) clone() GenerationConfig {
	c.Stop = append([]string(nil), c.Stop...)
	return c
}
