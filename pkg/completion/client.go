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

// Package completion sends prompts to a completion provider and keeps the
// most recent prompt/response pair so it can be saved to a transcript.
package completion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zvdy/gpt-cli/gollm"
	"github.com/zvdy/gpt-cli/pkg/journal"
	"github.com/zvdy/gpt-cli/pkg/transcript"
	"k8s.io/klog/v2"
)

// State is the single conversation slot. It only changes on a successful
// Generate (prompt and response) or Save (filename).
type State struct {
	Prompt           string
	Response         string
	LastSaveFilename string
}

// Client wraps a gollm.Client with fixed generation parameters.
// It is not safe for concurrent use.
type Client struct {
	llm    gollm.Client
	config GenerationConfig

	recorder       journal.Recorder
	requestTimeout time.Duration

	state State
}

// Option configures a Client.
type Option func(*Client)

// WithRecorder sets the trace recorder. Without it, the recorder stored in
// the request context is used.
func WithRecorder(recorder journal.Recorder) Option {
	return func(c *Client) {
		c.recorder = recorder
	}
}

// WithDefaultFilename sets the filename Save uses until another one is given.
func WithDefaultFilename(filename string) Option {
	return func(c *Client) {
		if strings.TrimSpace(filename) != "" {
			c.state.LastSaveFilename = filename
		}
	}
}

// WithRequestTimeout bounds each Generate call. Zero means no bound.
func WithRequestTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.requestTimeout = timeout
	}
}

// NewClient returns a Client with an empty state.
func NewClient(llm gollm.Client, config GenerationConfig, opts ...Option) (*Client, error) {
	if llm == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generation config: %w", err)
	}

	c := &Client{
		llm:    llm,
		config: config.clone(),
		state: State{
			LastSaveFilename: DefaultTranscriptFile,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config returns a copy of the generation parameters.
func (c *Client) Config() GenerationConfig {
	return c.config.clone()
}

// Generate sends prompt to the provider and returns the first candidate with
// surrounding whitespace removed. The prompt is passed through unchanged.
// A reply that is blank after trimming is an EmptyResponseError.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	log := klog.FromContext(ctx)

	req := &gollm.CompletionRequest{
		Model:            c.config.Model,
		Prompt:           prompt,
		MaxTokens:        c.config.MaxTokens,
		N:                1,
		Temperature:      c.config.Temperature,
		TopP:             c.config.TopP,
		FrequencyPenalty: c.config.FrequencyPenalty,
		PresencePenalty:  c.config.PresencePenalty,
		Stop:             c.config.Stop,
	}
	c.record(ctx, journal.ActionGenerateRequest, req)

	requestCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		requestCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.llm.GenerateCompletion(requestCtx, req)
	var response string
	if err == nil {
		if resp == nil || len(resp.Candidates()) == 0 {
			err = gollm.ErrEmptyResponse
		} else if response = strings.TrimSpace(resp.Candidates()[0].Text()); response == "" {
			// A blank candidate must not replace the last good pair.
			err = gollm.ErrEmptyResponse
		}
	}
	if err != nil {
		err = classify(ctx, err)
		log.V(1).Info("completion failed", "kind", Kind(err), "err", err)
		c.record(ctx, journal.ActionGenerateError, map[string]any{
			"kind":  Kind(err),
			"error": err.Error(),
		})
		return "", err
	}

	log.V(1).Info("completion received", "model", c.config.Model, "duration", time.Since(start), "usage", resp.UsageMetadata())
	log.V(2).Info("completion text", "response", response)

	c.state.Prompt = prompt
	c.state.Response = response

	c.record(ctx, journal.ActionGenerateResponse, map[string]any{
		"response": response,
		"usage":    resp.UsageMetadata(),
	})
	return response, nil
}

// Save appends the last prompt/response pair to filename, or to the last
// filename used when filename is blank. It returns the path written.
func (c *Client) Save(filename string) (string, error) {
	ctx := context.Background()
	filename = strings.TrimSpace(filename)
	if filename == "" {
		filename = c.state.LastSaveFilename
	}
	if c.state.Response == "" {
		return "", ErrNothingToSave
	}

	record := transcript.Record{
		Prompt:   c.state.Prompt,
		Response: c.state.Response,
	}
	if err := transcript.Append(filename, record); err != nil {
		klog.FromContext(ctx).Error(err, "saving transcript", "path", filename)
		return "", &IOError{Path: filename, Err: err}
	}

	c.state.LastSaveFilename = filename
	c.record(ctx, journal.ActionSave, map[string]any{
		"path":   filename,
		"prompt": record.Prompt,
	})
	return filename, nil
}

// LastSaveFilename returns the filename a blank Save would use.
func (c *Client) LastSaveFilename() string {
	return c.state.LastSaveFilename
}

// Prompt returns the prompt of the last successful Generate.
func (c *Client) Prompt() string {
	return c.state.Prompt
}

// Response returns the trimmed response of the last successful Generate.
func (c *Client) Response() string {
	return c.state.Response
}

// State returns a copy of the conversation slot.
func (c *Client) State() State {
	return c.state
}

func (c *Client) record(ctx context.Context, action string, payload any) {
	recorder := c.recorder
	if recorder == nil {
		recorder = journal.RecorderFromContext(ctx)
	}
	if err := recorder.Write(ctx, journal.NewEvent(action, payload)); err != nil {
		klog.FromContext(ctx).Error(err, "writing trace event", "action", action)
	}
}
