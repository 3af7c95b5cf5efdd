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

// Package repl runs the interactive prompt loop.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zvdy/gpt-cli/pkg/completion"
	"github.com/zvdy/gpt-cli/pkg/ui"
	"k8s.io/klog/v2"
)

const (
	// Prompt is shown before every line of input.
	Prompt = "[PROMPT]: "
	// FilenamePrompt is shown by /save.
	FilenamePrompt = "Enter a file name: "

	exitCommand = "/exit"
	saveCommand = "/save"
)

// State is the state of a Session.
type State int

const (
	AwaitingInput State = iota
	Dispatching
	Exited
)

func (s State) String() string {
	switch s {
	case AwaitingInput:
		return "AwaitingInput"
	case Dispatching:
		return "Dispatching"
	case Exited:
		return "Exited"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Completer is the part of completion.Client the session drives.
type Completer interface {
	Generate(ctx context.Context, prompt string) (string, error)
	Save(filename string) (string, error)
}

var _ Completer = &completion.Client{}

// Session reads input lines and dispatches them until /exit or end of input.
type Session struct {
	client   Completer
	reader   ui.LineReader
	renderer *ui.Renderer

	state State
}

func NewSession(client Completer, reader ui.LineReader, renderer *ui.Renderer) *Session {
	return &Session{
		client:   client,
		reader:   reader,
		renderer: renderer,
		state:    AwaitingInput,
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Run loops until /exit or end of input, which return nil. Errors from
// individual requests are printed and the loop continues; only a cancelled
// ctx or a broken input stream ends it with an error.
func (s *Session) Run(ctx context.Context) error {
	for s.state != Exited {
		if err := ctx.Err(); err != nil {
			s.state = Exited
			return err
		}

		line, err := s.reader.ReadLine(Prompt)
		if err != nil {
			s.state = Exited
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("reading input: %w", err)
		}

		if err := s.Handle(ctx, line); err != nil {
			return err
		}
	}
	return nil
}

// Handle dispatches a single line of input. It returns an error only when
// ctx was cancelled while the line was being handled.
func (s *Session) Handle(ctx context.Context, line string) error {
	if s.state == Exited {
		return nil
	}
	log := klog.FromContext(ctx)

	switch strings.ToLower(strings.TrimSpace(line)) {
	case exitCommand:
		log.V(1).Info("exit requested")
		s.state = Exited
		return nil
	case saveCommand:
		s.state = Dispatching
		s.save(ctx)
	default:
		s.state = Dispatching
		response, err := s.client.Generate(ctx, line)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				s.state = Exited
				return ctxErr
			}
			log.V(1).Info("generate failed", "kind", completion.Kind(err))
			s.renderer.Error(err.Error())
		} else {
			s.renderer.Response(response)
		}
	}

	if s.state == Dispatching {
		s.state = AwaitingInput
	}
	return nil
}

func (s *Session) save(ctx context.Context) {
	filename, err := s.reader.ReadLine(FilenamePrompt)
	if err != nil {
		if errors.Is(err, io.EOF) {
			s.state = Exited
			return
		}
		s.renderer.Error(err.Error())
		return
	}

	path, err := s.client.Save(filename)
	switch {
	case errors.Is(err, completion.ErrNothingToSave):
		s.renderer.Notice("No previous response to save.")
	case err != nil:
		klog.FromContext(ctx).V(1).Info("save failed", "kind", completion.Kind(err))
		s.renderer.Error(err.Error())
	default:
		s.renderer.Notice(fmt.Sprintf("Response saved to %s", path))
	}
}
