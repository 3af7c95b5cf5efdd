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

package journal

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"sigs.k8s.io/yaml"
)

// Actions written by the completion client.
const (
	ActionGenerateRequest  = "generate-request"
	ActionGenerateResponse = "generate-response"
	ActionGenerateError    = "generate-error"
	ActionSave             = "save"
)

// Recorder is an interface for recording a structured log of the session's requests and results.
type Recorder interface {
	io.Closer

	// Write will add an event to the recorder.
	Write(ctx context.Context, event *Event) error
}

// FileRecorder appends a structured log of the session to a file.
// Events from earlier runs are kept; SessionID tells them apart.
type FileRecorder struct {
	mu        sync.Mutex
	f         *os.File
	sessionID string
}

// NewFileRecorder creates a new FileRecorder that appends to the given file.
func NewFileRecorder(path string, sessionID string) (*FileRecorder, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	return &FileRecorder{
		f:         file,
		sessionID: sessionID,
	}, nil
}

// Close closes the file.
func (r *FileRecorder) Close() error {
	return r.f.Close()
}

func (r *FileRecorder) Write(ctx context.Context, event *Event) error {
	if event.SessionID == "" {
		event.SessionID = r.sessionID
	}
	yamlBytes, err := yaml.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	var b bytes.Buffer
	b.Write(yamlBytes)
	b.Write([]byte("\n\n---\n\n"))

	r.mu.Lock()
	defer r.mu.Unlock()
	_, err = r.f.Write(b.Bytes())
	return err
}

type Event struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionID,omitempty"`
	Action    string    `json:"action"`
	Payload   any       `json:"payload,omitempty"`
}

// NewEvent returns an event with a fresh id, stamped with the current time.
func NewEvent(action string, payload any) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Action:    action,
		Payload:   payload,
	}
}
