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

// Package transcript reads and writes the append-only log of saved
// prompt/response pairs.
package transcript

import (
	"fmt"
	"io"
	"os"
	"strings"
)

const (
	promptPrefix   = "PROMPT: "
	responsePrefix = "RESPONSE: "
)

// Record is one saved prompt/response pair.
type Record struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// Format renders a record the way it is stored on disk:
//
//	PROMPT: <prompt>
//	RESPONSE: <response>
//	<blank line>
func Format(r Record) string {
	return promptPrefix + r.Prompt + "\n" + responsePrefix + r.Response + "\n\n"
}

// Append writes the record at the end of the file at path, creating it if needed.
// Existing content is never rewritten.
func Append(path string, r Record) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	if _, err := f.WriteString(Format(r)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ParseFile reads all records from the transcript at path.
func ParseFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening file %q: %w", path, err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads records in the order they were saved.
// A response line that itself starts with "PROMPT: " is read as the start of
// the next record.
func Parse(r io.Reader) ([]Record, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	text := strings.TrimSuffix(string(b), "\n")
	if text == "" {
		return nil, nil
	}

	var records []Record
	var current *Record
	var inResponse bool
	var prompt, response []string

	flush := func() {
		if current == nil {
			return
		}
		current.Prompt = strings.Join(prompt, "\n")
		current.Response = strings.TrimSuffix(strings.Join(response, "\n"), "\n")
		records = append(records, *current)
	}

	for i, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, promptPrefix):
			flush()
			current = &Record{}
			inResponse = false
			prompt = []string{strings.TrimPrefix(line, promptPrefix)}
			response = nil
		case current == nil:
			return nil, fmt.Errorf("line %d: expected %q, got %q", i+1, strings.TrimSpace(promptPrefix), line)
		case !inResponse && strings.HasPrefix(line, responsePrefix):
			inResponse = true
			response = []string{strings.TrimPrefix(line, responsePrefix)}
		case inResponse:
			response = append(response, line)
		default:
			prompt = append(prompt, line)
		}
	}
	if current != nil && !inResponse {
		return nil, fmt.Errorf("record %d: missing %q line", len(records)+1, strings.TrimSpace(responsePrefix))
	}
	flush()

	return records, nil
}
