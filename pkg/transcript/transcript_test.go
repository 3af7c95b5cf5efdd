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

package transcript

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestFormat(t *testing.T) {
	got := Format(Record{Prompt: "Hi", Response: "Hello!"})
	want := "PROMPT: Hi\nRESPONSE: Hello!\n\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")

	if err := Append(path, Record{Prompt: "Hi", Response: "Hello!"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := Append(path, Record{Prompt: "Bye", Response: "Line one\nLine two"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	want := "PROMPT: Hi\nRESPONSE: Hello!\n\nPROMPT: Bye\nRESPONSE: Line one\nLine two\n\n"
	if string(b) != want {
		t.Errorf("transcript = %q, want %q", string(b), want)
	}
}

func TestAppendKeepsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := os.WriteFile(path, []byte("notes\n"), 0644); err != nil {
		t.Fatalf("seeding file: %v", err)
	}

	if err := Append(path, Record{Prompt: "p", Response: "r"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading transcript: %v", err)
	}
	if string(b) != "notes\nPROMPT: p\nRESPONSE: r\n\n" {
		t.Errorf("unexpected content %q", string(b))
	}
}

func TestAppendMissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "out.txt")
	if err := Append(path, Record{Prompt: "p", Response: "r"}); err == nil {
		t.Fatalf("expected an error writing into a missing directory")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Record
		wantErr bool
	}{
		{
			name:  "empty",
			input: "",
		},
		{
			name:  "single record",
			input: "PROMPT: Hi\nRESPONSE: Hello!\n\n",
			want:  []Record{{Prompt: "Hi", Response: "Hello!"}},
		},
		{
			name:  "multi-line response",
			input: "PROMPT: list\nRESPONSE: 1. a\n\n2. b\n\nPROMPT: next\nRESPONSE: ok\n\n",
			want: []Record{
				{Prompt: "list", Response: "1. a\n\n2. b"},
				{Prompt: "next", Response: "ok"},
			},
		},
		{
			name:  "multi-line prompt",
			input: "PROMPT: line one\nline two\nRESPONSE: done\n\n",
			want:  []Record{{Prompt: "line one\nline two", Response: "done"}},
		},
		{
			name:    "garbage before first record",
			input:   "hello\nPROMPT: Hi\nRESPONSE: Hello!\n\n",
			wantErr: true,
		},
		{
			name:    "missing response",
			input:   "PROMPT: Hi\n",
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tc.input))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Parse() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestParseFileReadsAppendedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	records := []Record{
		{Prompt: "Hi", Response: "Hello!"},
		{Prompt: "Tell me a story", Response: "Once upon a time\n\nThe end."},
	}
	for _, r := range records {
		if err := Append(path, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("ParseFile() = %#v, want %#v", got, records)
	}
}
