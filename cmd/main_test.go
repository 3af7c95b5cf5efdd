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

package main

import (
	"bytes"
	"context"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/zvdy/gpt-cli/gollm"
	"github.com/zvdy/gpt-cli/internal/mocks"
	"github.com/zvdy/gpt-cli/pkg/completion"
	"github.com/zvdy/gpt-cli/pkg/journal"
	"github.com/zvdy/gpt-cli/pkg/transcript"
	"go.uber.org/mock/gomock"
)

func TestResolveQueryInput(t *testing.T) {
	tests := []struct {
		name     string
		hasStdIn bool
		args     []string
		stdin    string
		want     string
		wantErr  bool
	}{
		{name: "no input"},
		{name: "argument only", args: []string{"write a haiku"}, want: "write a haiku"},
		{name: "stdin only", hasStdIn: true, stdin: "  write a haiku\n", want: "write a haiku"},
		{name: "argument and stdin", hasStdIn: true, args: []string{"summarize:"}, stdin: "line one\nline two\n", want: "summarize:\nline one\nline two"},
		{name: "empty stdin", hasStdIn: true, stdin: "\n", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolveQueryInput(tc.hasStdIn, tc.args, strings.NewReader(tc.stdin))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveQueryInput: %v", err)
			}
			if got != tc.want {
				t.Errorf("resolveQueryInput() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestConfigurationPrecedence(t *testing.T) {
	var opt Options
	opt.InitDefaults()

	if got, want := opt.GenerationConfig(), completion.DefaultGenerationConfig(); !reflect.DeepEqual(got, want) {
		t.Errorf("default generation config = %+v, want %+v", got, want)
	}

	config := []byte(`
llmProvider: grok
apiKey: from-config
model: config-model
maxTokens: 256
temperature: 0.9
stop: []
transcriptFile: notes.txt
`)
	if err := opt.LoadConfiguration(config); err != nil {
		t.Fatalf("LoadConfiguration: %v", err)
	}

	env := map[string]string{
		"OPENAI_MODEL":       "env-model",
		"OPENAI_TEMPERATURE": "0.1",
	}
	if err := opt.LoadEnvironment(func(k string) string { return env[k] }); err != nil {
		t.Fatalf("LoadEnvironment: %v", err)
	}

	rootCmd, err := BuildRootCommand(&opt)
	if err != nil {
		t.Fatalf("BuildRootCommand: %v", err)
	}
	if err := rootCmd.PersistentFlags().Parse([]string{"--model", "flag-model"}); err != nil {
		t.Fatalf("parsing flags: %v", err)
	}

	if opt.ProviderID != "grok" {
		t.Errorf("ProviderID = %q, want grok from the config file", opt.ProviderID)
	}
	if opt.ModelID != "flag-model" {
		t.Errorf("ModelID = %q, want the flag value", opt.ModelID)
	}
	if opt.Temperature != 0.1 {
		t.Errorf("Temperature = %v, want the environment value", opt.Temperature)
	}
	if opt.MaxTokens != 256 {
		t.Errorf("MaxTokens = %d, want the config file value", opt.MaxTokens)
	}
	if opt.TopP != 1 {
		t.Errorf("TopP = %v, want the default", opt.TopP)
	}
	if len(opt.GenerationConfig().Stop) != 0 {
		t.Errorf("Stop = %v, want none", opt.GenerationConfig().Stop)
	}
	if opt.TranscriptFile != "notes.txt" {
		t.Errorf("TranscriptFile = %q", opt.TranscriptFile)
	}
}

func TestLoadEnvironmentRejectsBadNumbers(t *testing.T) {
	var opt Options
	opt.InitDefaults()
	env := map[string]string{"OPENAI_MAX_TOKENS": "lots"}
	if err := opt.LoadEnvironment(func(k string) string { return env[k] }); err == nil {
		t.Errorf("expected an error for a non-numeric OPENAI_MAX_TOKENS")
	}
}

func TestResolveAPIKey(t *testing.T) {
	env := map[string]string{
		"OPENAI_API_KEY": "openai-env",
		"GROK_API_KEY":   "grok-env",
	}
	getenv := func(k string) string { return env[k] }

	tests := []struct {
		provider string
		config   string
		want     string
	}{
		{provider: "openai", config: "cfg", want: "openai-env"},
		{provider: "openai://api.example.com/v1", want: "openai-env"},
		{provider: "grok", want: "grok-env"},
		{provider: "gemini", config: "cfg", want: "cfg"},
		{provider: "ollama", want: ""},
	}
	for _, tc := range tests {
		opt := Options{ProviderID: tc.provider, APIKey: tc.config}
		if got := opt.resolveAPIKey(getenv); got != tc.want {
			t.Errorf("resolveAPIKey(%q) = %q, want %q", tc.provider, got, tc.want)
		}
	}
}

func TestMissingAPIKeyFailsBeforeTheLoop(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	opt := Options{ProviderID: "openai"}
	if _, err := newLLMClient(context.Background(), opt); err == nil {
		t.Fatalf("expected an error without an API key")
	}
}

func TestRunOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	llm := mocks.NewMockClient(ctrl)
	llm.EXPECT().GenerateCompletion(gomock.Any(), gomock.Any()).
		Return(gollm.NewCompletionResponse(nil, "\n\nA haiku.\n"), nil)

	client, err := completion.NewClient(llm, completion.DefaultGenerationConfig(), completion.WithRecorder(&journal.LogRecorder{}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	var out bytes.Buffer
	if err := runOnce(context.Background(), client, &out, "write a haiku"); err != nil {
		t.Fatalf("runOnce: %v", err)
	}
	if out.String() != "A haiku.\n" {
		t.Errorf("output = %q", out.String())
	}
}

func executeCommand(t *testing.T, args ...string) string {
	t.Helper()

	var opt Options
	opt.InitDefaults()
	rootCmd, err := BuildRootCommand(&opt)
	if err != nil {
		t.Fatalf("BuildRootCommand: %v", err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("executing %v: %v", args, err)
	}
	return out.String()
}

func TestVersionCommand(t *testing.T) {
	out := executeCommand(t, "version")
	if !strings.Contains(out, "version: dev") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestTranscriptShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "transcript.txt")
	for _, r := range []transcript.Record{
		{Prompt: "Hi", Response: "Hello!"},
		{Prompt: "List", Response: "1. a\n2. b"},
	} {
		if err := transcript.Append(path, r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	out := executeCommand(t, "transcript", "show", path)
	want := "Record 1:\n" +
		"  Prompt:   Hi\n" +
		"  Response: Hello!\n" +
		"Record 2:\n" +
		"  Prompt:   List\n" +
		"  Response: 1. a\n" +
		"            2. b\n"
	if out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestTraceShowCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trace.yaml")
	for _, sessionID := range []string{"one", "two"} {
		recorder, err := journal.NewFileRecorder(path, sessionID)
		if err != nil {
			t.Fatalf("NewFileRecorder: %v", err)
		}
		if err := recorder.Write(context.Background(), journal.NewEvent(journal.ActionSave, map[string]any{"path": "out.txt"})); err != nil {
			t.Fatalf("Write: %v", err)
		}
		recorder.Close()
	}

	out := executeCommand(t, "trace", "show", path, "--session", "two")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 1 || !strings.HasSuffix(lines[0], "\ttwo\tsave") {
		t.Errorf("unexpected output %q", out)
	}

	out = executeCommand(t, "trace", "show", path, "--full")
	if strings.Count(out, "action: save") != 2 {
		t.Errorf("expected two full events, got %q", out)
	}
}

func TestTraceShowMissingFile(t *testing.T) {
	var opt Options
	opt.InitDefaults()
	rootCmd, err := BuildRootCommand(&opt)
	if err != nil {
		t.Fatalf("BuildRootCommand: %v", err)
	}
	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"trace", "show", filepath.Join(t.TempDir(), "missing.yaml")})
	if err := rootCmd.ExecuteContext(context.Background()); err == nil {
		t.Errorf("expected an error for a missing trace file")
	}
}
