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
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/zvdy/gpt-cli/pkg/completion"
	"sigs.k8s.io/yaml"
)

type Options struct {
	ProviderID string `json:"llmProvider,omitempty"`
	// APIKey is only read from the config file or the environment, never from a flag.
	APIKey  string `json:"apiKey,omitempty"`
	ModelID string `json:"model,omitempty"`

	MaxTokens        int      `json:"maxTokens,omitempty"`
	Temperature      float64  `json:"temperature"`
	TopP             float64  `json:"topP"`
	FrequencyPenalty float64  `json:"frequencyPenalty"`
	PresencePenalty  float64  `json:"presencePenalty"`
	Stop             []string `json:"stop"`

	// TranscriptFile is the file /save writes to until another name is entered.
	TranscriptFile string `json:"transcriptFile,omitempty"`
	TracePath      string `json:"tracePath,omitempty"`
	// RequestTimeout bounds each completion request; zero leaves it to the transport.
	RequestTimeout time.Duration `json:"-"`

	RenderMarkdown bool `json:"renderMarkdown,omitempty"`
	// SkipVerifySSL is a flag to skip verifying the SSL certificate of the LLM provider.
	SkipVerifySSL bool `json:"skipVerifySSL,omitempty"`
	// Quiet flag indicates if the session should run in non-interactive mode.
	// It requires a query to be provided as a positional argument or on stdin.
	Quiet bool `json:"quiet,omitempty"`
}

var defaultConfigPaths = []string{
	filepath.Join("{CONFIG}", "gpt-cli", "config.yaml"),
	filepath.Join("{HOME}", ".config", "gpt-cli", "config.yaml"),
}

// apiKeyEnvVars maps a provider to the environment variable holding its key.
var apiKeyEnvVars = map[string]string{
	"openai":            "OPENAI_API_KEY",
	"openai-compatible": "OPENAI_API_KEY",
	"grok":              "GROK_API_KEY",
	"gemini":            "GEMINI_API_KEY",
	"azopenai":          "AZURE_OPENAI_API_KEY",
}

func (o *Options) InitDefaults() {
	generation := completion.DefaultGenerationConfig()

	o.ProviderID = "openai"
	o.APIKey = ""
	o.ModelID = generation.Model
	o.MaxTokens = generation.MaxTokens
	o.Temperature = generation.Temperature
	o.TopP = generation.TopP
	o.FrequencyPenalty = generation.FrequencyPenalty
	o.PresencePenalty = generation.PresencePenalty
	o.Stop = generation.Stop
	o.TranscriptFile = completion.DefaultTranscriptFile
	o.TracePath = filepath.Join(os.TempDir(), "gpt-cli-trace.yaml")
	o.RequestTimeout = 0
	o.RenderMarkdown = false
	// Default to not skipping SSL verification
	o.SkipVerifySSL = false
	o.Quiet = false
}

func (o *Options) LoadConfiguration(b []byte) error {
	if err := yaml.Unmarshal(b, &o); err != nil {
		return fmt.Errorf("parsing configuration: %w", err)
	}
	return nil
}

func (o *Options) LoadConfigurationFile() error {
	configPaths := defaultConfigPaths
	for _, configPath := range configPaths {
		pathWithPlaceholdersExpanded, err := expandPathPlaceholders(configPath)
		if err != nil {
			return err
		}

		configPath = filepath.Clean(pathWithPlaceholdersExpanded)
		configBytes, err := os.ReadFile(configPath)
		if err != nil {
			if os.IsNotExist(err) {
				// ignore missing config files, they are optional
			} else {
				fmt.Fprintf(os.Stderr, "warning: could not load defaults from %q: %v\n", configPath, err)
			}
		} else if len(configBytes) > 0 {
			if err := o.LoadConfiguration(configBytes); err != nil {
				fmt.Fprintf(os.Stderr, "warning: error loading configuration from %q: %v\n", configPath, err)
			}
		}
	}
	return nil
}

func expandPathPlaceholders(path string) (string, error) {
	if strings.Contains(path, "{CONFIG}") {
		configDir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("getting user config directory (for config file path %q): %w", path, err)
		}
		path = strings.ReplaceAll(path, "{CONFIG}", configDir)
	}

	if strings.Contains(path, "{HOME}") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory (for config file path %q): %w", path, err)
		}
		path = strings.ReplaceAll(path, "{HOME}", homeDir)
	}
	return path, nil
}

// LoadEnvironment applies the environment variables that override the config file.
func (o *Options) LoadEnvironment(getenv func(string) string) error {
	if v := getenv("LLM_CLIENT"); v != "" {
		o.ProviderID = v
	}
	if v := getenv("OPENAI_MODEL"); v != "" {
		o.ModelID = v
	}
	if v := getenv("OPENAI_MAX_TOKENS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing OPENAI_MAX_TOKENS %q: %w", v, err)
		}
		o.MaxTokens = n
	}
	if v := getenv("OPENAI_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parsing OPENAI_TEMPERATURE %q: %w", v, err)
		}
		o.Temperature = f
	}
	return nil
}

// resolveAPIKey returns the key for the selected provider. The provider's
// environment variable wins over the config file.
func (o *Options) resolveAPIKey(getenv func(string) string) string {
	if envVar, ok := apiKeyEnvVars[providerName(o.ProviderID)]; ok {
		if v := getenv(envVar); v != "" {
			return v
		}
	}
	return o.APIKey
}

// providerName strips the endpoint from ids such as "ollama://localhost:11434".
func providerName(providerID string) string {
	if !strings.Contains(providerID, ":") {
		return providerID
	}
	u, err := url.Parse(providerID)
	if err != nil {
		return providerID
	}
	return u.Scheme
}

// GenerationConfig returns the parameters sent with every request.
func (o *Options) GenerationConfig() completion.GenerationConfig {
	var stop []string
	for _, s := range o.Stop {
		if s != "" {
			stop = append(stop, s)
		}
	}
	return completion.GenerationConfig{
		Model:            o.ModelID,
		MaxTokens:        o.MaxTokens,
		Temperature:      o.Temperature,
		TopP:             o.TopP,
		FrequencyPenalty: o.FrequencyPenalty,
		PresencePenalty:  o.PresencePenalty,
		Stop:             stop,
	}
}

func (opt *Options) bindCLIFlags(f *pflag.FlagSet) error {
	f.StringVar(&opt.ProviderID, "llm-provider", opt.ProviderID, "language model provider, optionally with an endpoint e.g. ollama://localhost:11434")
	f.StringVar(&opt.ModelID, "model", opt.ModelID, "language model e.g. gpt-3.5-turbo-instruct, gemini-2.5-flash")
	f.IntVar(&opt.MaxTokens, "max-tokens", opt.MaxTokens, "maximum number of tokens to generate")
	f.Float64Var(&opt.Temperature, "temperature", opt.Temperature, "sampling temperature, between 0 and 2")
	f.Float64Var(&opt.TopP, "top-p", opt.TopP, "nucleus sampling probability mass, in (0, 1]")
	f.Float64Var(&opt.FrequencyPenalty, "frequency-penalty", opt.FrequencyPenalty, "frequency penalty, between -2 and 2")
	f.Float64Var(&opt.PresencePenalty, "presence-penalty", opt.PresencePenalty, "presence penalty, between -2 and 2")
	f.StringArrayVar(&opt.Stop, "stop", opt.Stop, "stop sequence (repeatable, at most 4); pass --stop= to disable")

	f.StringVar(&opt.TranscriptFile, "transcript-file", opt.TranscriptFile, "file /save appends to when no file name is entered")
	f.StringVar(&opt.TracePath, "trace-path", opt.TracePath, "path to the trace file")
	f.DurationVar(&opt.RequestTimeout, "request-timeout", opt.RequestTimeout, "timeout for each completion request (0 for none)")

	f.BoolVar(&opt.RenderMarkdown, "render-markdown", opt.RenderMarkdown, "render responses as markdown")
	f.BoolVar(&opt.SkipVerifySSL, "skip-verify-ssl", opt.SkipVerifySSL, "skip verifying the SSL certificate of the LLM provider")
	f.BoolVar(&opt.Quiet, "quiet", opt.Quiet, "run in non-interactive mode, requires a query to be provided as a positional argument or on stdin")

	return nil
}
