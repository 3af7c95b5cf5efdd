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
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/zvdy/gpt-cli/gollm"
	"github.com/zvdy/gpt-cli/pkg/completion"
	"github.com/zvdy/gpt-cli/pkg/journal"
	"github.com/zvdy/gpt-cli/pkg/repl"
	"github.com/zvdy/gpt-cli/pkg/ui"

	"k8s.io/klog/v2"
)

// Using the defaults from goreleaser as per https://goreleaser.com/cookbooks/using-main.version/
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func BuildRootCommand(opt *Options) (*cobra.Command, error) {
	rootCmd := &cobra.Command{
		Use:   "gpt-cli [query]",
		Short: "A minimal interactive client for text-completion APIs",
		Long: "gpt-cli sends each line you type to a text-completion API and prints the response. " +
			"Type /save to append the last prompt and response to a transcript file and /exit to quit.",
		Args: cobra.MaximumNArgs(1), // Only one positional arg is allowed.
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunRootCommand(cmd.Context(), *opt, args)
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number of gpt-cli",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "version: %s\ncommit: %s\ndate: %s\n", version, commit, date)
		},
	})
	rootCmd.AddCommand(buildModelsCommand(opt))
	rootCmd.AddCommand(buildTranscriptCommand())
	rootCmd.AddCommand(buildTraceCommand(opt))

	if err := opt.bindCLIFlags(rootCmd.PersistentFlags()); err != nil {
		return nil, err
	}
	return rootCmd, nil
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		// restore default behavior for a second signal
		signal.Stop(make(chan os.Signal))
		cancel()
		klog.Flush()
		fmt.Fprintf(os.Stderr, "\nReceived signal, shutting down gracefully... (press Ctrl+C again to force)\n")
	}()

	if err := run(ctx); err != nil {
		// Don't print error if it's a context cancellation
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		// Exit with non-zero status code on error, unless it's a graceful shutdown.
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// klog setup must happen before Cobra parses any flags

	// add commandline flags for logging
	klogFlags := flag.NewFlagSet("klog", flag.ExitOnError)
	klog.InitFlags(klogFlags)

	klogFlags.Set("logtostderr", "false")
	klogFlags.Set("log_file", filepath.Join(os.TempDir(), "gpt-cli.log"))

	defer klog.Flush()

	var opt Options

	opt.InitDefaults()

	// load YAML config values
	if err := opt.LoadConfigurationFile(); err != nil {
		return fmt.Errorf("failed to load config file: %w", err)
	}

	// environment overrides the config file; flags override both
	if err := opt.LoadEnvironment(os.Getenv); err != nil {
		return fmt.Errorf("failed to load environment: %w", err)
	}

	rootCmd, err := BuildRootCommand(&opt)
	if err != nil {
		return err
	}

	// We add just the klog flags we want, not all the klog flags (there are a lot, most of them are very niche)
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("v"))
	rootCmd.PersistentFlags().AddGoFlag(klogFlags.Lookup("alsologtostderr"))

	// do this early, before the third-party code logs anything.
	redirectStdLogToKlog()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return err
	}

	return nil
}

// newLLMClient builds the provider client selected by opt.
func newLLMClient(ctx context.Context, opt Options) (gollm.Client, error) {
	var clientOpts []gollm.Option
	if apiKey := opt.resolveAPIKey(os.Getenv); apiKey != "" {
		clientOpts = append(clientOpts, gollm.WithAPIKey(apiKey))
	}
	if opt.SkipVerifySSL {
		clientOpts = append(clientOpts, gollm.WithSkipVerifySSL())
	}

	llmClient, err := gollm.NewClient(ctx, opt.ProviderID, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("creating llm client: %w", err)
	}
	return llmClient, nil
}

func RunRootCommand(ctx context.Context, opt Options, args []string) error {
	generation := opt.GenerationConfig()
	if err := generation.Validate(); err != nil {
		return fmt.Errorf("invalid generation parameters: %w", err)
	}

	// After reading stdin, it is consumed
	hasInputData, err := hasStdInData()
	if err != nil {
		return fmt.Errorf("failed to check if stdin has data: %w", err)
	}

	// Handles positional args or stdin
	queryFromCmd, err := resolveQueryInput(hasInputData, args, os.Stdin)
	if err != nil {
		return fmt.Errorf("failed to resolve query input %w", err)
	}
	if opt.Quiet && queryFromCmd == "" {
		return fmt.Errorf("quiet mode requires a query as a positional argument or on stdin")
	}

	sessionID := uuid.NewString()
	klog.InfoS("Application started", "pid", os.Getpid(), "session", sessionID, "provider", opt.ProviderID, "model", opt.ModelID)

	llmClient, err := newLLMClient(ctx, opt)
	if err != nil {
		return err
	}
	defer llmClient.Close()

	var recorder journal.Recorder
	if opt.TracePath != "" {
		var fileRecorder journal.Recorder
		fileRecorder, err = journal.NewFileRecorder(opt.TracePath, sessionID)
		if err != nil {
			return fmt.Errorf("creating trace recorder: %w", err)
		}
		defer fileRecorder.Close()
		recorder = fileRecorder
	} else {
		// Ensure we always have a recorder, to avoid nil checks
		recorder = &journal.LogRecorder{SessionID: sessionID}
		defer recorder.Close()
	}
	ctx = journal.ContextWithRecorder(ctx, recorder)

	client, err := completion.NewClient(llmClient, generation,
		completion.WithRecorder(recorder),
		completion.WithDefaultFilename(opt.TranscriptFile),
		completion.WithRequestTimeout(opt.RequestTimeout),
	)
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}

	renderer, err := ui.NewRenderer(os.Stdout, opt.RenderMarkdown)
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	if opt.Quiet {
		return runOnce(ctx, client, os.Stdout, queryFromCmd)
	}

	// since stdin is already consumed, we use TTY for taking input from user
	reader, err := ui.NewLineReader(ctx, hasInputData)
	if err != nil {
		return fmt.Errorf("creating line reader: %w", err)
	}
	defer reader.Close()

	return runSession(ctx, repl.NewSession(client, reader, renderer), queryFromCmd)
}

// runOnce answers a single query and prints the bare response.
func runOnce(ctx context.Context, client repl.Completer, out io.Writer, query string) error {
	response, err := client.Generate(ctx, query)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, response)
	return nil
}

// runSession sends the initial query, if any, and then hands over to the prompt loop.
func runSession(ctx context.Context, session *repl.Session, initialQuery string) error {
	if initialQuery != "" {
		if err := session.Handle(ctx, initialQuery); err != nil {
			return err
		}
	}

	err := session.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("running session: %w", err)
	}
	return err
}

// Redirect standard log output to our custom klog writer
// This is primarily to suppress warning messages from
// genai library https://github.com/googleapis/go-genai/blob/6ac4afc0168762dc3b7a4d940fc463cc1854f366/types.go#L1633
func redirectStdLogToKlog() {
	log.SetOutput(klogWriter{})

	// Disable standard log's prefixes (date, time, file info)
	// because klog will add its own more detailed prefix.
	log.SetFlags(0)
}

// Define a custom writer that forwards messages to klog.Warning
type klogWriter struct{}

// Implement the io.Writer interface
func (writer klogWriter) Write(data []byte) (n int, err error) {
	// We trim the trailing newline because klog adds its own.
	message := string(bytes.TrimSuffix(data, []byte("\n")))
	klog.Warning(message)
	return len(data), nil
}

func hasStdInData() (bool, error) {
	hasData := false

	stat, err := os.Stdin.Stat()
	if err != nil {
		return hasData, fmt.Errorf("checking stdin: %w", err)
	}
	hasData = (stat.Mode() & os.ModeCharDevice) == 0

	return hasData, nil
}

// resolveQueryInput determines the query input from positional args and/or stdin.
// It supports:
// - 1 positional arg only -> gpt-cli "write a haiku"
// - stdin only -> echo "write a haiku" | gpt-cli
// - 1 positional arg + stdin (combined) -> gpt-cli "summarize this:" < notes.txt
// As default no positional arg nor stdin
func resolveQueryInput(hasStdInData bool, args []string, stdin io.Reader) (string, error) {
	switch {
	case len(args) == 1 && !hasStdInData:
		// Use argument directly
		return args[0], nil

	case len(args) == 1 && hasStdInData:
		// Combine arg + stdin
		var b strings.Builder
		b.WriteString(args[0])
		b.WriteString("\n")

		scanner := bufio.NewScanner(stdin)
		for scanner.Scan() {
			b.WriteString(scanner.Text())
			b.WriteString("\n")
		}
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		query := strings.TrimSpace(b.String())
		if query == "" {
			return "", fmt.Errorf("no query provided from stdin")
		}
		return query, nil

	case len(args) == 0 && hasStdInData:
		// Read stdin only
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("reading stdin: %w", err)
		}
		query := strings.TrimSpace(string(b))
		if query == "" {
			return "", fmt.Errorf("no query provided from stdin")
		}
		return query, nil

	default:
		// Case: No input at all, return empty string, no error
		return "", nil
	}
}
