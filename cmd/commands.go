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
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zvdy/gpt-cli/pkg/journal"
	"github.com/zvdy/gpt-cli/pkg/transcript"
	"sigs.k8s.io/yaml"
)

func buildModelsCommand(opt *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the models offered by the selected provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			llmClient, err := newLLMClient(ctx, *opt)
			if err != nil {
				return err
			}
			defer llmClient.Close()

			models, err := llmClient.ListModels(ctx)
			if err != nil {
				return fmt.Errorf("listing models: %w", err)
			}
			for _, model := range models {
				fmt.Fprintln(cmd.OutOrStdout(), model)
			}
			return nil
		},
	}
}

func buildTranscriptCommand() *cobra.Command {
	transcriptCmd := &cobra.Command{
		Use:   "transcript",
		Short: "Inspect transcript files written by /save",
	}
	transcriptCmd.AddCommand(&cobra.Command{
		Use:   "show FILE",
		Short: "Print the records of a transcript file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := transcript.ParseFile(args[0])
			if err != nil {
				return err
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	})
	return transcriptCmd
}

func printRecords(out io.Writer, records []transcript.Record) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No records found.")
		return
	}
	for i, record := range records {
		fmt.Fprintf(out, "Record %d:\n", i+1)
		fmt.Fprintf(out, "  Prompt:   %s\n", indent(record.Prompt))
		fmt.Fprintf(out, "  Response: %s\n", indent(record.Response))
	}
}

// indent aligns continuation lines under the first one.
func indent(s string) string {
	return strings.ReplaceAll(s, "\n", "\n            ")
}

func buildTraceCommand(opt *Options) *cobra.Command {
	var sessionID string
	var full bool

	traceCmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect the trace journal",
	}
	showCmd := &cobra.Command{
		Use:   "show [FILE]",
		Short: "Print the events of a trace file (defaults to --trace-path)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opt.TracePath
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				return fmt.Errorf("no trace file given and --trace-path is empty")
			}

			events, err := journal.ParseEventsFromFile(path)
			if err != nil {
				return err
			}
			if sessionID != "" {
				events = journal.FilterSession(events, sessionID)
			}
			return printEvents(cmd.OutOrStdout(), events, full)
		},
	}
	showCmd.Flags().StringVar(&sessionID, "session", "", "only show events of this session ID")
	showCmd.Flags().BoolVar(&full, "full", false, "print event payloads as YAML")
	traceCmd.AddCommand(showCmd)
	return traceCmd
}

func printEvents(out io.Writer, events []*journal.Event, full bool) error {
	if len(events) == 0 {
		fmt.Fprintln(out, "No events found.")
		return nil
	}
	for _, event := range events {
		if full {
			b, err := yaml.Marshal(event)
			if err != nil {
				return fmt.Errorf("marshalling event %s: %w", event.ID, err)
			}
			fmt.Fprintf(out, "%s---\n", b)
			continue
		}
		fmt.Fprintf(out, "%s\t%s\t%s\n",
			event.Timestamp.Format("2006-01-02 15:04:05"),
			event.SessionID,
			event.Action)
	}
	return nil
}
