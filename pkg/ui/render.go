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

package ui

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"k8s.io/klog/v2"
)

const separatorWidth = 40

// Renderer writes session output.
type Renderer struct {
	out              io.Writer
	markdownRenderer *glamour.TermRenderer

	separatorStyle lipgloss.Style
	noticeStyle    lipgloss.Style
	errorStyle     lipgloss.Style
}

func getCustomTerminalWidth() int {
	if widthStr := os.Getenv("GPT_CLI_TERM_WIDTH"); widthStr != "" {
		if width, err := strconv.Atoi(widthStr); err == nil && width > 0 {
			return width
		}
		klog.Warningf("Invalid GPT_CLI_TERM_WIDTH value %q, using default", widthStr)
	}
	return 0
}

// NewRenderer returns a Renderer writing to out. Responses are rendered as
// markdown when renderMarkdown is set.
func NewRenderer(out io.Writer, renderMarkdown bool) (*Renderer, error) {
	// Color support is detected from out, so tests writing to a buffer get plain text.
	lg := lipgloss.NewRenderer(out)
	r := &Renderer{
		out:            out,
		separatorStyle: lg.NewStyle().Faint(true),
		noticeStyle:    lg.NewStyle().Foreground(lipgloss.Color("2")),
		errorStyle:     lg.NewStyle().Foreground(lipgloss.Color("1")),
	}

	if renderMarkdown {
		options := []glamour.TermRendererOption{
			glamour.WithAutoStyle(),
			glamour.WithPreservedNewLines(),
			glamour.WithEmoji(),
		}
		if width := getCustomTerminalWidth(); width > 0 {
			options = append(options, glamour.WithWordWrap(width))
		}
		mdRenderer, err := glamour.NewTermRenderer(options...)
		if err != nil {
			return nil, fmt.Errorf("error initializing the markdown renderer: %w", err)
		}
		r.markdownRenderer = mdRenderer
	}
	return r, nil
}

// Response prints text between two separator lines.
func (r *Renderer) Response(text string) {
	printText := text
	if r.markdownRenderer != nil {
		out, err := r.markdownRenderer.Render(text)
		if err != nil {
			klog.Errorf("Error rendering markdown: %v", err)
		} else {
			printText = strings.Trim(out, "\n")
		}
	}

	separator := r.separatorStyle.Render(strings.Repeat("-", separatorWidth))
	fmt.Fprintf(r.out, "%s\n%s\n%s\n", separator, printText, separator)
}

// Notice prints an informational line.
func (r *Renderer) Notice(text string) {
	fmt.Fprintln(r.out, r.noticeStyle.Render(text))
}

// Error prints "Error: <message>".
func (r *Renderer) Error(message string) {
	fmt.Fprintln(r.out, r.errorStyle.Render("Error: "+message))
}
