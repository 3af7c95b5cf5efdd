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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"golang.org/x/term"
	"k8s.io/klog/v2"
)

// LineReader reads one line of user input at a time.
// Ctrl+C and Ctrl+D at the prompt are reported as io.EOF.
// For the non-readline readers, Ctrl+C arrives as cancellation of the
// context given to NewLineReader.
type LineReader interface {
	io.Closer

	// ReadLine prints prompt and returns the next line without its newline.
	ReadLine(prompt string) (string, error)
}

// NewLineReader picks the input source for the session.
//
// When stdin already carried the query (it was piped in), input is read from
// /dev/tty instead, since stdin is consumed. A terminal stdin gets readline
// with history; anything else is read line by line.
func NewLineReader(ctx context.Context, useTTY bool) (LineReader, error) {
	if useTTY {
		return &ttyLineReader{done: ctx.Done()}, nil
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return newReadlineReader()
	}
	return newPlainLineReader(os.Stdin, os.Stdout, ctx.Done()), nil
}

// HistoryPath is the readline history file.
func HistoryPath() string {
	return filepath.Join(os.TempDir(), "gpt-cli-history")
}

type readlineReader struct {
	rl *readline.Instance
}

func newReadlineReader() (*readlineReader, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "",
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
		HistoryFile: HistoryPath(),
	})
	if err != nil {
		klog.Warningf("Failed to initialize readline, input might be limited: %v", err)
		return nil, fmt.Errorf("creating readline instance: %w", err)
	}
	return &readlineReader{rl: rl}, nil
}

func (r *readlineReader) ReadLine(prompt string) (string, error) {
	r.rl.SetPrompt(prompt)
	line, err := r.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		return "", err
	}
	return line, nil
}

func (r *readlineReader) Close() error {
	if err := r.rl.Close(); err != nil {
		return fmt.Errorf("closing readline instance: %w", err)
	}
	return nil
}

// ttyLineReader opens /dev/tty on first use.
type ttyLineReader struct {
	done    <-chan struct{}
	ttyFile *os.File
	plain   *plainLineReader
}

func (r *ttyLineReader) ReadLine(prompt string) (string, error) {
	if r.plain == nil {
		tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
		if err != nil {
			return "", fmt.Errorf("opening tty for input: %w", err)
		}
		r.ttyFile = tty
		r.plain = newPlainLineReader(tty, os.Stdout, r.done)
	}
	return r.plain.ReadLine(prompt)
}

func (r *ttyLineReader) Close() error {
	if r.ttyFile == nil {
		return nil
	}
	if err := r.ttyFile.Close(); err != nil {
		return fmt.Errorf("closing tty file: %w", err)
	}
	return nil
}

type plainLineReader struct {
	in   *bufio.Reader
	out  io.Writer
	done <-chan struct{}

	// pending holds the result of a read abandoned when done was closed.
	pending chan lineResult
}

type lineResult struct {
	line string
	err  error
}

// NewPlainLineReader reads lines from in and writes prompts to out.
func NewPlainLineReader(in io.Reader, out io.Writer) LineReader {
	return newPlainLineReader(in, out, nil)
}

// newPlainLineReader returns a reader whose ReadLine gives up with io.EOF
// once done is closed. A nil done blocks until a line arrives.
func newPlainLineReader(in io.Reader, out io.Writer, done <-chan struct{}) *plainLineReader {
	return &plainLineReader{
		in:   bufio.NewReader(in),
		out:  out,
		done: done,
	}
}

func (r *plainLineReader) ReadLine(prompt string) (string, error) {
	fmt.Fprint(r.out, prompt)
	if r.done == nil {
		return r.readLine()
	}

	select {
	case <-r.done:
		return "", io.EOF
	default:
	}

	if r.pending == nil {
		r.pending = make(chan lineResult, 1)
		go func(results chan<- lineResult) {
			line, err := r.readLine()
			results <- lineResult{line: line, err: err}
		}(r.pending)
	}

	select {
	case <-r.done:
		return "", io.EOF
	case res := <-r.pending:
		r.pending = nil
		return res.line, res.err
	}
}

func (r *plainLineReader) readLine() (string, error) {
	line, err := r.in.ReadString('\n')
	if err != nil {
		// A last line without a newline is still a line.
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r"), nil
		}
		return "", err
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

func (r *plainLineReader) Close() error {
	return nil
}
