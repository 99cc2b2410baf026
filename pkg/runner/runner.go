// Copyright (C) 2025 OwnTech Foundation. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package runner executes external commands and streams their standard output
// line by line through regular-expression handlers. Commands are guarded by a
// stall timeout: the clock restarts on every distinct new output line, so a
// slow but progressing transfer never times out while a hung process is
// killed promptly.
package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

// StallError reports that a command produced no new output line within the
// configured interval and was killed.
type StallError struct {
	Name    string
	Timeout time.Duration
}

func (e *StallError) Error() string {
	return fmt.Sprintf("'%s' produced no output for %s", e.Name, e.Timeout)
}

// LineHandler is applied to every output line as it arrives. Handle receives
// all matches of Pattern found on that line and is only called when there is
// at least one.
type LineHandler struct {
	Pattern *regexp.Regexp
	Handle  func(matches [][]string)
}

// FinalHandler is applied once to the full concatenated output, after the
// command has exited and its output stream is closed.
type FinalHandler struct {
	Pattern *regexp.Regexp
	Handle  func(matches [][]string)
}

// Options configures a single command execution.
type Options struct {
	// StallTimeout kills the command when no distinct new output line has
	// arrived for this long. Zero disables the guard.
	StallTimeout time.Duration

	// OnLine and OnFinal attach output handlers. Line handlers run first, in
	// line arrival order; the final handler runs last, at most once.
	OnLine  *LineHandler
	OnFinal *FinalHandler

	// Echo receives a copy of every output line when set.
	Echo io.Writer
}

// Run executes the named command and returns its exit code. A nonzero exit
// code is not an error; checking it is the caller's responsibility. A stall
// returns a StallError and the command is killed before returning.
func Run(ctx context.Context, opts Options, name string, arg ...string) (int, error) {
	cmd := exec.CommandContext(ctx, name, arg...)
	cmd.Stderr = io.Discard

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, err
	}

	if err := cmd.Start(); err != nil {
		return -1, err
	}

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var timeout <-chan time.Time
	var timer *time.Timer
	if opts.StallTimeout > 0 {
		timer = time.NewTimer(opts.StallTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var whole strings.Builder
	var last string

read:
	for {
		select {
		case line, ok := <-lines:
			if !ok {
				break read
			}
			whole.WriteString(line)
			whole.WriteByte('\n')
			if opts.Echo != nil {
				fmt.Fprintln(opts.Echo, line)
			}
			if opts.OnLine != nil {
				if matches := opts.OnLine.Pattern.FindAllStringSubmatch(line, -1); len(matches) > 0 {
					opts.OnLine.Handle(matches)
				}
			}
			// only distinct lines count as progress
			if timer != nil && line != last {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(opts.StallTimeout)
				last = line
			}
		case <-timeout:
			kill(cmd, lines)
			return -1, &StallError{Name: name, Timeout: opts.StallTimeout}
		case <-ctx.Done():
			kill(cmd, lines)
			return -1, ctx.Err()
		}
	}

	code := 0
	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return -1, err
		}
		code = exitErr.ExitCode()
	}

	if opts.OnFinal != nil {
		if matches := opts.OnFinal.Pattern.FindAllStringSubmatch(whole.String(), -1); len(matches) > 0 {
			opts.OnFinal.Handle(matches)
		}
	}

	return code, nil
}

// kill terminates the command and releases the output reader.
func kill(cmd *exec.Cmd, lines chan string) {
	_ = cmd.Process.Kill()
	go func() {
		for range lines {
		}
	}()
	_ = cmd.Wait()
}
