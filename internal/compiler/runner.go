package compiler

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"
)

// Command is a subprocess invocation
type Command struct {
	Name string
	Args []string
	Dir  string
	Env  []string
}

// LineHandlers receive subprocess output one line at a time. Each handler
// is called from a single goroutine.
type LineHandlers struct {
	Stdout func(line string)
	Stderr func(line string)
}

// Runner runs a subprocess to completion. A non-zero exit is reported through
// the exit code, not as an error.
type Runner interface {
	Run(ctx context.Context, cmd Command, h LineHandlers) (int, error)
}

// ExecRunner runs commands with os/exec
type ExecRunner struct {
	execCommand func(ctx context.Context, name string, args ...string) *exec.Cmd
}

// NewExecRunner creates a runner backed by exec.CommandContext
func NewExecRunner() *ExecRunner {
	return &ExecRunner{execCommand: exec.CommandContext}
}

// Run starts cmd and drains stdout and stderr concurrently before waiting
// for it to exit
func (r *ExecRunner) Run(ctx context.Context, c Command, h LineHandlers) (int, error) {
	cmd := r.execCommand(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stdout: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return -1, fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return -1, fmt.Errorf("failed to start %s: %w", c.Name, err)
	}

	// Grandchildren may hold the pipes open after the process is killed
	stop := context.AfterFunc(ctx, func() {
		_ = stdout.Close()
		_ = stderr.Close()
	})
	defer stop()

	var g errgroup.Group
	g.Go(func() error { return drainLines(stdout, h.Stdout) })
	g.Go(func() error { return drainLines(stderr, h.Stderr) })

	drainErr := g.Wait()
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return -1, ctx.Err()
	}

	if drainErr != nil {
		return -1, fmt.Errorf("failed to read output of %s: %w", c.Name, drainErr)
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			return exitErr.ExitCode(), nil
		}

		return -1, fmt.Errorf("failed to wait for %s: %w", c.Name, waitErr)
	}

	return 0, nil
}

// Lines longer than maxLineSize are cut to that length
const maxLineSize = 1024 * 1024

func drainLines(r io.Reader, fn func(string)) error {
	br := bufio.NewReaderSize(r, 64*1024)
	line := make([]byte, 0, 64*1024)

	for {
		chunk, isPrefix, err := br.ReadLine()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			// Keep the pipe empty so the process can still exit
			_, _ = io.Copy(io.Discard, r)
			return err
		}

		if room := maxLineSize - len(line); room > 0 {
			line = append(line, chunk[:min(len(chunk), room)]...)
		}

		if isPrefix {
			continue
		}

		if fn != nil {
			fn(string(line))
		}

		line = line[:0]
	}
}
