package worker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SpawnFunc returns an unstarted command running a compiler in persistent
// worker mode. The process must read one JSON WorkRequest per line and
// answer each with one JSON WorkResponse line; protobuf framed workers need
// a translating wrapper.
type SpawnFunc func() *exec.Cmd

// Worker is one long-lived compiler process
type Worker struct {
	id    int
	cmd   *exec.Cmd
	stdin io.WriteCloser
	enc   *json.Encoder
	dec   *json.Decoder
	log   *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

func startWorker(spawn SpawnFunc, id int, log *zap.Logger) (*Worker, error) {
	cmd := spawn()
	log = log.With(zap.Int("worker", id))

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdin: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to open worker stdout: %w", err)
	}

	cmd.Stderr = &lineWriter{log: log}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start worker: %w", err)
	}

	log.Debug("Started worker", zap.String("path", cmd.Path), zap.Int("pid", cmd.Process.Pid))

	return &Worker{
		id:    id,
		cmd:   cmd,
		stdin: stdin,
		enc:   json.NewEncoder(stdin),
		dec:   json.NewDecoder(bufio.NewReader(stdout)),
		log:   log,
	}, nil
}

// do sends req and waits for the matching response. Any error leaves the
// worker unusable.
func (w *Worker) do(ctx context.Context, req WorkRequest) (WorkResponse, error) {
	type result struct {
		resp WorkResponse
		err  error
	}

	done := make(chan result, 1)
	go func() {
		var r result
		if err := w.enc.Encode(req); err != nil {
			r.err = fmt.Errorf("failed to send request: %w", err)
			done <- r
			return
		}

		if err := w.dec.Decode(&r.resp); err != nil {
			r.err = fmt.Errorf("failed to read response: %w", err)
			done <- r
			return
		}

		if r.resp.RequestID != req.RequestID {
			r.err = fmt.Errorf("response for request %d, expected %d", r.resp.RequestID, req.RequestID)
		}

		done <- r
	}()

	select {
	case r := <-done:
		return r.resp, r.err
	case <-ctx.Done():
		w.kill()
		return WorkResponse{}, ctx.Err()
	}
}

// kill stops the process immediately
func (w *Worker) kill() {
	_ = w.close(0)
}

// close asks the worker to exit by closing its stdin, killing it after grace
func (w *Worker) close(grace time.Duration) error {
	w.closeOnce.Do(func() {
		_ = w.stdin.Close()

		waitErr := make(chan error, 1)
		go func() { waitErr <- w.cmd.Wait() }()

		var err error
		select {
		case err = <-waitErr:
		case <-time.After(grace):
			_ = w.cmd.Process.Kill()
			err = <-waitErr
		}

		// Workers exit however they like once stdin is gone
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			w.closeErr = fmt.Errorf("failed to stop worker %d: %w", w.id, err)
		}

		w.log.Debug("Stopped worker")
	})

	return w.closeErr
}

// lineWriter logs each complete line written to it as a warning
type lineWriter struct {
	log *zap.Logger
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.buf.Write(p)
	for {
		line, err := l.buf.ReadString('\n')
		if err != nil {
			// Keep the partial line for the next write
			l.buf.Reset()
			l.buf.WriteString(line)
			break
		}

		l.log.Warn(string(bytes.TrimRight([]byte(line), "\r\n")))
	}

	return len(p), nil
}
