package workspace

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// FrameworkState tracks framework initialization of a workspace
type FrameworkState int

const (
	FrameworkUninitialized FrameworkState = iota
	FrameworkInitializing
	FrameworkReady
)

func (s FrameworkState) String() string {
	switch s {
	case FrameworkUninitialized:
		return "uninitialized"
	case FrameworkInitializing:
		return "initializing"
	case FrameworkReady:
		return "ready"
	default:
		return fmt.Sprintf("FrameworkState(%d)", int(s))
	}
}

var errDisposed = errors.New("workspace disposed")

// State returns the current framework state
func (w *Workspace) State() FrameworkState {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.state
}

// InitializeFramework prepares the workspace for framework samples.
// It is best effort: failures are logged and the state falls back to
// uninitialized so a later call can retry. Callers arriving while an
// attempt is in flight wait for it, or for ctx.
func (w *Workspace) InitializeFramework(ctx context.Context) {
	w.mu.Lock()
	switch w.state {
	case FrameworkReady:
		w.mu.Unlock()
		return

	case FrameworkInitializing:
		done := w.initDone
		w.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
		}

		return
	}

	if w.disposed {
		w.mu.Unlock()
		w.log.Warn("Framework initialization skipped", zap.Error(errDisposed))
		return
	}

	done := make(chan struct{})
	w.state = FrameworkInitializing
	w.initDone = done
	w.mu.Unlock()

	start := time.Now()
	err := w.initializeFramework(ctx)

	w.mu.Lock()
	if err != nil {
		w.state = FrameworkUninitialized
	} else {
		w.state = FrameworkReady
	}
	close(done)
	w.mu.Unlock()

	if err != nil {
		w.log.Warn("Framework initialization failed", zap.Error(err))
		return
	}

	w.log.Info("Framework initialized", zap.Duration("duration", time.Since(start)))
}

func (w *Workspace) initializeFramework(ctx context.Context) error {
	if w.resolver == nil {
		return fmt.Errorf("no dependency resolver configured")
	}

	if err := writeManifest(w.ManifestFile(), FrameworkManifest()); err != nil {
		return err
	}

	if err := w.resolver.Resolve(ctx, w.path); err != nil {
		return fmt.Errorf("failed to resolve framework dependencies: %w", err)
	}

	if w.summaryURL == "" {
		w.log.Warn("No framework summary URL configured, incremental compiles will run without it")
		return nil
	}

	if err := w.downloader.Download(ctx, w.summaryURL, w.SummaryFile()); err != nil {
		return fmt.Errorf("failed to download framework summary: %w", err)
	}

	return nil
}
