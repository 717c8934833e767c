package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Norgate-AV/pcs/internal/cache"
	"github.com/Norgate-AV/pcs/internal/logger"
	"github.com/Norgate-AV/pcs/internal/sdk"
)

const (
	manifestName  = "pubspec.yaml"
	lockName      = "pubspec.lock"
	packagesName  = ".packages"
	libDirName    = "lib"
	webDirName    = "web"
	outputDirName = "build"
	entryName     = "main.dart"
)

// Workspace is an exclusively owned ephemeral compile directory
type Workspace struct {
	path       string
	log        *zap.Logger
	resolver   Resolver
	downloader Downloader
	summaryURL string

	mu       sync.Mutex
	state    FrameworkState
	initDone chan struct{}
	disposed bool
}

// Option configures a Workspace
type Option func(*Workspace)

// WithLogger sets the logger used by the workspace
func WithLogger(l *zap.Logger) Option {
	return func(w *Workspace) { w.log = logger.OrNop(l) }
}

// WithResolver sets the dependency resolution collaborator
func WithResolver(r Resolver) Option {
	return func(w *Workspace) { w.resolver = r }
}

// WithDownloader sets the artifact download collaborator
func WithDownloader(d Downloader) Option {
	return func(w *Workspace) {
		if d != nil {
			w.downloader = d
		}
	}
}

// WithSummaryURL sets where the framework summary is downloaded from
func WithSummaryURL(url string) Option {
	return func(w *Workspace) { w.summaryURL = url }
}

// New creates a fresh workspace under baseDir (the system temp dir if empty)
func New(baseDir string, opts ...Option) (*Workspace, error) {
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	w := &Workspace{
		log:   zap.NewNop(),
		state: FrameworkUninitialized,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.downloader == nil {
		w.downloader = NewRetryableDownloader(w.log)
	}

	if err := os.MkdirAll(baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace base directory: %w", err)
	}

	w.path = filepath.Join(baseDir, "pcs-"+uuid.NewString())
	if err := os.Mkdir(w.path, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	if err := w.populate(); err != nil {
		_ = os.RemoveAll(w.path)
		return nil, err
	}

	w.log.Info("Created workspace", zap.String("path", w.path))
	return w, nil
}

func (w *Workspace) populate() error {
	if err := writeManifest(w.ManifestFile(), MinimalManifest()); err != nil {
		return err
	}

	index := PackageName + ":" + libDirName + "/\n"
	if err := os.WriteFile(w.PackagesFile(), []byte(index), 0o644); err != nil {
		return fmt.Errorf("failed to write package index: %w", err)
	}

	for _, dir := range []string{libDirName, webDirName} {
		if err := os.MkdirAll(filepath.Join(w.path, dir), 0o750); err != nil {
			return fmt.Errorf("failed to create %s directory: %w", dir, err)
		}
	}

	return nil
}

// Path returns the workspace root
func (w *Workspace) Path() string { return w.path }

// ManifestFile returns the path of pubspec.yaml
func (w *Workspace) ManifestFile() string { return filepath.Join(w.path, manifestName) }

// LockFile returns the path of pubspec.lock
func (w *Workspace) LockFile() string { return filepath.Join(w.path, lockName) }

// PackagesFile returns the path of the package index
func (w *Workspace) PackagesFile() string { return filepath.Join(w.path, packagesName) }

// DependencyDir returns the resolved dependency directory
func (w *Workspace) DependencyDir() string {
	return filepath.Join(w.path, cache.DependencyDirName)
}

// SummaryFile returns where the framework summary is stored
func (w *Workspace) SummaryFile() string {
	return filepath.Join(w.path, sdk.SummaryFileName)
}

// EntryPoint returns the file the batch build compiles
func (w *Workspace) EntryPoint() string {
	return filepath.Join(w.path, webDirName, entryName)
}

// OutputDir returns the batch build output directory
func (w *Workspace) OutputDir() string { return filepath.Join(w.path, outputDirName) }

// Dispose removes the workspace. Calling it again is a no-op.
func (w *Workspace) Dispose() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.disposed {
		return nil
	}

	if err := os.RemoveAll(w.path); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}

	w.disposed = true
	w.log.Info("Removed workspace", zap.String("path", w.path))

	return nil
}
