package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/Norgate-AV/pcs/internal/cache"
)

// DependencyCache is the subset of cache.DependencyCache a workspace needs
type DependencyCache interface {
	Get(ctx context.Context, digest string) (*cache.Entry, error)
	Store(ctx context.Context, entry *cache.Entry) error
	Known(digest string) bool
}

// LockDigest returns the digest of the current lock file.
// ok is false when dependencies have not been resolved yet.
func (w *Workspace) LockDigest() (digest string, ok bool, err error) {
	if _, err := os.Stat(w.LockFile()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}

		return "", false, fmt.Errorf("failed to stat lock file: %w", err)
	}

	digest, err = cache.HashLockFile(w.LockFile())
	if err != nil {
		return "", false, err
	}

	return digest, true, nil
}

// RefreshDependencies restores the dependency directory from deps when a
// snapshot for the current lock file exists. A miss is not an error.
func (w *Workspace) RefreshDependencies(ctx context.Context, deps DependencyCache) error {
	digest, ok, err := w.LockDigest()
	if err != nil || !ok {
		return err
	}

	entry, err := deps.Get(ctx, digest)
	if err != nil {
		return err
	}

	if entry == nil {
		return nil
	}

	if err := entry.ExtractTo(w.DependencyDir()); err != nil {
		return err
	}

	w.log.Debug("Restored dependencies from cache", zap.String("digest", digest))
	return nil
}

// SnapshotDependencies stores the dependency directory in deps unless its
// lock digest is already known to be cached
func (w *Workspace) SnapshotDependencies(ctx context.Context, deps DependencyCache) error {
	digest, ok, err := w.LockDigest()
	if err != nil || !ok {
		return err
	}

	if deps.Known(digest) {
		return nil
	}

	if _, err := os.Stat(w.DependencyDir()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		return fmt.Errorf("failed to stat dependency directory: %w", err)
	}

	entry, err := cache.EntryFrom(digest, w.DependencyDir())
	if err != nil {
		return err
	}

	return deps.Store(ctx, entry)
}
