package cache

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DependencyDirName is the only directory name an Entry may be taken from or
// extracted into
const DependencyDirName = ".dart_tool"

var (
	// ErrInvalidDirectory is returned when a snapshot directory has the wrong name
	ErrInvalidDirectory = errors.New("invalid dependency directory")

	// ErrCorrupt is returned when a snapshot cannot be archived or unpacked
	ErrCorrupt = errors.New("corrupt dependency snapshot")
)

// Entry is an immutable snapshot of a resolved dependency directory
type Entry struct {
	// Digest is the hash of the lock file the snapshot was resolved from
	Digest string `json:"digest"`

	// Payload is the base64 encoded, zstd compressed tar of the directory
	Payload string `json:"payload"`
}

// EntryFrom archives dir into a new Entry keyed by digest
func EntryFrom(digest, dir string) (*Entry, error) {
	if err := checkDependencyDir(dir); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := base64.NewEncoder(base64.StdEncoding, &buf)

	if err := writeArchive(enc, dir); err != nil {
		return nil, fmt.Errorf("%w: failed to archive %s: %w", ErrCorrupt, dir, err)
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("%w: failed to encode archive: %w", ErrCorrupt, err)
	}

	return &Entry{
		Digest:  digest,
		Payload: buf.String(),
	}, nil
}

// ExtractTo replaces dir with the contents of the snapshot
func (e *Entry) ExtractTo(dir string) error {
	if err := checkDependencyDir(dir); err != nil {
		return err
	}

	if _, err := os.Stat(dir); err == nil {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove existing %s: %w", dir, err)
		}
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	dec := base64.NewDecoder(base64.StdEncoding, strings.NewReader(e.Payload))
	if err := readArchive(dec, dir); err != nil {
		return fmt.Errorf("%w: failed to extract %s into %s: %w", ErrCorrupt, e.Digest, dir, err)
	}

	return nil
}

func checkDependencyDir(dir string) error {
	if filepath.Base(filepath.Clean(dir)) != DependencyDirName {
		return fmt.Errorf("%w: %q must be named %s", ErrInvalidDirectory, dir, DependencyDirName)
	}

	return nil
}
