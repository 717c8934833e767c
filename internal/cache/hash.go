package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// HashLockFile computes the dependency digest for a lock file.
// The digest covers the exact bytes of the file, so any formatting change
// produces a new cache key.
func HashLockFile(path string) (string, error) {
	digest, err := HashFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to hash lock file: %w", err)
	}

	return digest, nil
}

// HashBytes returns the hex encoded SHA256 of data
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// HashFile creates a hash of a file's content
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
