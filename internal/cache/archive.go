package cache

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// writeArchive streams dir as a zstd compressed tar to w.
// Entry names are relative to dir.
func writeArchive(w io.Writer, dir string) error {
	zw, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("failed to create compressor: %w", err)
	}

	tw := tar.NewWriter(zw)

	walkErr := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		// Skip adding an entry for the root dir
		if path == dir {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		return addToArchive(tw, info, path, filepath.ToSlash(rel))
	})
	if walkErr != nil {
		tw.Close()
		zw.Close()
		return walkErr
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return fmt.Errorf("failed to finish archive: %w", err)
	}

	return zw.Close()
}

func addToArchive(tw *tar.Writer, info os.FileInfo, path, name string) error {
	link := ""
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(path)
		if err != nil {
			return err
		}

		link = target
	}

	h, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	h.Name = name
	if info.IsDir() {
		h.Name += "/"
	}

	if err := tw.WriteHeader(h); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = io.Copy(tw, f)
	return err
}

// readArchive unpacks a zstd compressed tar from r into dir
func readArchive(r io.Reader, dir string) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return fmt.Errorf("failed to create decompressor: %w", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil
		}

		if err != nil {
			return err
		}

		target, err := archiveTarget(dir, h.Name)
		if err != nil {
			return err
		}

		if err := extractEntry(tr, h, dir, target); err != nil {
			return fmt.Errorf("failed to extract %s: %w", h.Name, err)
		}
	}
}

// archiveTarget resolves name inside dir, refusing entries that escape it
func archiveTarget(dir, name string) (string, error) {
	target := filepath.Join(dir, filepath.FromSlash(name))

	if !within(dir, target) {
		return "", fmt.Errorf("archive entry %q escapes target directory", name)
	}

	return target, nil
}

// within reports whether path is dir or lies below it
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// checkLinkTarget refuses symlinks that point outside dir
func checkLinkTarget(dir, target, linkname string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("symlink %q has absolute target %q", target, linkname)
	}

	if !within(dir, filepath.Join(filepath.Dir(target), linkname)) {
		return fmt.Errorf("symlink %q points outside target directory: %q", target, linkname)
	}

	return nil
}

// checkNoSymlinks refuses to write target when it, or any directory between
// dir and target, is an existing symlink
func checkNoSymlinks(dir, target string) error {
	rel, err := filepath.Rel(dir, target)
	if err != nil {
		return err
	}

	path := dir
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		path = filepath.Join(path, part)

		info, err := os.Lstat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}

		if err != nil {
			return err
		}

		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("refusing to write %q through symlink %q", target, path)
		}
	}

	return nil
}

func extractEntry(tr *tar.Reader, h *tar.Header, dir, target string) error {
	if err := checkNoSymlinks(dir, target); err != nil {
		return err
	}

	mode := os.FileMode(h.Mode).Perm()

	switch h.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, mode|0o700)

	case tar.TypeSymlink:
		if err := checkLinkTarget(dir, target, h.Linkname); err != nil {
			return err
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		return os.Symlink(h.Linkname, target)

	case tar.TypeReg:
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}

		f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
		if err != nil {
			return err
		}

		if _, err := io.Copy(f, tr); err != nil {
			f.Close()
			return err
		}

		return f.Close()

	case tar.TypeLink:
		return fmt.Errorf("hard link %q is not supported", h.Name)

	default:
		// Device nodes and the like never appear in a dependency directory
		return nil
	}
}
