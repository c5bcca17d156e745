// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Target specifies all functions that are needed to install an archive into a
// destination directory.
type Target interface {
	// CreateFile creates a file at the specified path with src as content. The mode parameter is the file mode that
	// should be set on the file. If the file already exists and overwrite is false, an error should be returned.
	// The size of the file should not exceed maxSize. The number of bytes written is returned, also together with
	// an error. If maxSize < 0, the file size is not limited.
	CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error)

	// CreateDir creates the directory path and all missing parents with the specified mode. If the directory
	// already exists, nothing is done.
	CreateDir(path string, mode fs.FileMode) error

	// Mkdir creates the single directory path. It fails if the parent does not exist.
	Mkdir(path string, mode fs.FileMode) error

	// Lstat see docs for os.Lstat. Main purpose is to check for symlinks in the extraction path.
	Lstat(path string) (fs.FileInfo, error)

	// Stat see docs for os.Stat. Main purpose is to inspect the destination, which may be a symlink to a directory.
	Stat(path string) (fs.FileInfo, error)

	// ReadDir returns the immediate children of the directory path.
	ReadDir(path string) ([]fs.FileInfo, error)

	// RemoveAll see docs for os.RemoveAll.
	RemoveAll(path string) error

	// Rename see docs for os.Rename.
	Rename(oldpath, newpath string) error
}

// entryPath converts the slash separated name of an archive entry into a
// relative, os specific path. Names that leave the destination are rejected
// with [ErrUnsafeEntry].
func entryPath(name string) (string, error) {
	// check if a name is provided
	if len(name) == 0 {
		return "", fmt.Errorf("%w: empty name", ErrUnsafeEntry)
	}

	// absolute names are never local, also not on windows with a leading slash
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}

	// adjust path to be os specific
	parts := strings.Split(name, "/")
	path := filepath.Join(parts...)

	// check for traversal
	if !filepath.IsLocal(path) {
		return "", fmt.Errorf("%w: %s", ErrUnsafeEntry, name)
	}
	return path, nil
}

// createFile ensures the parent directories of name exist below dst and
// writes src into the file.
func createFile(t Target, dst string, name string, src io.Reader, mode fs.FileMode, maxSize int64, cfg *Config) (int64, error) {
	if err := createDir(t, dst, filepath.Dir(name), cfg); err != nil {
		return 0, fmt.Errorf("cannot create directory: %w", err)
	}

	// ensure that an existing file is not a symlink
	if err := securityCheck(t, dst, name); err != nil {
		return 0, fmt.Errorf("security check path failed: %w", err)
	}
	return t.CreateFile(filepath.Join(dst, name), src, mode, true, maxSize)
}

// createDir creates the directory name and its parents below dst. The
// relative name must have passed [entryPath].
func createDir(t Target, dst string, name string, cfg *Config) error {
	// no action needed
	if name == "." || len(name) == 0 {
		return nil
	}

	// perform security check to ensure that the path is safe to write to
	if err := securityCheck(t, dst, name); err != nil {
		return fmt.Errorf("security check path failed: %w", err)
	}

	return t.CreateDir(filepath.Join(dst, name), cfg.CustomCreateDirMode())
}

// securityCheck walks each element of the relative path below dst and fails
// if one of the existing elements is a symlink. The destination itself may be
// a symlink.
func securityCheck(t Target, dst string, path string) error {
	elements := strings.Split(path, string(os.PathSeparator))
	for i := range elements {

		// assemble path
		checkDir := filepath.Join(dst, filepath.Join(elements[0:i+1]...))
		if checkDir == "." || checkDir == dst {
			continue
		}

		// missing elements are created later
		info, err := t.Lstat(checkDir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("invalid path: %w", err)
		}

		// check for symlink
		if info.Mode()&fs.ModeSymlink != 0 {
			return fmt.Errorf("symlink in path: %s", checkDir)
		}
	}

	return nil
}
