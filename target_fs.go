// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// TargetFs is a [Target] on top of an afero filesystem
type TargetFs struct {
	fs afero.Fs
}

// NewTargetFs creates a new [TargetFs] that writes into fs
func NewTargetFs(fs afero.Fs) *TargetFs {
	return &TargetFs{fs: fs}
}

// NewTargetDisk creates a [TargetFs] for the os filesystem
func NewTargetDisk() *TargetFs {
	return NewTargetFs(afero.NewOsFs())
}

// NewTargetMemory creates a [TargetFs] that is held in memory
func NewTargetMemory() *TargetFs {
	return NewTargetFs(afero.NewMemMapFs())
}

// Fs returns the underlying filesystem
func (t *TargetFs) Fs() afero.Fs {
	return t.fs
}

// CreateDir creates a directory at the specified path with the specified mode. If the directory already
// exists, nothing is done.
func (t *TargetFs) CreateDir(path string, mode fs.FileMode) error {
	if err := t.fs.MkdirAll(path, mode.Perm()); err != nil {
		return fmt.Errorf("failed to create directory (%w)", err)
	}
	return nil
}

// Mkdir creates a single directory, the parent must exist.
func (t *TargetFs) Mkdir(path string, mode fs.FileMode) error {
	return t.fs.Mkdir(path, mode.Perm())
}

// CreateFile creates a file at the specified path with src as content.
// If the file already exists and overwrite is false, an error is returned.
// The size of the file does not exceed maxSize, unless maxSize < 0.
func (t *TargetFs) CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
	// Check for path validity and if file existence+overwrite
	if info, err := t.Lstat(path); !errors.Is(err, fs.ErrNotExist) {

		// something wrong with path
		if err != nil {
			return 0, fmt.Errorf("invalid path: %w", err)
		}

		// check for overwrite
		if !overwrite {
			return 0, fmt.Errorf("file already exists")
		}

		// never write into a directory or through a link
		if !info.Mode().IsRegular() {
			return 0, fmt.Errorf("cannot overwrite %s: not a regular file", path)
		}
	}

	// create dst file
	dstFile, err := t.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	defer dstFile.Close()

	// write data to file
	n, err := io.Copy(limitWriter(dstFile, maxSize), src)
	if err != nil {
		return n, fmt.Errorf("failed to write file: %w", err)
	}

	return n, dstFile.Close()
}

// Lstat returns the FileInfo structure describing the named file without
// following a symlink, if the filesystem supports it.
func (t *TargetFs) Lstat(name string) (fs.FileInfo, error) {
	if lfs, ok := t.fs.(afero.Lstater); ok {
		info, _, err := lfs.LstatIfPossible(name)
		return info, err
	}
	return t.fs.Stat(name)
}

// Stat returns the FileInfo structure describing the named file.
func (t *TargetFs) Stat(name string) (fs.FileInfo, error) {
	return t.fs.Stat(name)
}

// ReadDir returns the children of the directory, sorted by name.
func (t *TargetFs) ReadDir(name string) ([]fs.FileInfo, error) {
	return afero.ReadDir(t.fs, name)
}

// RemoveAll removes path and any children it contains.
func (t *TargetFs) RemoveAll(path string) error {
	return t.fs.RemoveAll(path)
}

// Rename renames (moves) oldpath to newpath.
func (t *TargetFs) Rename(oldpath, newpath string) error {
	return t.fs.Rename(oldpath, newpath)
}
