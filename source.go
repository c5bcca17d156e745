// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"fmt"
	"io"
	"io/fs"
	"sync"

	"github.com/spf13/afero"
)

// Source provides the archive that is installed. Open is called once per
// installation and the returned stream is closed by the caller.
type Source interface {
	// Name identifies the archive in log messages
	Name() string

	// Open returns a stream with the archive content
	Open() (io.ReadCloser, error)
}

// EmbeddedSource reads the archive from a file system that is compiled into
// the binary, usually an embed.FS.
type EmbeddedSource struct {
	fsys fs.FS
	name string
}

// NewEmbeddedSource returns a [Source] for the file name in fsys.
func NewEmbeddedSource(fsys fs.FS, name string) *EmbeddedSource {
	return &EmbeddedSource{fsys: fsys, name: name}
}

// Name returns the resource name
func (e *EmbeddedSource) Name() string {
	return e.name
}

// Open opens the embedded resource
func (e *EmbeddedSource) Open() (io.ReadCloser, error) {
	f, err := e.fsys.Open(e.name)
	if err != nil {
		return nil, fmt.Errorf("cannot open embedded resource: %w", err)
	}
	return f, nil
}

// FileSource reads the archive from a file, e.g. an archive shipped next
// to the installer.
type FileSource struct {
	fs   afero.Fs
	path string
}

// NewFileSource returns a [Source] for path on fs.
func NewFileSource(fs afero.Fs, path string) *FileSource {
	return &FileSource{fs: fs, path: path}
}

// Name returns the path of the file
func (f *FileSource) Name() string {
	return f.path
}

// Open opens the file
func (f *FileSource) Open() (io.ReadCloser, error) {
	file, err := f.fs.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("cannot open archive file: %w", err)
	}
	return file, nil
}

// ReaderSource wraps a stream. The stream can only be consumed once.
type ReaderSource struct {
	name string
	r    io.Reader
	once sync.Once
}

// NewReaderSource returns a [Source] that reads from r.
func NewReaderSource(name string, r io.Reader) *ReaderSource {
	return &ReaderSource{name: name, r: r}
}

// Name returns the given name
func (s *ReaderSource) Name() string {
	return s.name
}

// Open returns the wrapped stream. A second call fails.
func (s *ReaderSource) Open() (io.ReadCloser, error) {
	var rc io.ReadCloser
	s.once.Do(func() {
		if c, ok := s.r.(io.ReadCloser); ok {
			rc = c
			return
		}
		rc = io.NopCloser(s.r)
	})
	if rc == nil {
		return nil, fmt.Errorf("stream %s already consumed", s.name)
	}
	return rc, nil
}
