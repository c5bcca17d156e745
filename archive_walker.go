// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"io"
	"io/fs"
)

// archiveWalker iterates the entries of an opened archive in their native order.
// Next returns io.EOF once all entries were visited.
type archiveWalker interface {
	Type() string
	Next() (archiveEntry, error)
	Close() error
}

// archiveEntry is a single file, directory or other object inside an archive
type archiveEntry interface {
	IsDir() bool
	IsRegular() bool
	Mode() fs.FileMode
	Name() string
	Open() (io.ReadCloser, error)
	Size() int64
}
