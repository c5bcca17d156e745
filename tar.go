// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"archive/tar"
	"io"
	"io/fs"
)

// fileExtensionTar is the file extension for tar files
const fileExtensionTar = "tar"

// offsetTar is the offset where the magic bytes are located in the file
const offsetTar = 257

// magicBytesTar are the magic bytes for tar files
var magicBytesTar = [][]byte{
	[]byte("ustar\x00tar\x00"),
	[]byte("ustar\x00"),
	[]byte("ustar  \x00"),
}

// isTar checks if the header matches the magic bytes for tar files
func isTar(data []byte) bool {
	return matchesMagicBytes(data, offsetTar, magicBytesTar)
}

// newTarWalker reads a tar stream from src. The optional closer is closed
// together with the walker, e.g. a decompressor in front of the tar stream.
func newTarWalker(src io.Reader, closer io.Closer, fileType string) *tarWalker {
	return &tarWalker{tr: tar.NewReader(src), closer: closer, fileType: fileType}
}

// tarWalker is a walker for tar files
type tarWalker struct {
	tr       *tar.Reader
	closer   io.Closer
	fileType string
}

// Type returns the file type, including the compression
func (t *tarWalker) Type() string {
	return t.fileType
}

// Next returns the next entry in the tar archive. Global pax headers, as
// written by git archive, carry no content and are skipped.
func (t *tarWalker) Next() (archiveEntry, error) {
	for {
		hdr, err := t.tr.Next()
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		return &tarEntry{hdr, t.tr}, nil
	}
}

// Close closes the decompressor, if any
func (t *tarWalker) Close() error {
	if t.closer == nil {
		return nil
	}
	return t.closer.Close()
}

// tarEntry is an entry in a tar archive
type tarEntry struct {
	hdr *tar.Header
	tr  *tar.Reader
}

// Name returns the name of the entry
func (t *tarEntry) Name() string {
	return t.hdr.Name
}

// Size returns the size of the entry
func (t *tarEntry) Size() int64 {
	return t.hdr.Size
}

// Mode returns the mode of the entry
func (t *tarEntry) Mode() fs.FileMode {
	return t.hdr.FileInfo().Mode()
}

// IsRegular returns true if the entry is a regular file
func (t *tarEntry) IsRegular() bool {
	return t.hdr.Typeflag == tar.TypeReg
}

// IsDir returns true if the entry is a directory
func (t *tarEntry) IsDir() bool {
	return t.hdr.Typeflag == tar.TypeDir
}

// Open returns a reader for the entry. The content is only readable until
// the walker moves to the next entry.
func (t *tarEntry) Open() (io.ReadCloser, error) {
	return io.NopCloser(t.tr), nil
}
