// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"compress/gzip"
	"fmt"
	"io"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// decompressionFunc starts a decompression of src. The returned reader may
// implement io.Closer.
type decompressionFunc func(io.Reader) (io.Reader, error)

// compression describes a stream compression that may wrap a tar archive.
type compression struct {
	FileExtension string
	MagicBytes    [][]byte
	Decompress    decompressionFunc
}

const (
	fileExtensionBzip2  = "bz2"
	fileExtensionGZip   = "gz"
	fileExtensionLZ4    = "lz4"
	fileExtensionSnappy = "sz"
	fileExtensionXz     = "xz"
	fileExtensionZstd   = "zst"
)

var (
	magicBytesBzip2 = [][]byte{
		[]byte("BZh1"),
		[]byte("BZh2"),
		[]byte("BZh3"),
		[]byte("BZh4"),
		[]byte("BZh5"),
		[]byte("BZh6"),
		[]byte("BZh7"),
		[]byte("BZh8"),
		[]byte("BZh9"),
	}

	// https://socketloop.com/tutorials/golang-gunzip-file
	magicBytesGZip = [][]byte{
		{0x1f, 0x8b},
	}

	// https://github.com/lz4/lz4/blob/dev/doc/lz4_Frame_format.md
	magicBytesLZ4 = [][]byte{
		{0x04, 0x22, 0x4D, 0x18},
	}

	// https://github.com/google/snappy/blob/main/framing_format.txt
	magicBytesSnappy = [][]byte{
		append([]byte{0xff, 0x06, 0x00, 0x00}, []byte("sNaPpY")...),
	}

	// https://tukaani.org/xz/xz-file-format.txt
	magicBytesXz = [][]byte{
		{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00},
	}

	// https://datatracker.ietf.org/doc/html/rfc8878#section-3.1.1
	magicBytesZstd = [][]byte{
		{0x28, 0xb5, 0x2f, 0xfd},
	}
)

// compressions lists all stream compressions that are accepted around a tar archive
var compressions = []compression{
	{fileExtensionBzip2, magicBytesBzip2, decompressBzip2Stream},
	{fileExtensionGZip, magicBytesGZip, decompressGZipStream},
	{fileExtensionLZ4, magicBytesLZ4, decompressLZ4Stream},
	{fileExtensionSnappy, magicBytesSnappy, decompressSnappyStream},
	{fileExtensionXz, magicBytesXz, decompressXzStream},
	{fileExtensionZstd, magicBytesZstd, decompressZstdStream},
}

// findCompression returns the compression that matches header
func findCompression(header []byte) (compression, bool) {
	for _, c := range compressions {
		if matchesMagicBytes(header, 0, c.MagicBytes) {
			return c, true
		}
	}
	return compression{}, false
}

func decompressBzip2Stream(src io.Reader) (io.Reader, error) {
	return bzip2.NewReader(src, &bzip2.ReaderConfig{})
}

func decompressGZipStream(src io.Reader) (io.Reader, error) {
	return gzip.NewReader(src)
}

func decompressLZ4Stream(src io.Reader) (io.Reader, error) {
	return lz4.NewReader(src), nil
}

func decompressSnappyStream(src io.Reader) (io.Reader, error) {
	return snappy.NewReader(src), nil
}

func decompressXzStream(src io.Reader) (io.Reader, error) {
	return xz.NewReader(src)
}

func decompressZstdStream(src io.Reader) (io.Reader, error) {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// openCompressedTar starts the decompression of src and verifies that the
// decompressed stream is a tar archive. Other payloads are rejected, a bundle
// always carries a directory tree.
func openCompressedTar(src io.Reader, c compression) (*tarWalker, error) {
	stream, err := c.Decompress(src)
	if err != nil {
		return nil, fmt.Errorf("cannot start %s decompression: %w", c.FileExtension, err)
	}
	closer, _ := stream.(io.Closer)

	// peek into the decompressed stream
	hr, err := newHeaderReader(stream, maxHeaderLength)
	if err != nil {
		closeQuietly(closer)
		return nil, err
	}
	if !isTar(hr.PeekHeader()) {
		closeQuietly(closer)
		return nil, fmt.Errorf("%w: %s stream does not contain a tar archive", ErrUnsupportedArchive, c.FileExtension)
	}

	return newTarWalker(hr, closer, fmt.Sprintf("%s.%s", fileExtensionTar, c.FileExtension)), nil
}

func closeQuietly(c io.Closer) {
	if c != nil {
		c.Close()
	}
}

// headerReader allows the first bytes of the reader to be read twice. This is
// used to identify the payload of a compressed stream before unpacking.
type headerReader struct {
	r      io.Reader
	header []byte
}

// newHeaderReader reads up to headerSize bytes from r. A shorter stream is
// not an error, the header holds whatever was read.
func newHeaderReader(r io.Reader, headerSize int) (*headerReader, error) {
	buf := make([]byte, headerSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	return &headerReader{r: r, header: buf[:n]}, nil
}

func (p *headerReader) Read(b []byte) (int, error) {
	// replay the header first
	if len(p.header) > 0 {
		n := copy(b, p.header)
		p.header = p.header[n:]
		return n, nil
	}
	return p.r.Read(b)
}

// PeekHeader returns the bytes that were not yet replayed
func (p *headerReader) PeekHeader() []byte {
	return p.header
}
