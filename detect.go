// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"bytes"
	"fmt"
	"io"
)

// maxHeaderLength is the number of bytes that are needed to identify every
// supported format
var maxHeaderLength int

// init calculates the maximum header length
func init() {
	needs := func(offset int, magicBytes [][]byte) {
		for _, mb := range magicBytes {
			if len(mb)+offset > maxHeaderLength {
				maxHeaderLength = len(mb) + offset
			}
		}
	}
	needs(0, magicBytesZip)
	needs(offsetTar, magicBytesTar)
	for _, c := range compressions {
		needs(0, c.MagicBytes)
	}
}

// matchesMagicBytes checks if data contains one of magicBytes at offset
func matchesMagicBytes(data []byte, offset int, magicBytes [][]byte) bool {
	// check all possible magic bytes until match is found
	for _, mb := range magicBytes {
		// check if header is long enough
		if offset+len(mb) > len(data) {
			continue
		}

		// check for byte match
		if bytes.Equal(mb, data[offset:offset+len(mb)]) {
			return true
		}
	}

	// no match found
	return false
}

// openArchive identifies the format of the staged archive by its magic bytes
// and returns a walker over its entries.
func openArchive(s *stagedArchive) (archiveWalker, error) {
	header := make([]byte, maxHeaderLength)
	n, err := s.ReadAt(header, 0)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("cannot read header: %w", err)
	}
	header = header[:n]

	switch {
	case isZip(header):
		zw, err := openZip(s, s.Size())
		if err != nil {
			return nil, err
		}
		return zw, nil
	case isTar(header):
		return newTarWalker(s.Reader(), nil, fileExtensionTar), nil
	}

	if c, ok := findCompression(header); ok {
		tw, err := openCompressedTar(s.Reader(), c)
		if err != nil {
			return nil, err
		}
		return tw, nil
	}

	return nil, ErrUnsupportedArchive
}
