// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/afero"
)

// stagingPattern is the name pattern of the temporary archive file
const stagingPattern = "unbundle-*.war"

// stagedArchive is a random access copy of the bundled archive. Close releases
// the copy, a temporary file is removed.
type stagedArchive struct {
	ra      io.ReaderAt
	size    int64
	name    string
	cleanup func() error
}

// ReadAt implements io.ReaderAt
func (s *stagedArchive) ReadAt(p []byte, off int64) (int, error) {
	return s.ra.ReadAt(p, off)
}

// Reader returns a new stream over the whole archive
func (s *stagedArchive) Reader() io.Reader {
	return io.NewSectionReader(s.ra, 0, s.size)
}

// Size returns the number of staged bytes
func (s *stagedArchive) Size() int64 {
	return s.size
}

// Name returns the path of the temporary file, empty if staged in memory
func (s *stagedArchive) Name() string {
	return s.name
}

// Close removes the staged copy
func (s *stagedArchive) Close() error {
	if s.cleanup == nil {
		return nil
	}
	return s.cleanup()
}

// captureInputSize captures the input size of the installation
func captureInputSize(td *TelemetryData, ler *limitErrorReader) {
	td.InputSize = ler.ReadBytes()
}

// stage copies the archive of src byte for byte into a temporary file on the
// staging filesystem, or into memory if configured. The input is limited to
// cfg.MaxInputSize(). On error nothing is left behind.
func stage(ctx context.Context, src Source, cfg *Config, td *TelemetryData) (*stagedArchive, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStaging, err)
	}

	rc, err := src.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrStaging, src.Name(), err)
	}
	defer rc.Close()

	ler := newLimitErrorReader(rc, cfg.MaxInputSize())
	defer captureInputSize(td, ler)

	// stage in memory
	if cfg.CacheInMemory() {
		b, err := io.ReadAll(ler)
		if err != nil {
			return nil, fmt.Errorf("%w: cannot read %s: %w", ErrStaging, src.Name(), err)
		}
		cfg.Logger().Debug("staged archive in memory", "name", src.Name(), "size", len(b))
		return &stagedArchive{ra: bytes.NewReader(b), size: int64(len(b))}, nil
	}

	// create temp file
	sfs := cfg.StagingFs()
	tmpFile, err := afero.TempFile(sfs, cfg.StagingDir(), stagingPattern)
	if err != nil {
		return nil, fmt.Errorf("%w: cannot create temporary file: %w", ErrStaging, err)
	}
	remove := func() error {
		tmpFile.Close()
		return sfs.Remove(tmpFile.Name())
	}

	// copy reader to temp file
	n, err := io.Copy(tmpFile, ler)
	if err != nil {
		remove()
		return nil, fmt.Errorf("%w: cannot copy %s: %w", ErrStaging, src.Name(), err)
	}

	cfg.Logger().Debug("staged archive", "name", src.Name(), "staged", tmpFile.Name(), "size", n)
	return &stagedArchive{ra: tmpFile, size: n, name: tmpFile.Name(), cleanup: remove}, nil
}
