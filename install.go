// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
)

// Install unpacks the archive of src into the directory dst on the local disk.
// See [InstallTo] for details.
func Install(ctx context.Context, src Source, dst string, cfg *Config) error {
	return InstallTo(ctx, NewTargetDisk(), src, dst, cfg)
}

// InstallTo unpacks the archive of src into the directory dst on t.
//
// A missing dst is created, its parent must exist. An existing dst with
// content is only overwritten if cfg.Force() is set, then all content is
// removed first. The archive is staged into a temporary file, which is removed
// before InstallTo returns. Entries that cannot be written are logged and
// skipped as long as cfg.ContinueOnError() is set.
//
// A nil cfg is replaced by [NewConfig].
func InstallTo(ctx context.Context, t Target, src Source, dst string, cfg *Config) error {
	if cfg == nil {
		cfg = NewConfig()
	}

	// prepare telemetry data collection and emit
	td := &TelemetryData{}
	defer cfg.TelemetryHook()(ctx, td)
	defer captureExtractionDuration(td, now())

	if err := install(ctx, t, src, dst, cfg, td); err != nil {
		td.LastExtractionError = err
		cfg.Logger().Error("installation failed", "dst", dst, "error", err)
		return err
	}

	cfg.Logger().Info("installation finished", "dst", dst, "type", td.ExtractedType,
		"files", td.ExtractedFiles, "dirs", td.ExtractedDirs, "errors", td.ExtractionErrors)
	return nil
}

func install(ctx context.Context, t Target, src Source, dst string, cfg *Config, td *TelemetryData) error {
	if len(dst) > 0 {
		dst = filepath.Clean(dst)
	}

	// check destination, nothing is changed on error
	nonEmpty, err := prepareDestination(t, dst, cfg)
	if err != nil {
		return err
	}

	// the atomic mode cleans after the replay succeeded
	if nonEmpty && !cfg.Atomic() {
		if err := cleanDestination(t, dst, cfg, td); err != nil {
			return err
		}
	}

	// stage archive
	staged, err := stage(ctx, src, cfg, td)
	if err != nil {
		return err
	}
	defer func() {
		if err := staged.Close(); err != nil {
			cfg.Logger().Warn("cannot remove staged archive", "staged", staged.Name(), "error", err)
		}
	}()

	// open archive
	walker, err := openArchive(staged)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrArchiveOpen, src.Name(), err)
	}
	defer walker.Close()
	td.ExtractedType = walker.Type()
	cfg.Logger().Info("start installation", "name", src.Name(), "type", walker.Type(), "dst", dst)

	if cfg.Atomic() {
		return installAtomic(ctx, t, dst, walker, nonEmpty, cfg, td)
	}
	return replay(ctx, t, dst, walker, cfg.ContinueOnError(), cfg, td)
}

// handleError increases the error counter, sets the latest error and
// decides if the installation should continue.
func handleError(cfg *Config, td *TelemetryData, continueOnError bool, msg string, err error) error {

	// increase error counter and set error
	td.ExtractionErrors++
	td.LastExtractionError = fmt.Errorf("%s: %w", msg, err)

	// do not end on error
	if continueOnError {
		cfg.Logger().Error(msg, "error", err)
		return nil
	}

	// end installation on error
	return td.LastExtractionError
}

// replay writes every entry of src below dst. Parent directories are created
// before the first file inside them, regardless of the entry order.
func replay(ctx context.Context, t Target, dst string, src archiveWalker, continueOnError bool, cfg *Config, td *TelemetryData) error {
	var objectCounter int64
	var extractedBytes int64

	for {
		// check if context is canceled
		if err := ctx.Err(); err != nil {
			return err
		}

		// get next entry
		ae, err := src.Next()
		switch {

		// if no more entries are found exit loop
		case err == io.EOF:
			return nil

		// a broken archive cannot be continued
		case err != nil:
			return fmt.Errorf("%w: cannot read next entry: %w", ErrArchiveOpen, err)

		case ae == nil:
			continue
		}

		// check if maximum of objects is exceeded
		objectCounter++
		if err := cfg.CheckMaxFiles(objectCounter); err != nil {
			return err
		}

		cfg.Logger().Info("extract", "name", ae.Name())
		name, err := entryPath(ae.Name())
		if err != nil {
			if err := handleError(cfg, td, continueOnError, "skip unsafe entry", err); err != nil {
				return err
			}
			continue
		}

		switch {

		// destination itself, e.g. "./" in tar archives
		case name == ".":
			continue

		// materialize directory, also when empty
		case ae.IsDir():
			if err := createDir(t, dst, name, cfg); err != nil {
				if err := handleError(cfg, td, continueOnError, "failed to create directory", err); err != nil {
					return err
				}
				continue
			}
			td.ExtractedDirs++

		// write file
		case ae.IsRegular():

			// check extraction size
			if err := cfg.CheckExtractionSize(extractedBytes + ae.Size()); err != nil {
				return err
			}

			n, err := writeEntry(t, dst, name, ae, remaining(cfg, extractedBytes), cfg)
			extractedBytes += n
			td.ExtractionSize = extractedBytes
			if err != nil {
				// the announced size was wrong
				if errors.Is(err, io.ErrShortWrite) {
					return fmt.Errorf("%w: %s", ErrMaxExtractionSizeExceeded, ae.Name())
				}
				if err := handleError(cfg, td, continueOnError, "failed to create file", err); err != nil {
					return err
				}
				continue
			}
			td.ExtractedFiles++

		// symlinks, devices, fifos
		default:
			td.SkippedEntries++
			cfg.Logger().Info("skip entry", "name", ae.Name(),
				"reason", fmt.Errorf("%w: %s", ErrUnsupportedEntry, ae.Mode().Type()))
		}
	}
}

// writeEntry copies the content of ae into the file name below dst
func writeEntry(t Target, dst string, name string, ae archiveEntry, maxSize int64, cfg *Config) (int64, error) {
	fin, err := ae.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open entry: %w", err)
	}
	defer fin.Close()
	return createFile(t, dst, name, fin, cfg.CustomFileMode(), maxSize, cfg)
}

// remaining returns the number of bytes that may still be extracted, -1 for unlimited
func remaining(cfg *Config, extracted int64) int64 {
	if cfg.MaxExtractionSize() == -1 {
		return -1
	}
	return cfg.MaxExtractionSize() - extracted
}
