// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/hashicorp/go-multierror"
)

// prepareDestination resolves dst. A missing destination is created as a
// single directory. It returns true if dst holds entries that need to be
// removed before the archive is installed, which is only allowed for a forced
// installation. Nothing is changed if an error is returned.
func prepareDestination(t Target, dst string, cfg *Config) (bool, error) {
	if len(dst) == 0 {
		return false, fmt.Errorf("%w: empty path", ErrDestinationCreate)
	}

	// create missing destination, parents are not created
	info, err := t.Stat(dst)
	if errors.Is(err, fs.ErrNotExist) {
		if err := t.Mkdir(dst, cfg.CustomCreateDirMode()); err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrDestinationCreate, dst, err)
		}
		cfg.Logger().Info("created destination directory", "dst", dst)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cannot inspect destination %s: %w", dst, err)
	}
	if !info.IsDir() {
		return false, fmt.Errorf("%w: %s", ErrDestinationNotDirectory, dst)
	}

	// check for existing content
	entries, err := t.ReadDir(dst)
	if err != nil {
		return false, fmt.Errorf("cannot list destination %s: %w", dst, err)
	}
	if len(entries) == 0 {
		return false, nil
	}
	if !cfg.Force() {
		cfg.Logger().Info("destination is not empty, use force to overwrite", "dst", dst, "entries", len(entries))
		return true, fmt.Errorf("%w: %s", ErrDestinationNotEmpty, dst)
	}
	return true, nil
}

// cleanDestination removes every child of dst. Failures are collected and,
// unless cfg.AbortOnCleanError() is set, logged as warning while the
// installation continues.
func cleanDestination(t Target, dst string, cfg *Config, td *TelemetryData) error {
	var result *multierror.Error

	entries, err := t.ReadDir(dst)
	if err != nil {
		result = multierror.Append(result, err)
	}
	for _, e := range entries {
		path := filepath.Join(dst, e.Name())
		if err := t.RemoveAll(path); err != nil {
			td.CleanErrors++
			result = multierror.Append(result, fmt.Errorf("cannot remove %s: %w", path, err))
			continue
		}
		cfg.Logger().Debug("removed", "path", path)
		td.CleanedEntries++
	}

	if err := result.ErrorOrNil(); err != nil {
		if cfg.AbortOnCleanError() {
			return fmt.Errorf("%w: %w", ErrDestinationClean, err)
		}
		cfg.Logger().Warn("cannot clean destination, continue with installation", "dst", dst, "error", err)
		return nil
	}

	cfg.Logger().Info("cleaned destination", "dst", dst, "entries", td.CleanedEntries)
	return nil
}
