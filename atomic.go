// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// sideDirectory returns a unique hidden sibling of dst. dst must be absolute,
// otherwise "." or "x/.." would place the sibling inside dst.
func sideDirectory(dst string) (string, error) {
	parent := filepath.Dir(dst)
	if parent == dst {
		return "", fmt.Errorf("destination %s has no parent for a side directory", dst)
	}
	name := fmt.Sprintf(".%s.unbundle-%s", filepath.Base(dst), uuid.NewString())
	return filepath.Join(parent, name), nil
}

// installAtomic replays all entries into a side directory next to dst. Any
// entry failure aborts the installation before dst is touched. Afterwards dst
// is cleaned, if needed, and the top level entries of the side directory are
// moved into dst. The side directory is always removed.
func installAtomic(ctx context.Context, t Target, dst string, src archiveWalker, nonEmpty bool, cfg *Config, td *TelemetryData) error {
	dst, err := filepath.Abs(dst)
	if err != nil {
		return fmt.Errorf("cannot resolve destination: %w", err)
	}
	side, err := sideDirectory(dst)
	if err != nil {
		return err
	}
	if err := t.Mkdir(side, cfg.CustomCreateDirMode()); err != nil {
		return fmt.Errorf("cannot create side directory: %w", err)
	}
	defer func() {
		if err := t.RemoveAll(side); err != nil {
			cfg.Logger().Warn("cannot remove side directory", "path", side, "error", err)
		}
	}()
	cfg.Logger().Debug("replay into side directory", "path", side)

	// replay, every failure is terminal
	if err := replay(ctx, t, side, src, false, cfg, td); err != nil {
		return err
	}

	// archive is complete, now change the destination
	if nonEmpty {
		if err := cleanDestination(t, dst, cfg, td); err != nil {
			return err
		}
	}

	entries, err := t.ReadDir(side)
	if err != nil {
		return fmt.Errorf("cannot list side directory: %w", err)
	}
	for _, e := range entries {
		from := filepath.Join(side, e.Name())
		to := filepath.Join(dst, e.Name())

		// left over after a failed clean
		if err := t.RemoveAll(to); err != nil {
			return fmt.Errorf("cannot replace %s: %w", to, err)
		}
		if err := t.Rename(from, to); err != nil {
			return fmt.Errorf("cannot move %s into destination: %w", e.Name(), err)
		}
	}
	return nil
}
