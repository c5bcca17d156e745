// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hashicorp/go-unbundle"
	"github.com/hashicorp/go-unbundle/mocks"
)

func TestInstallWebApplication(t *testing.T) {
	target := unbundle.NewTargetMemory()
	cfg, staging := memoryConfig()

	err := unbundle.InstallTo(context.Background(), target, source(zipArchive(t, warEntries)), "/out", cfg)
	require.NoError(t, err)

	assert.Equal(t, []string{"WEB-INF/", "WEB-INF/web.xml", "index.html"}, tree(t, target.Fs(), "/out"))
	assert.Equal(t, "<web-app/>", readFile(t, target.Fs(), "/out/WEB-INF/web.xml"))
	assert.Equal(t, "<html></html>", readFile(t, target.Fs(), "/out/index.html"))
	assert.Empty(t, stagedFiles(t, staging))
}

func TestInstallExactEntrySet(t *testing.T) {
	entries := []testEntry{
		{name: "META-INF/", dir: true},
		{name: "META-INF/MANIFEST.MF", content: "Manifest-Version: 1.0"},
		{name: "WEB-INF/classes/", dir: true},
		{name: "WEB-INF/lib/", dir: true},
		{name: "WEB-INF/lib/app.jar", content: "jar"},
		{name: "static/css/site.css", content: "body{}"},
		{name: "empty/", dir: true},
	}

	tests := []struct {
		name    string
		archive []byte
	}{
		{name: "zip", archive: zipArchive(t, entries)},
		{name: "tar", archive: tarArchive(t, entries)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			target := unbundle.NewTargetMemory()
			cfg, _ := memoryConfig()
			require.NoError(t, unbundle.InstallTo(context.Background(), target, source(test.archive), "/out", cfg))
			assert.Equal(t, entryNames(entries), tree(t, target.Fs(), "/out"))
		})
	}
}

func TestInstallFormats(t *testing.T) {
	plain := tarArchive(t, warEntries)

	tests := []struct {
		name         string
		archive      []byte
		expectedType string
	}{
		{name: "zip", archive: zipArchive(t, warEntries), expectedType: "zip"},
		{name: "tar", archive: plain, expectedType: "tar"},
		{name: "tar.gz", archive: compress(t, "gz", plain), expectedType: "tar.gz"},
		{name: "tar.bz2", archive: compress(t, "bz2", plain), expectedType: "tar.bz2"},
		{name: "tar.lz4", archive: compress(t, "lz4", plain), expectedType: "tar.lz4"},
		{name: "tar.sz", archive: compress(t, "sz", plain), expectedType: "tar.sz"},
		{name: "tar.xz", archive: compress(t, "xz", plain), expectedType: "tar.xz"},
		{name: "tar.zst", archive: compress(t, "zst", plain), expectedType: "tar.zst"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var td *unbundle.TelemetryData
			hook := func(ctx context.Context, d *unbundle.TelemetryData) { td = d }
			target := unbundle.NewTargetMemory()
			cfg, _ := memoryConfig(unbundle.WithTelemetryHook(hook))

			require.NoError(t, unbundle.InstallTo(context.Background(), target, source(test.archive), "/out", cfg))
			assert.Equal(t, []string{"WEB-INF/", "WEB-INF/web.xml", "index.html"}, tree(t, target.Fs(), "/out"))
			require.NotNil(t, td)
			assert.Equal(t, test.expectedType, td.ExtractedType)
			assert.Equal(t, int64(2), td.ExtractedFiles)
			assert.Equal(t, int64(1), td.ExtractedDirs)
			assert.Equal(t, int64(len(test.archive)), td.InputSize)
		})
	}
}

func TestInstallNonEmptyDestination(t *testing.T) {
	archive := zipArchive(t, warEntries)

	t.Run("not forced", func(t *testing.T) {
		target := unbundle.NewTargetMemory()
		require.NoError(t, afero.WriteFile(target.Fs(), "/out/stale.txt", []byte("stale"), 0644))
		cfg, staging := memoryConfig()

		err := unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrDestinationNotEmpty)

		assert.Equal(t, []string{"stale.txt"}, tree(t, target.Fs(), "/out"))
		assert.Equal(t, "stale", readFile(t, target.Fs(), "/out/stale.txt"))
		assert.Empty(t, stagedFiles(t, staging))
	})

	t.Run("forced", func(t *testing.T) {
		target := unbundle.NewTargetMemory()
		require.NoError(t, afero.WriteFile(target.Fs(), "/out/stale.txt", []byte("stale"), 0644))
		require.NoError(t, afero.WriteFile(target.Fs(), "/out/old/lib/a.jar", []byte("a"), 0644))
		require.NoError(t, afero.WriteFile(target.Fs(), "/out/index.html", []byte("old"), 0644))
		cfg, _ := memoryConfig(unbundle.WithForce(true))

		require.NoError(t, unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg))
		assert.Equal(t, []string{"WEB-INF/", "WEB-INF/web.xml", "index.html"}, tree(t, target.Fs(), "/out"))
		assert.Equal(t, "<html></html>", readFile(t, target.Fs(), "/out/index.html"))
	})
}

func TestInstallForcedTwice(t *testing.T) {
	archive := tarArchive(t, warEntries)
	target := unbundle.NewTargetMemory()

	cfg, _ := memoryConfig(unbundle.WithForce(true))
	require.NoError(t, unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg))
	first := tree(t, target.Fs(), "/out")

	require.NoError(t, unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg))
	assert.Equal(t, first, tree(t, target.Fs(), "/out"))
}

func TestInstallFileBeforeDirectoryEntry(t *testing.T) {
	entries := []testEntry{
		{name: "WEB-INF/classes/App.class", content: "class"},
		{name: "WEB-INF/", dir: true},
		{name: "WEB-INF/classes/", dir: true},
	}

	for name, archive := range map[string][]byte{"zip": zipArchive(t, entries), "tar": tarArchive(t, entries)} {
		t.Run(name, func(t *testing.T) {
			target := unbundle.NewTargetMemory()
			cfg, _ := memoryConfig()
			require.NoError(t, unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg))
			assert.Equal(t, []string{"WEB-INF/", "WEB-INF/classes/", "WEB-INF/classes/App.class"}, tree(t, target.Fs(), "/out"))
		})
	}
}

func TestInstallDestination(t *testing.T) {
	archive := zipArchive(t, warEntries)

	t.Run("not a directory", func(t *testing.T) {
		target := unbundle.NewTargetMemory()
		require.NoError(t, afero.WriteFile(target.Fs(), "/out", []byte("file"), 0644))
		cfg, _ := memoryConfig(unbundle.WithForce(true))

		err := unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrDestinationNotDirectory)
		assert.Equal(t, "file", readFile(t, target.Fs(), "/out"))
	})

	t.Run("missing parent", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "missing", "out")
		cfg, _ := memoryConfig()

		err := unbundle.Install(context.Background(), source(archive), dst, cfg)
		require.ErrorIs(t, err, unbundle.ErrDestinationCreate)
		_, err = os.Stat(filepath.Dir(dst))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("empty path", func(t *testing.T) {
		err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(archive), "", nil)
		require.ErrorIs(t, err, unbundle.ErrDestinationCreate)
	})

	t.Run("existing empty directory on disk", func(t *testing.T) {
		dst := t.TempDir()
		cfg, _ := memoryConfig()

		require.NoError(t, unbundle.Install(context.Background(), source(archive), dst, cfg))
		assert.Equal(t, []string{"WEB-INF/", "WEB-INF/web.xml", "index.html"}, tree(t, afero.NewOsFs(), dst))
	})
}

func TestInstallStaging(t *testing.T) {
	archive := zipArchive(t, warEntries)

	t.Run("temporary file is removed after success", func(t *testing.T) {
		staging := t.TempDir()
		cfg := unbundle.NewConfig(unbundle.WithStagingDir(staging))
		require.NoError(t, unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(archive), "/out", cfg))

		entries, err := os.ReadDir(staging)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("temporary file is removed after failure", func(t *testing.T) {
		staging := t.TempDir()
		cfg := unbundle.NewConfig(unbundle.WithStagingDir(staging))
		err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source([]byte("no archive at all")), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrArchiveOpen)
		require.ErrorIs(t, err, unbundle.ErrUnsupportedArchive)

		entries, err := os.ReadDir(staging)
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("missing staging directory", func(t *testing.T) {
		cfg := unbundle.NewConfig(unbundle.WithStagingDir(filepath.Join(t.TempDir(), "missing")))
		err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(archive), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrStaging)
	})

	t.Run("in memory", func(t *testing.T) {
		target := unbundle.NewTargetMemory()
		cfg, staging := memoryConfig(unbundle.WithCacheInMemory(true))
		require.NoError(t, unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg))
		assert.Equal(t, []string{"WEB-INF/", "WEB-INF/web.xml", "index.html"}, tree(t, target.Fs(), "/out"))
		assert.Empty(t, stagedFiles(t, staging))
	})

	t.Run("source cannot be opened", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		src := mocks.NewMockSource(ctrl)
		src.EXPECT().Open().Return(nil, errors.New("resource not found"))
		src.EXPECT().Name().Return("target.war").AnyTimes()

		target := unbundle.NewTargetMemory()
		cfg, staging := memoryConfig()
		err := unbundle.InstallTo(context.Background(), target, src, "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrStaging)
		assert.Empty(t, stagedFiles(t, staging))
	})

	t.Run("truncated archive", func(t *testing.T) {
		cfg, staging := memoryConfig()
		err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(archive[:len(archive)/2]), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrArchiveOpen)
		assert.Empty(t, stagedFiles(t, staging))
	})

	t.Run("compressed payload is not a tar archive", func(t *testing.T) {
		cfg, _ := memoryConfig()
		err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(compress(t, "gz", []byte("plain text"))), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrUnsupportedArchive)
	})
}

func TestInstallLimits(t *testing.T) {
	archive := zipArchive(t, warEntries)

	tests := []struct {
		name        string
		opts        []unbundle.ConfigOption
		expectedErr error
	}{
		{name: "max files", opts: []unbundle.ConfigOption{unbundle.WithMaxFiles(2)}, expectedErr: unbundle.ErrMaxFilesExceeded},
		{name: "max files disabled", opts: []unbundle.ConfigOption{unbundle.WithMaxFiles(-1)}},
		{name: "max extraction size", opts: []unbundle.ConfigOption{unbundle.WithMaxExtractionSize(12)}, expectedErr: unbundle.ErrMaxExtractionSizeExceeded},
		{name: "max extraction size exact", opts: []unbundle.ConfigOption{unbundle.WithMaxExtractionSize(23)}},
		{name: "max input size", opts: []unbundle.ConfigOption{unbundle.WithMaxInputSize(int64(len(archive) - 1))}, expectedErr: unbundle.ErrMaxInputSizeExceeded},
		{name: "max input size exact", opts: []unbundle.ConfigOption{unbundle.WithMaxInputSize(int64(len(archive)))}},
		{name: "max input size in memory", opts: []unbundle.ConfigOption{unbundle.WithCacheInMemory(true), unbundle.WithMaxInputSize(10)}, expectedErr: unbundle.ErrMaxInputSizeExceeded},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg, staging := memoryConfig(test.opts...)
			err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(archive), "/out", cfg)
			if test.expectedErr == nil {
				require.NoError(t, err)
			} else {
				require.ErrorIs(t, err, test.expectedErr)
			}
			assert.Empty(t, stagedFiles(t, staging))
		})
	}
}

func TestInstallEntryErrors(t *testing.T) {
	entries := []testEntry{
		{name: "../evil.txt", content: "evil"},
		{name: "index.html", content: "<html></html>"},
	}

	t.Run("continue on error", func(t *testing.T) {
		var td *unbundle.TelemetryData
		target := unbundle.NewTargetMemory()
		cfg, _ := memoryConfig(unbundle.WithTelemetryHook(func(ctx context.Context, d *unbundle.TelemetryData) { td = d }))

		require.NoError(t, unbundle.InstallTo(context.Background(), target, source(tarArchive(t, entries)), "/out", cfg))
		assert.Equal(t, []string{"index.html"}, tree(t, target.Fs(), "/out"))
		exists, err := afero.Exists(target.Fs(), "/evil.txt")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NotNil(t, td)
		assert.Equal(t, int64(1), td.ExtractionErrors)
		assert.ErrorIs(t, td.LastExtractionError, unbundle.ErrUnsafeEntry)
	})

	t.Run("stop on error", func(t *testing.T) {
		cfg, _ := memoryConfig(unbundle.WithContinueOnError(false))
		err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(tarArchive(t, entries)), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrUnsafeEntry)
	})

	t.Run("absolute entry", func(t *testing.T) {
		cfg, _ := memoryConfig(unbundle.WithContinueOnError(false))
		archive := tarArchive(t, []testEntry{{name: "/etc/passwd", content: "root"}})
		err := unbundle.InstallTo(context.Background(), unbundle.NewTargetMemory(), source(archive), "/out", cfg)
		require.ErrorIs(t, err, unbundle.ErrUnsafeEntry)
	})

	t.Run("symlinks are skipped", func(t *testing.T) {
		var td *unbundle.TelemetryData
		var logs bytes.Buffer
		target := unbundle.NewTargetMemory()
		cfg, _ := memoryConfig(
			unbundle.WithTelemetryHook(func(ctx context.Context, d *unbundle.TelemetryData) { td = d }),
			unbundle.WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
		)
		archive := tarArchive(t, []testEntry{
			{name: "index.html", content: "<html></html>"},
			{name: "home.html", link: "index.html"},
		})

		require.NoError(t, unbundle.InstallTo(context.Background(), target, source(archive), "/out", cfg))
		assert.Equal(t, []string{"index.html"}, tree(t, target.Fs(), "/out"))
		require.NotNil(t, td)
		assert.Equal(t, int64(1), td.SkippedEntries)
		assert.Equal(t, int64(0), td.ExtractionErrors)
		assert.Contains(t, logs.String(), "name=home.html")
		assert.Contains(t, logs.String(), unbundle.ErrUnsupportedEntry.Error())
	})
}

// brokenTarget fails to write the files named in broken
type brokenTarget struct {
	*unbundle.TargetFs
	broken map[string]bool
}

func (b *brokenTarget) CreateFile(path string, src io.Reader, mode fs.FileMode, overwrite bool, maxSize int64) (int64, error) {
	if b.broken[filepath.Base(path)] {
		return 0, errors.New("no space left on device")
	}
	return b.TargetFs.CreateFile(path, src, mode, overwrite, maxSize)
}

func TestInstallWriteErrors(t *testing.T) {
	entries := []testEntry{
		{name: "a.txt", content: "a"},
		{name: "WEB-INF/broken.txt", content: "broken"},
		{name: "WEB-INF/web.xml", content: "<web-app/>"},
		{name: "z.txt", content: "z"},
	}

	t.Run("continue on error", func(t *testing.T) {
		var td *unbundle.TelemetryData
		mem := unbundle.NewTargetMemory()
		target := &brokenTarget{TargetFs: mem, broken: map[string]bool{"broken.txt": true}}
		cfg, staging := memoryConfig(unbundle.WithTelemetryHook(func(ctx context.Context, d *unbundle.TelemetryData) { td = d }))

		require.NoError(t, unbundle.InstallTo(context.Background(), target, source(zipArchive(t, entries)), "/out", cfg))
		assert.Equal(t, []string{"WEB-INF/", "WEB-INF/web.xml", "a.txt", "z.txt"}, tree(t, mem.Fs(), "/out"))
		assert.Equal(t, "z", readFile(t, mem.Fs(), "/out/z.txt"))
		assert.Empty(t, stagedFiles(t, staging))

		require.NotNil(t, td)
		assert.Equal(t, int64(1), td.ExtractionErrors)
		assert.Equal(t, int64(3), td.ExtractedFiles)
		assert.ErrorContains(t, td.LastExtractionError, "no space left on device")
	})

	t.Run("stop on error", func(t *testing.T) {
		mem := unbundle.NewTargetMemory()
		target := &brokenTarget{TargetFs: mem, broken: map[string]bool{"broken.txt": true}}
		cfg, _ := memoryConfig(unbundle.WithContinueOnError(false))

		err := unbundle.InstallTo(context.Background(), target, source(tarArchive(t, entries)), "/out", cfg)
		require.ErrorContains(t, err, "no space left on device")
		exists, err := afero.Exists(mem.Fs(), "/out/z.txt")
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

func TestInstallCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := unbundle.NewTargetMemory()
	cfg, staging := memoryConfig()
	err := unbundle.InstallTo(ctx, target, source(zipArchive(t, warEntries)), "/out", cfg)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, stagedFiles(t, staging))
}

func TestInstallEmbedded(t *testing.T) {
	bundle := fstest.MapFS{
		"bundle/target.war": &fstest.MapFile{Data: zipArchive(t, warEntries)},
	}
	target := unbundle.NewTargetMemory()
	cfg, _ := memoryConfig()

	src := unbundle.NewEmbeddedSource(bundle, "bundle/target.war")
	require.NoError(t, unbundle.InstallTo(context.Background(), target, src, "/out", cfg))
	assert.Equal(t, []string{"WEB-INF/", "WEB-INF/web.xml", "index.html"}, tree(t, target.Fs(), "/out"))
}

func TestInstallTelemetry(t *testing.T) {
	var calls int
	var td *unbundle.TelemetryData
	hook := func(ctx context.Context, d *unbundle.TelemetryData) {
		calls++
		td = d
	}

	target := unbundle.NewTargetMemory()
	require.NoError(t, afero.WriteFile(target.Fs(), "/out/a", []byte("a"), 0644))
	require.NoError(t, afero.WriteFile(target.Fs(), "/out/b/c", []byte("c"), 0644))
	cfg, _ := memoryConfig(unbundle.WithForce(true), unbundle.WithTelemetryHook(hook))

	require.NoError(t, unbundle.InstallTo(context.Background(), target, source(zipArchive(t, warEntries)), "/out", cfg))
	assert.Equal(t, 1, calls)
	require.NotNil(t, td)
	assert.Equal(t, int64(2), td.CleanedEntries)
	assert.Equal(t, int64(0), td.CleanErrors)
	assert.Equal(t, int64(23), td.ExtractionSize)
	assert.Nil(t, td.LastExtractionError)
	assert.GreaterOrEqual(t, int64(td.ExtractionDuration), int64(0))
}
