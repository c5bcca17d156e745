// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package unbundle_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/dsnet/compress/bzip2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/hashicorp/go-unbundle"
)

// testEntry describes an entry of a generated archive
type testEntry struct {
	name    string
	content string
	dir     bool
	link    string
}

// warEntries is the layout of a minimal web application archive
var warEntries = []testEntry{
	{name: "WEB-INF/", dir: true},
	{name: "WEB-INF/web.xml", content: "<web-app/>"},
	{name: "index.html", content: "<html></html>"},
}

// zipArchive returns a zip archive with entries
func zipArchive(t *testing.T, entries []testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		hdr := &zip.FileHeader{Name: e.name, Method: zip.Deflate}
		switch {
		case e.dir:
			hdr.SetMode(fs.ModeDir | 0755)
		case len(e.link) > 0:
			hdr.SetMode(fs.ModeSymlink | 0777)
		default:
			hdr.SetMode(0644)
		}
		w, err := zw.CreateHeader(hdr)
		require.NoError(t, err)
		data := e.content
		if len(e.link) > 0 {
			data = e.link
		}
		if !e.dir {
			_, err = io.WriteString(w, data)
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// tarArchive returns a tar archive with entries
func tarArchive(t *testing.T, entries []testEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0644, Typeflag: tar.TypeReg, Size: int64(len(e.content)), Format: tar.FormatPAX}
		switch {
		case e.dir:
			hdr.Typeflag = tar.TypeDir
			hdr.Mode = 0755
			hdr.Size = 0
		case len(e.link) > 0:
			hdr.Typeflag = tar.TypeSymlink
			hdr.Linkname = e.link
			hdr.Size = 0
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := io.WriteString(tw, e.content)
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	return buf.Bytes()
}

// compress compresses data with the algorithm of the file extension ext
func compress(t *testing.T, ext string, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	var w io.WriteCloser
	var err error
	switch ext {
	case "gz":
		w = gzip.NewWriter(&buf)
	case "bz2":
		w, err = bzip2.NewWriter(&buf, &bzip2.WriterConfig{Level: bzip2.DefaultCompression})
	case "lz4":
		w = lz4.NewWriter(&buf)
	case "sz":
		w = snappy.NewBufferedWriter(&buf)
	case "xz":
		w, err = xz.NewWriter(&buf)
	case "zst":
		w, err = zstd.NewWriter(&buf)
	default:
		t.Fatalf("unknown compression %s", ext)
	}
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// source returns a source for data
func source(data []byte) unbundle.Source {
	return unbundle.NewReaderSource("target.war", bytes.NewReader(data))
}

// tree returns all paths below root on fs, relative and slash separated.
// Directories end with a slash.
func tree(t *testing.T, fsys afero.Fs, root string) []string {
	t.Helper()
	var paths []string
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			rel += "/"
		}
		paths = append(paths, rel)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(paths)
	return paths
}

// entryNames returns the sorted names of entries, including implicit parent directories
func entryNames(entries []testEntry) []string {
	set := map[string]bool{}
	for _, e := range entries {
		name := strings.TrimSuffix(e.name, "/")
		parts := strings.Split(name, "/")
		for i := 1; i < len(parts); i++ {
			set[strings.Join(parts[:i], "/")+"/"] = true
		}
		if e.dir {
			name += "/"
		}
		set[name] = true
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// readFile reads path from fs
func readFile(t *testing.T, fsys afero.Fs, path string) string {
	t.Helper()
	b, err := afero.ReadFile(fsys, path)
	require.NoError(t, err)
	return string(b)
}

// memoryConfig returns a config that stages into a fresh memory filesystem
func memoryConfig(opts ...unbundle.ConfigOption) (*unbundle.Config, afero.Fs) {
	staging := afero.NewMemMapFs()
	opts = append([]unbundle.ConfigOption{unbundle.WithStagingFs(staging)}, opts...)
	return unbundle.NewConfig(opts...), staging
}

// stagedFiles returns the files in the default staging directory of fs
func stagedFiles(t *testing.T, fsys afero.Fs) []string {
	t.Helper()
	infos, err := afero.ReadDir(fsys, os.TempDir())
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	var names []string
	for _, i := range infos {
		names = append(names, i.Name())
	}
	return names
}
