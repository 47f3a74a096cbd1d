// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

// zipBytes builds a zip archive from name -> content. Names ending in "/"
// become directory entries.
func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedKeys(files) {
		w, err := zw.Create(name)
		require.NoError(t, err)
		if name[len(name)-1] != '/' {
			_, err = w.Write([]byte(files[name]))
			require.NoError(t, err)
		}
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// tarGzBytes builds a gzip-compressed tar archive from name -> content.
func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, name := range sortedKeys(files) {
		hdr := &tar.Header{Name: name, Mode: 0o644, Typeflag: tar.TypeReg, Size: int64(len(files[name]))}
		if name[len(name)-1] == '/' {
			hdr = &tar.Header{Name: name, Mode: 0o755, Typeflag: tar.TypeDir}
		}
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte(files[name]))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func putFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

// stubFetcher "downloads" fixed bytes and counts calls.
type stubFetcher struct {
	data  []byte
	err   error
	calls int
	urls  []string
}

func (s *stubFetcher) Fetch(ctx context.Context, url, dst string, emit ProgressFunc) error {
	s.calls++
	s.urls = append(s.urls, url)
	if s.err != nil {
		return s.err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, s.data, 0o644)
}

// countingExtractor delegates to ArchiveExtractor unless fn is set.
type countingExtractor struct {
	calls int
	fn    func(archive string, format ArchiveFormat, dst string) error
}

func (c *countingExtractor) Extract(ctx context.Context, archive string, format ArchiveFormat, dst string) error {
	c.calls++
	if c.fn != nil {
		return c.fn(archive, format, dst)
	}
	return ArchiveExtractor{}.Extract(ctx, archive, format, dst)
}

// recorder collects events.
type recorder struct {
	events []ProgressEvent
}

func (r *recorder) handle(ev ProgressEvent) {
	r.events = append(r.events, ev)
}

func (r *recorder) names() []string {
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Event)
	}
	return out
}

// snapshot lists every path under root relative to it.
func snapshot(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	require.NoError(t, err)
	return out
}

func toyDescriptor() Descriptor {
	return Descriptor{
		Name:            "toy",
		URL:             "http://example.invalid/a.zip",
		ArchiveFilename: "a.zip",
		ExtractedRoot:   "d",
		ExpectedPaths:   []string{"d/x.txt"},
		Format:          FormatZip,
	}
}
