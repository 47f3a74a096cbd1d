// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArchiveExtractor_Zip(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	putFile(t, archive, zipBytes(t, map[string]string{
		"top/":          "",
		"top/a.csv":     "1,2",
		"top/sub/b.csv": "3,4",
	}))

	dst := filepath.Join(dir, "out")
	require.NoError(t, ArchiveExtractor{}.Extract(context.Background(), archive, FormatZip, dst))

	b, err := os.ReadFile(filepath.Join(dst, "top", "sub", "b.csv"))
	require.NoError(t, err)
	assert.Equal(t, "3,4", string(b))
	assert.FileExists(t, filepath.Join(dst, "top", "a.csv"))
}

func TestArchiveExtractor_TarGz(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.tar.gz")
	putFile(t, archive, tarGzBytes(t, map[string]string{
		"aclImdb/README":          "readme",
		"aclImdb/train/pos/0.txt": "good",
	}))

	dst := filepath.Join(dir, "out")
	require.NoError(t, ArchiveExtractor{}.Extract(context.Background(), archive, FormatTarGz, dst))

	b, err := os.ReadFile(filepath.Join(dst, "aclImdb", "train", "pos", "0.txt"))
	require.NoError(t, err)
	assert.Equal(t, "good", string(b))
}

func TestArchiveExtractor_RejectsEscapingEntries(t *testing.T) {
	tests := []struct {
		name   string
		format ArchiveFormat
		data   func(t *testing.T) []byte
	}{
		{
			name:   "zip parent traversal",
			format: FormatZip,
			data: func(t *testing.T) []byte {
				return zipBytes(t, map[string]string{"../evil.txt": "x"})
			},
		},
		{
			name:   "tar parent traversal",
			format: FormatTarGz,
			data: func(t *testing.T) []byte {
				return tarGzBytes(t, map[string]string{"ok/../../evil.txt": "x"})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, "bad")
			putFile(t, archive, tt.data(t))

			err := ArchiveExtractor{}.Extract(context.Background(), archive, tt.format, filepath.Join(dir, "out"))
			var afe *ArchiveFormatError
			require.ErrorAs(t, err, &afe)
			assert.Equal(t, archive, afe.Archive)
			assert.Equal(t, tt.format, afe.Format)
			assert.NoFileExists(t, filepath.Join(dir, "evil.txt"))
		})
	}
}

func TestArchiveExtractor_Corrupt(t *testing.T) {
	tests := []struct {
		name   string
		format ArchiveFormat
		data   []byte
	}{
		{name: "zip garbage", format: FormatZip, data: []byte("garbage")},
		{name: "gzip garbage", format: FormatTarGz, data: []byte("garbage")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			archive := filepath.Join(dir, "bad")
			putFile(t, archive, tt.data)

			err := ArchiveExtractor{}.Extract(context.Background(), archive, tt.format, filepath.Join(dir, "out"))
			var afe *ArchiveFormatError
			require.ErrorAs(t, err, &afe)
		})
	}

	t.Run("truncated tar.gz", func(t *testing.T) {
		dir := t.TempDir()
		full := tarGzBytes(t, map[string]string{"a/big.txt": string(make([]byte, 64<<10))})
		archive := filepath.Join(dir, "cut.tar.gz")
		putFile(t, archive, full[:len(full)/2])

		err := ArchiveExtractor{}.Extract(context.Background(), archive, FormatTarGz, filepath.Join(dir, "out"))
		var afe *ArchiveFormatError
		require.ErrorAs(t, err, &afe)
	})
}

func TestArchiveExtractor_MissingArchive(t *testing.T) {
	dir := t.TempDir()
	err := ArchiveExtractor{}.Extract(context.Background(), filepath.Join(dir, "nope.zip"), FormatZip, filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)

	var afe *ArchiveFormatError
	assert.NotErrorAs(t, err, &afe)
}

func TestArchiveExtractor_UnknownFormat(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.rar")
	putFile(t, archive, []byte("rar"))

	err := ArchiveExtractor{}.Extract(context.Background(), archive, ArchiveFormat("rar"), filepath.Join(dir, "out"))
	var afe *ArchiveFormatError
	require.ErrorAs(t, err, &afe)
}

func TestArchiveExtractor_Canceled(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a.zip")
	putFile(t, archive, zipBytes(t, map[string]string{"x.txt": "x"}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ArchiveExtractor{}.Extract(ctx, archive, FormatZip, filepath.Join(dir, "out"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveExtractor_TarLinks(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, hdr := range []*tar.Header{
		{Name: "aclImdb/train/pos/0.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: 4},
		{Name: "aclImdb/test/pos/0.txt", Typeflag: tar.TypeLink, Linkname: "aclImdb/train/pos/0.txt"},
		{Name: "aclImdb/latest", Typeflag: tar.TypeSymlink, Linkname: "train"},
	} {
		require.NoError(t, tw.WriteHeader(hdr))
		if hdr.Typeflag == tar.TypeReg {
			_, err := tw.Write([]byte("good"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	var logs bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelWarn})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	dir := t.TempDir()
	archive := filepath.Join(dir, "links.tar.gz")
	putFile(t, archive, buf.Bytes())
	dst := filepath.Join(dir, "out")

	require.NoError(t, ArchiveExtractor{}.Extract(context.Background(), archive, FormatTarGz, dst))

	b, err := os.ReadFile(filepath.Join(dst, "aclImdb", "test", "pos", "0.txt"))
	require.NoError(t, err, "hard links are materialized")
	assert.Equal(t, "good", string(b))

	_, err = os.Lstat(filepath.Join(dst, "aclImdb", "latest"))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "name=aclImdb/latest")
}

func TestArchiveExtractor_DanglingHardLink(t *testing.T) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "a.txt", Typeflag: tar.TypeLink, Linkname: "missing.txt"}))
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	dir := t.TempDir()
	archive := filepath.Join(dir, "bad.tar.gz")
	putFile(t, archive, buf.Bytes())

	err := ArchiveExtractor{}.Extract(context.Background(), archive, FormatTarGz, filepath.Join(dir, "out"))
	var afe *ArchiveFormatError
	require.ErrorAs(t, err, &afe)
	assert.Equal(t, archive, afe.Archive)
}
