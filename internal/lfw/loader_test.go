// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package lfw

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bodaay/notebook-datasets/pkg/datasets"
)

// archiveFetcher serves one in-memory archive for every URL.
type archiveFetcher struct {
	data  []byte
	calls int
}

func (a *archiveFetcher) Fetch(ctx context.Context, url, dst string, emit datasets.ProgressFunc) error {
	a.calls++
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, a.data, 0o644)
}

func facesArchive(t *testing.T, counts map[string]int) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, n := range counts {
		for i := 1; i <= n; i++ {
			p := filepath.ToSlash(filepath.Join("lfw_funneled", name, name+"_000"+string(rune('0'+i))+".jpg"))
			require.NoError(t, tw.WriteHeader(&tar.Header{Name: p, Mode: 0o644, Typeflag: tar.TypeReg, Size: 3}))
			_, err := tw.Write([]byte("jpg"))
			require.NoError(t, err)
		}
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())
	return buf.Bytes()
}

func TestLoader_FetchWritesManifest(t *testing.T) {
	dest := t.TempDir()
	f := &archiveFetcher{data: facesArchive(t, map[string]int{
		"George_W_Bush": 3,
		"Colin_Powell":  2,
		"Nobody_Much":   1,
	})}
	l := New(datasets.NewMaterializer(f, nil, nil))
	params := datasets.FaceParams{MinFacesPerPerson: 2, Resize: 0.4}

	require.NoError(t, l.Fetch(context.Background(), dest, params))
	assert.Equal(t, 1, f.calls)
	assert.DirExists(t, filepath.Join(dest, "lfw_home", "lfw_funneled"))
	assert.FileExists(t, filepath.Join(dest, "lfw-funneled.tgz"))

	m, err := ReadManifest(ManifestPath(dest, params))
	require.NoError(t, err)
	assert.Equal(t, 2, m.MinFacesPerPerson)
	assert.Equal(t, URL, m.Source)
	require.Len(t, m.People, 2)
	assert.Equal(t, "Colin_Powell", m.People[0].Name)
	assert.Equal(t, "George_W_Bush", m.People[1].Name)
	assert.Equal(t, 5, m.Images())
	assert.Equal(t, "lfw_funneled/Colin_Powell/Colin_Powell_0001.jpg", m.People[0].Images[0])
}

func TestLoader_CachedManifest(t *testing.T) {
	dest := t.TempDir()
	f := &archiveFetcher{data: facesArchive(t, map[string]int{"A": 1})}
	l := New(datasets.NewMaterializer(f, nil, nil))
	params := datasets.FaceParams{MinFacesPerPerson: 1, Resize: 0.4}

	require.NoError(t, l.Fetch(context.Background(), dest, params))
	// Drop the pictures: a cached manifest must short-circuit.
	require.NoError(t, os.RemoveAll(filepath.Join(dest, "lfw_home", "lfw_funneled")))

	require.NoError(t, l.Fetch(context.Background(), dest, params))
	assert.Equal(t, 1, f.calls)
	assert.NoDirExists(t, filepath.Join(dest, "lfw_home", "lfw_funneled"))
}

func TestLoader_ResizeChangeRebuildsManifest(t *testing.T) {
	dest := t.TempDir()
	f := &archiveFetcher{data: facesArchive(t, map[string]int{"A": 1})}
	l := New(datasets.NewMaterializer(f, nil, nil))

	require.NoError(t, l.Fetch(context.Background(), dest, datasets.FaceParams{MinFacesPerPerson: 1, Resize: 0.4}))
	require.NoError(t, l.Fetch(context.Background(), dest, datasets.FaceParams{MinFacesPerPerson: 1, Resize: 0.5}))

	m, err := ReadManifest(ManifestPath(dest, datasets.FaceParams{MinFacesPerPerson: 1}))
	require.NoError(t, err)
	assert.InDelta(t, 0.5, m.Resize, 1e-9)
	assert.Equal(t, 1, f.calls, "archive is extracted once and reused")
}

func TestLoader_InvalidParams(t *testing.T) {
	l := New(datasets.NewMaterializer(&archiveFetcher{}, nil, nil))
	tests := []struct {
		name   string
		params datasets.FaceParams
	}{
		{name: "negative min", params: datasets.FaceParams{MinFacesPerPerson: -1, Resize: 0.4}},
		{name: "zero resize", params: datasets.FaceParams{MinFacesPerPerson: 70}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, l.Fetch(context.Background(), t.TempDir(), tt.params))
		})
	}
}

func TestIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "lfw_funneled")
	put := func(rel string) {
		p := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}
	put("B/B_0001.jpg")
	put("B/B_0002.JPG")
	put("B/notes.txt")
	put("A/A_0001.jpg")
	put("pairs.txt")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "Empty"), 0o755))

	people, err := Index(dir, 0)
	require.NoError(t, err)
	require.Len(t, people, 2, "people without pictures are never listed")
	assert.Equal(t, "A", people[0].Name)
	assert.Equal(t, []string{"lfw_funneled/B/B_0001.jpg", "lfw_funneled/B/B_0002.JPG"}, people[1].Images)

	people, err = Index(dir, 2)
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "B", people[0].Name)

	_, err = Index(filepath.Join(t.TempDir(), "missing"), 1)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDescriptorIsValid(t *testing.T) {
	require.NoError(t, Descriptor().Validate())
}
