// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package lfw fetches the Labeled Faces in the Wild picture set and keeps a
// per-parameter index of the people it selects.
package lfw

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bodaay/notebook-datasets/pkg/datasets"
)

const (
	// URL serves the funneled (aligned) variant of the picture set.
	URL = "https://ndownloader.figshare.com/files/5976015"

	homeDir   = "lfw_home"
	imagesDir = "lfw_funneled"
)

// Descriptor returns the archive description for the funneled pictures.
func Descriptor() datasets.Descriptor {
	return datasets.Descriptor{
		Name:            "lfw",
		URL:             URL,
		ArchiveFilename: "lfw-funneled.tgz",
		ExtractedRoot:   homeDir,
		ExpectedPaths:   []string{homeDir + "/" + imagesDir},
		Format:          datasets.FormatTarGz,
		ApproxSize:      "~200MB",
	}
}

// Person is one selected identity and its pictures, relative to lfw_home.
type Person struct {
	Name   string   `yaml:"name"`
	Images []string `yaml:"images"`
}

// Manifest is the cached selection written next to the pictures.
type Manifest struct {
	MinFacesPerPerson int      `yaml:"min_faces_per_person"`
	Resize            float64  `yaml:"resize"`
	Source            string   `yaml:"source"`
	People            []Person `yaml:"people"`
}

// Images returns the total number of pictures in the manifest.
func (m *Manifest) Images() int {
	n := 0
	for _, p := range m.People {
		n += len(p.Images)
	}
	return n
}

// Loader implements datasets.FaceLoader.
type Loader struct {
	m *datasets.Materializer
}

// New returns a Loader that materializes the archive through m.
func New(m *datasets.Materializer) *Loader {
	return &Loader{m: m}
}

// ManifestPath is where the selection for params is cached under destination.
func ManifestPath(destination string, params datasets.FaceParams) string {
	return filepath.Join(destination, homeDir, fmt.Sprintf("lfw_people_min%d.yaml", params.MinFacesPerPerson))
}

// Fetch makes the pictures available under destination/lfw_home and writes
// the manifest for params. A manifest already written for the same
// parameters is reused without touching the archive.
func (l *Loader) Fetch(ctx context.Context, destination string, params datasets.FaceParams) error {
	if params.MinFacesPerPerson < 0 {
		return fmt.Errorf("min faces per person must be >= 0, got %d", params.MinFacesPerPerson)
	}
	if params.Resize <= 0 {
		return fmt.Errorf("resize must be > 0, got %g", params.Resize)
	}

	mp := ManifestPath(destination, params)
	if cached, err := ReadManifest(mp); err == nil && cached.Resize == params.Resize {
		slog.Debug("lfw manifest cached", "path", mp, "people", len(cached.People))
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("ignoring unreadable lfw manifest", "path", mp, "error", err)
	}

	if err := l.m.Materialize(ctx, destination, Descriptor()); err != nil {
		return err
	}

	people, err := Index(filepath.Join(destination, homeDir, imagesDir), params.MinFacesPerPerson)
	if err != nil {
		return err
	}
	slog.Debug("lfw indexed", "people", len(people), "min_faces", params.MinFacesPerPerson)

	return WriteManifest(mp, &Manifest{
		MinFacesPerPerson: params.MinFacesPerPerson,
		Resize:            params.Resize,
		Source:            URL,
		People:            people,
	})
}

// Index lists the people under dir with at least minFaces JPEG pictures.
// People and pictures are sorted by name; paths are relative to the parent
// of dir and slash-separated.
func Index(dir string, minFaces int) ([]Person, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	base := filepath.Base(dir)

	var people []Person
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		var images []string
		for _, f := range files {
			ext := strings.ToLower(filepath.Ext(f.Name()))
			if f.Type().IsRegular() && (ext == ".jpg" || ext == ".jpeg") {
				images = append(images, path.Join(base, e.Name(), f.Name()))
			}
		}
		if len(images) > 0 && len(images) >= minFaces {
			people = append(people, Person{Name: e.Name(), Images: images})
		}
	}
	return people, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(p string) (*Manifest, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", p, err)
	}
	return &m, nil
}

// WriteManifest stores m at p, replacing any previous file atomically.
func WriteManifest(p string, m *Manifest) error {
	b, err := yaml.Marshal(m)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, p)
}
