// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
)

// Plan describes what materializing one dataset would do, given the current
// state of the datasets root.
type Plan struct {
	Dataset       string   `json:"dataset"`
	URL           string   `json:"url"`
	ArchivePath   string   `json:"archivePath"`
	ExtractedRoot string   `json:"extractedRoot"`
	ExpectedPaths []string `json:"expectedPaths"`

	// Download is true when the archive must be fetched.
	Download bool `json:"download"`

	// Extract is true when the extracted root is absent.
	Extract bool `json:"extract"`

	// Source is "bundle" when the datasets root does not exist yet and will
	// be populated from notebooks/datasets.zip before this dataset is
	// checked. Download and Extract then describe the bundle's contents.
	Source string `json:"source,omitempty"`
}

// PlanDataset inspects root and reports the steps Materialize would take for
// d. It never touches the network and never writes.
func PlanDataset(root string, d Descriptor) (*Plan, error) {
	return planDataset(root, d, func(rel string) (bool, error) {
		return exists(filepath.Join(root, filepath.FromSlash(rel)))
	})
}

// planDataset builds the plan for d, asking has whether a slash path
// relative to root is present.
func planDataset(root string, d Descriptor, has func(rel string) (bool, error)) (*Plan, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	p := &Plan{
		Dataset:       d.Name,
		URL:           d.URL,
		ArchivePath:   filepath.Join(root, filepath.FromSlash(d.ArchiveFilename)),
		ExtractedRoot: filepath.Join(root, filepath.FromSlash(d.ExtractedRoot)),
	}
	for _, rel := range d.ExpectedPaths {
		p.ExpectedPaths = append(p.ExpectedPaths, filepath.Join(root, filepath.FromSlash(rel)))
	}

	extracted, err := has(path.Clean(d.ExtractedRoot))
	if err != nil {
		return nil, err
	}
	if extracted {
		return p, nil
	}
	p.Extract = true

	haveArchive, err := has(path.Clean(d.ArchiveFilename))
	if err != nil {
		return nil, err
	}
	p.Download = !haveArchive
	return p, nil
}

// bundleContents lists the paths a bundle would create under the datasets
// root, implied parent directories included. found reports whether the
// bundle carries a datasets/ directory at all.
func bundleContents(bundle string) (contents map[string]bool, found bool, err error) {
	zr, err := zip.OpenReader(bundle)
	if err != nil {
		return nil, false, &ArchiveFormatError{Archive: bundle, Format: FormatZip, Err: err}
	}
	defer zr.Close()

	contents = make(map[string]bool)
	for _, f := range zr.File {
		name := path.Clean(f.Name)
		if name == bundleRootDir {
			found = true
			continue
		}
		rel, ok := strings.CutPrefix(name, bundleRootDir+"/")
		if !ok {
			continue
		}
		found = true
		for p := rel; p != "." && p != "/"; p = path.Dir(p) {
			contents[p] = true
		}
	}
	return contents, found, nil
}

// exists reports whether path is present. Errors other than "not exist" are
// returned so permission problems are not mistaken for absence.
func exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}
