// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ArchiveFormat names the container format of a dataset archive.
type ArchiveFormat string

const (
	FormatZip   ArchiveFormat = "zip"
	FormatTarGz ArchiveFormat = "tar.gz"
)

// Descriptor is the fixed description of one dataset: where it comes from,
// where it lands under the datasets root, and what must exist afterwards.
//
// Descriptors are plain values. The ones this tool knows about are returned
// by Sentiment140 and IMDb; callers pass them explicitly to a Materializer.
//
// Example:
//
//	d := datasets.Descriptor{
//	    Name:            "toy",
//	    URL:             "https://example.com/toy.zip",
//	    ArchiveFilename: "toy.zip",
//	    ExtractedRoot:   "toy",
//	    ExpectedPaths:   []string{"toy/data.csv"},
//	    Format:          datasets.FormatZip,
//	}
type Descriptor struct {
	// Name is a short identifier used in events and errors.
	Name string `json:"name"`

	// URL is fetched with a single GET when the archive is not on disk.
	URL string `json:"url"`

	// ArchiveFilename is where the archive is stored, relative to the root.
	ArchiveFilename string `json:"archive"`

	// ExtractedRoot is the directory the archive is extracted into,
	// relative to the root. Its presence alone marks the dataset as
	// extracted.
	ExtractedRoot string `json:"extractedRoot"`

	// ExpectedPaths are slash-separated paths relative to the root that must
	// exist once the dataset is materialized. Each one lies under
	// ExtractedRoot.
	ExpectedPaths []string `json:"expectedPaths"`

	// Format selects the decoder used for the archive.
	Format ArchiveFormat `json:"format"`

	// ApproxSize is shown to the user before a download, e.g. "77MB".
	ApproxSize string `json:"approxSize,omitempty"`
}

// Validate checks that every field is set and that the expected paths stay
// inside the extracted root.
func (d Descriptor) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidDescriptor)
	}
	if d.URL == "" {
		return fmt.Errorf("%w: %s: missing url", ErrInvalidDescriptor, d.Name)
	}
	if d.Format != FormatZip && d.Format != FormatTarGz {
		return fmt.Errorf("%w: %s: unknown format %q", ErrInvalidDescriptor, d.Name, d.Format)
	}
	if !filepath.IsLocal(filepath.FromSlash(d.ArchiveFilename)) {
		return fmt.Errorf("%w: %s: archive %q is not a local path", ErrInvalidDescriptor, d.Name, d.ArchiveFilename)
	}
	root := path.Clean(d.ExtractedRoot)
	if !filepath.IsLocal(filepath.FromSlash(root)) || root == "." {
		return fmt.Errorf("%w: %s: extracted root %q is not a local path", ErrInvalidDescriptor, d.Name, d.ExtractedRoot)
	}
	if len(d.ExpectedPaths) == 0 {
		return fmt.Errorf("%w: %s: no expected paths", ErrInvalidDescriptor, d.Name)
	}
	for _, p := range d.ExpectedPaths {
		c := path.Clean(p)
		if c != root && !strings.HasPrefix(c, root+"/") {
			return fmt.Errorf("%w: %s: expected path %q is outside %q", ErrInvalidDescriptor, d.Name, p, d.ExtractedRoot)
		}
	}
	return nil
}

// FaceParams are handed to a FaceLoader.
type FaceParams struct {
	// MinFacesPerPerson keeps only people with at least this many pictures.
	MinFacesPerPerson int `json:"minFacesPerPerson" yaml:"min_faces_per_person"`

	// Resize is the downscale ratio consumers should apply to each picture.
	Resize float64 `json:"resize" yaml:"resize"`
}

// DefaultFaceParams returns the parameters the notebooks expect.
func DefaultFaceParams() FaceParams {
	return FaceParams{MinFacesPerPerson: 70, Resize: 0.4}
}

// Fetcher downloads url into dst. Implementations must not leave a partial
// file at dst on failure.
type Fetcher interface {
	Fetch(ctx context.Context, url, dst string, emit ProgressFunc) error
}

// Extractor unpacks an archive into dst, creating dst if needed.
type Extractor interface {
	Extract(ctx context.Context, archive string, format ArchiveFormat, dst string) error
}

// FaceLoader fetches and caches the face picture dataset under destination.
// It owns its download and caching policy entirely.
type FaceLoader interface {
	Fetch(ctx context.Context, destination string, params FaceParams) error
}

// Settings configures a full Run.
type Settings struct {
	// InstallDir is the directory holding notebooks/. If empty, the
	// directory of the running executable is used.
	InstallDir string

	// Descriptors are materialized in order. If nil, Catalog() is used.
	Descriptors []Descriptor

	// Fetcher defaults to an HTTPFetcher.
	Fetcher Fetcher

	// Extractor defaults to ArchiveExtractor.
	Extractor Extractor

	// Faces is invoked last. A nil loader skips the step.
	Faces FaceLoader

	// FaceParams defaults to DefaultFaceParams() when zero.
	FaceParams FaceParams

	// UserAgent is sent by the default HTTPFetcher.
	UserAgent string
}

// ProgressEvent represents a status update during a run.
//
// The Event field is one of:
//   - "resolve": the datasets root was resolved (Message says how)
//   - "dataset_start": checking a dataset began
//   - "archive_found": an archive already on disk will be reused
//   - "download_start", "download_progress", "download_done"
//   - "extract_start", "extract_done"
//   - "verify": expected paths are being checked
//   - "dataset_done": every expected path exists
//   - "faces_start", "faces_done"
//   - "error": an error occurred
//   - "done": the whole run finished
type ProgressEvent struct {
	Time time.Time `json:"time"`

	// Level is "debug", "info", "warn" or "error". Empty means "info".
	Level string `json:"level,omitempty"`

	Event string `json:"event"`

	// Dataset is the descriptor name the event belongs to, if any.
	Dataset string `json:"dataset,omitempty"`

	// Path is an absolute filesystem path relevant to the event.
	Path string `json:"path,omitempty"`

	// Downloaded is the cumulative byte count of a download.
	Downloaded int64 `json:"downloaded,omitempty"`

	// Total is the expected size in bytes, or 0 when unknown.
	Total int64 `json:"total,omitempty"`

	Message string `json:"message,omitempty"`
}

// ProgressFunc receives progress events. Runs are sequential, so the
// callback is never invoked concurrently by this package.
type ProgressFunc func(ProgressEvent)

// emitter fills in defaults and tolerates a nil callback.
func emitter(progress ProgressFunc) ProgressFunc {
	return func(ev ProgressEvent) {
		if progress == nil {
			return
		}
		if ev.Time.IsZero() {
			ev.Time = time.Now()
		}
		progress(ev)
	}
}
