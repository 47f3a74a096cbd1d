// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// partialSuffix marks an extraction in progress. The directory is renamed
// onto the extracted root only once extraction succeeded.
const partialSuffix = ".partial"

// Materializer makes a dataset's expected layout exist under a datasets
// root, downloading and extracting only what is missing.
//
// A Materializer is not safe for concurrent use against the same root.
type Materializer struct {
	fetcher   Fetcher
	extractor Extractor
	emit      ProgressFunc
}

// NewMaterializer returns a Materializer using the given collaborators.
// Nil collaborators fall back to NewHTTPFetcher("") and ArchiveExtractor.
func NewMaterializer(f Fetcher, x Extractor, progress ProgressFunc) *Materializer {
	if f == nil {
		f = NewHTTPFetcher("")
	}
	if x == nil {
		x = ArchiveExtractor{}
	}
	return &Materializer{fetcher: f, extractor: x, emit: emitter(progress)}
}

// Materialize ensures every expected path of d exists under root.
//
// When the extracted root already exists nothing is downloaded or extracted,
// whatever it contains; only the expected paths are checked. Otherwise the
// archive is fetched if absent and extracted. The first missing expected path
// is reported as a *ConsistencyError.
func (m *Materializer) Materialize(ctx context.Context, root string, d Descriptor) error {
	if ctx == nil {
		ctx = context.Background()
	}

	m.emit(ProgressEvent{Event: "dataset_start", Dataset: d.Name, Message: "checking availability of the " + d.Name + " dataset"})

	p, err := PlanDataset(root, d)
	if err != nil {
		return err
	}
	slog.Debug("dataset plan", "dataset", d.Name, "download", p.Download, "extract", p.Extract)

	if p.Download {
		msg := "downloading dataset from " + d.URL
		if d.ApproxSize != "" {
			msg += " (" + d.ApproxSize + ")"
		}
		m.emit(ProgressEvent{Event: "download_start", Dataset: d.Name, Path: p.ArchivePath, Message: msg})
		if err := m.fetcher.Fetch(ctx, d.URL, p.ArchivePath, m.datasetEmit(d.Name)); err != nil {
			return err
		}
		m.emit(ProgressEvent{Event: "download_done", Dataset: d.Name, Path: p.ArchivePath})
	} else if p.Extract {
		m.emit(ProgressEvent{Event: "archive_found", Dataset: d.Name, Path: p.ArchivePath, Message: "found archive: " + p.ArchivePath})
	}

	if p.Extract {
		m.emit(ProgressEvent{Event: "extract_start", Dataset: d.Name, Path: p.ExtractedRoot,
			Message: fmt.Sprintf("extracting %s to %s", p.ArchivePath, p.ExtractedRoot)})
		if err := m.extract(ctx, d, p); err != nil {
			return err
		}
		m.emit(ProgressEvent{Event: "extract_done", Dataset: d.Name, Path: p.ExtractedRoot})
	}

	m.emit(ProgressEvent{Event: "verify", Dataset: d.Name, Message: "checking that the " + d.Name + " files exist"})
	for _, want := range p.ExpectedPaths {
		ok, err := exists(want)
		if err != nil {
			return err
		}
		if !ok {
			return &ConsistencyError{Dataset: d.Name, Path: want, Stage: "verify"}
		}
	}

	m.emit(ProgressEvent{Event: "dataset_done", Dataset: d.Name, Message: "success"})
	return nil
}

// extract unpacks into a sibling partial directory and renames it into place.
func (m *Materializer) extract(ctx context.Context, d Descriptor, p *Plan) error {
	tmp := p.ExtractedRoot + partialSuffix
	if err := os.RemoveAll(tmp); err != nil {
		return fmt.Errorf("clear stale extraction: %w", err)
	}

	if err := m.extractor.Extract(ctx, p.ArchivePath, d.Format, tmp); err != nil {
		return err
	}

	ok, err := exists(tmp)
	if err != nil {
		return err
	}
	if !ok {
		return &ConsistencyError{Dataset: d.Name, Path: p.ExtractedRoot, Stage: "extract"}
	}
	if err := os.Rename(tmp, p.ExtractedRoot); err != nil {
		return fmt.Errorf("move extraction into place: %w", err)
	}
	return nil
}

// datasetEmit tags fetcher events with the dataset name.
func (m *Materializer) datasetEmit(name string) ProgressFunc {
	return func(ev ProgressEvent) {
		if ev.Dataset == "" {
			ev.Dataset = name
		}
		m.emit(ev)
	}
}
