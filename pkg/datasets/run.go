// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"fmt"
)

// Run resolves the datasets root, materializes each descriptor in order and
// finally hands the root to the face loader. The first error stops the run;
// later steps are not attempted.
func Run(ctx context.Context, cfg Settings, progress ProgressFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}
	emit := emitter(progress)

	fail := func(err error) error {
		emit(ProgressEvent{Level: "error", Event: "error", Message: err.Error()})
		return err
	}

	root, err := Prepare(ctx, cfg, progress)
	if err != nil {
		return fail(err)
	}

	m := NewMaterializer(fetcherFor(cfg), cfg.Extractor, progress)
	for _, d := range descriptorsFor(cfg) {
		if err := m.Materialize(ctx, root, d); err != nil {
			return fail(err)
		}
	}

	if cfg.Faces != nil {
		params := cfg.FaceParams
		if params == (FaceParams{}) {
			params = DefaultFaceParams()
		}
		emit(ProgressEvent{Event: "faces_start", Path: root, Message: "loading labeled faces data (~200MB)"})
		if err := cfg.Faces.Fetch(ctx, root, params); err != nil {
			return fail(&FetchError{Loader: "faces", Err: err})
		}
		emit(ProgressEvent{Event: "faces_done", Path: root, Message: "success"})
	}

	emit(ProgressEvent{Event: "done", Path: root, Message: fmt.Sprintf("datasets ready in %s", root)})
	return nil
}

// Prepare resolves the install directory and the datasets root for cfg.
func Prepare(ctx context.Context, cfg Settings, progress ProgressFunc) (string, error) {
	dir := cfg.InstallDir
	if dir == "" {
		d, err := InstallDir()
		if err != nil {
			return "", fmt.Errorf("locate install dir: %w", err)
		}
		dir = d
	}
	return ResolveRoot(ctx, dir, cfg.Extractor, progress)
}

// PlanAll reports the plan of every descriptor in cfg without resolving or
// creating the root. When the root is absent but a bundle is staged, the
// plans describe what the bundle will provide; otherwise a missing root plans
// everything as download+extract.
func PlanAll(cfg Settings) ([]*Plan, error) {
	dir := cfg.InstallDir
	if dir == "" {
		d, err := InstallDir()
		if err != nil {
			return nil, fmt.Errorf("locate install dir: %w", err)
		}
		dir = d
	}
	l, err := LayoutFor(dir)
	if err != nil {
		return nil, err
	}

	plan := PlanDataset
	source := ""
	rooted, err := exists(l.Root)
	if err != nil {
		return nil, err
	}
	bundled := false
	if !rooted {
		if bundled, err = exists(l.Bundle); err != nil {
			return nil, err
		}
	}
	if bundled {
		contents, found, err := bundleContents(l.Bundle)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &ConsistencyError{Path: l.Root, Stage: "resolve"}
		}
		source = "bundle"
		plan = func(root string, d Descriptor) (*Plan, error) {
			return planDataset(root, d, func(rel string) (bool, error) {
				return contents[rel], nil
			})
		}
	}

	var plans []*Plan
	for _, d := range descriptorsFor(cfg) {
		p, err := plan(l.Root, d)
		if err != nil {
			return nil, err
		}
		p.Source = source
		plans = append(plans, p)
	}
	return plans, nil
}

func descriptorsFor(cfg Settings) []Descriptor {
	if cfg.Descriptors != nil {
		return cfg.Descriptors
	}
	return Catalog()
}

func fetcherFor(cfg Settings) Fetcher {
	if cfg.Fetcher != nil {
		return cfg.Fetcher
	}
	return NewHTTPFetcher(cfg.UserAgent)
}
