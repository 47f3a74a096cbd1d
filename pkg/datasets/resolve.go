// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Layout is the fixed folder arrangement beside the install directory.
type Layout struct {
	InstallDir string `json:"installDir"`
	Notebooks  string `json:"notebooks"`
	Root       string `json:"root"`
	Bundle     string `json:"bundle"`
}

// bundleRootDir is the top-level directory a bundle must contain.
const bundleRootDir = "datasets"

// LayoutFor returns the absolute layout rooted at installDir.
func LayoutFor(installDir string) (Layout, error) {
	abs, err := filepath.Abs(installDir)
	if err != nil {
		return Layout{}, err
	}
	nb := filepath.Join(abs, "notebooks")
	return Layout{
		InstallDir: abs,
		Notebooks:  nb,
		Root:       filepath.Join(nb, bundleRootDir),
		Bundle:     filepath.Join(nb, "datasets.zip"),
	}, nil
}

// InstallDir returns the directory containing the running executable, with
// symlinks resolved.
func InstallDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

// ResolveRoot returns the datasets root under installDir, creating it when
// needed. An existing root is returned untouched. Otherwise a pre-staged
// notebooks/datasets.zip bundle is extracted into notebooks/ and must yield
// the root, or a *ConsistencyError is returned. Without a bundle an empty
// root is created.
func ResolveRoot(ctx context.Context, installDir string, x Extractor, progress ProgressFunc) (string, error) {
	if x == nil {
		x = ArchiveExtractor{}
	}
	emit := emitter(progress)

	l, err := LayoutFor(installDir)
	if err != nil {
		return "", err
	}

	ok, err := exists(l.Root)
	if err != nil {
		return "", err
	}
	if ok {
		emit(ProgressEvent{Event: "resolve", Path: l.Root, Message: "using existing dataset folder: " + l.Root})
		return l.Root, nil
	}

	bundled, err := exists(l.Bundle)
	if err != nil {
		return "", err
	}
	if !bundled {
		emit(ProgressEvent{Event: "resolve", Path: l.Root, Message: "creating datasets folder: " + l.Root})
		if err := os.MkdirAll(l.Root, 0o755); err != nil {
			return "", fmt.Errorf("create datasets folder: %w", err)
		}
		return l.Root, nil
	}

	emit(ProgressEvent{Event: "resolve", Path: l.Bundle, Message: "extracting " + l.Bundle})
	if err := x.Extract(ctx, l.Bundle, FormatZip, l.Notebooks); err != nil {
		return "", err
	}
	ok, err = exists(l.Root)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", &ConsistencyError{Path: l.Root, Stage: "resolve"}
	}
	return l.Root, nil
}
