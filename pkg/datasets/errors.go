// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"errors"
	"fmt"
)

// Common errors returned by the library.
var (
	// ErrInvalidDescriptor is returned when a Descriptor is incomplete or its
	// expected paths do not live under its extracted root.
	ErrInvalidDescriptor = errors.New("invalid dataset descriptor")

	// ErrMissingPath is matched by every ConsistencyError.
	ErrMissingPath = errors.New("expected path does not exist")
)

// ConsistencyError is returned when a path that an operation should have
// produced is absent afterwards.
type ConsistencyError struct {
	Dataset string
	Path    string
	Stage   string // "resolve", "extract", "verify"
}

func (e *ConsistencyError) Error() string {
	if e.Dataset == "" {
		return fmt.Sprintf("%s: missing %s", e.Stage, e.Path)
	}
	return fmt.Sprintf("%s %s: missing %s", e.Stage, e.Dataset, e.Path)
}

// Is implements errors.Is so callers can test against ErrMissingPath.
func (e *ConsistencyError) Is(target error) bool {
	return target == ErrMissingPath
}

// TransportError wraps a failed archive download.
type TransportError struct {
	URL        string
	StatusCode int // 0 when the request never produced a response
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ArchiveFormatError is returned when an archive cannot be decoded, for
// example after an interrupted download left a truncated file behind.
type ArchiveFormatError struct {
	Archive string
	Format  ArchiveFormat
	Err     error
}

func (e *ArchiveFormatError) Error() string {
	return fmt.Sprintf("bad %s archive %s: %v", e.Format, e.Archive, e.Err)
}

func (e *ArchiveFormatError) Unwrap() error {
	return e.Err
}

// FetchError wraps a failure reported by a FaceLoader.
type FetchError struct {
	Loader string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s loader: %v", e.Loader, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
