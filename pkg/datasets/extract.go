// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zip"
)

// ArchiveExtractor unpacks zip and gzip-compressed tar archives. Entries that
// would land outside the destination are rejected. Tar hard links are
// written as copies of their target; symlinks and device files are skipped
// with a warning.
type ArchiveExtractor struct{}

// Extract unpacks archive into dst according to format.
func (ArchiveExtractor) Extract(ctx context.Context, archive string, format ArchiveFormat, dst string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, err := os.Stat(archive); err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}

	var err error
	switch format {
	case FormatZip:
		err = extractZip(ctx, archive, dst)
	case FormatTarGz:
		err = extractTarGz(ctx, archive, dst)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	// Filesystem failures on the destination side stay as they are; anything
	// else came from decoding the archive.
	var pe *fs.PathError
	var afe *ArchiveFormatError
	if errors.As(err, &afe) {
		if afe.Archive == "" {
			afe.Archive, afe.Format = archive, format
		}
		return err
	}
	if errors.As(err, &pe) && pe.Path != archive {
		return err
	}
	return &ArchiveFormatError{Archive: archive, Format: format, Err: err}
}

func extractZip(ctx context.Context, archive, dst string) error {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return err
	}
	defer zr.Close()

	for _, f := range zr.File {
		if err := ctx.Err(); err != nil {
			return err
		}
		target, err := entryPath(dst, f.Name)
		if err != nil {
			return err
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case mode.IsRegular():
			rc, err := f.Open()
			if err != nil {
				return err
			}
			err = writeFile(target, rc, mode.Perm())
			rc.Close()
			if err != nil {
				return err
			}
		default:
			slog.Warn("skipping unsupported archive entry", "archive", archive, "name", f.Name, "mode", mode.String())
		}
	}
	return nil
}

func extractTarGz(ctx context.Context, archive, dst string) error {
	f, err := os.Open(archive)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		hdr, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		target, err := entryPath(dst, hdr.Name)
		if err != nil {
			return err
		}

		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(hdr.Mode).Perm()); err != nil {
				return err
			}
		case tar.TypeLink:
			if err := copyLink(dst, target, hdr); err != nil {
				return err
			}
		default:
			slog.Warn("skipping unsupported archive entry", "archive", archive, "name", hdr.Name, "type", string(hdr.Typeflag))
		}
	}
}

// copyLink writes a hard link entry as a copy of the file it points to, which
// must have been extracted earlier in the stream.
func copyLink(dst, target string, hdr *tar.Header) error {
	src, err := entryPath(dst, hdr.Linkname)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return &ArchiveFormatError{Err: fmt.Errorf("hard link %q: target %q not extracted", hdr.Name, hdr.Linkname)}
	}
	defer in.Close()
	fi, err := in.Stat()
	if err != nil {
		return err
	}
	return writeFile(target, in, fi.Mode().Perm())
}

// entryPath maps an archive entry name onto dst, refusing names that escape it.
func entryPath(dst, name string) (string, error) {
	rel := filepath.FromSlash(name)
	if !filepath.IsLocal(rel) {
		return "", &ArchiveFormatError{Err: fmt.Errorf("entry %q escapes destination", name)}
	}
	return filepath.Join(dst, rel), nil
}

func writeFile(target string, r io.Reader, perm fs.FileMode) error {
	if perm == 0 {
		perm = 0o644
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm|0o200)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
