// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package datasets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// DefaultUserAgent is sent when HTTPFetcher.UserAgent is empty.
const DefaultUserAgent = "notebook-datasets/1"

// HTTPFetcher downloads archives with a plain GET. There is no retry and no
// overall timeout; cancel the context to abort.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
}

// NewHTTPFetcher returns a fetcher with a proxy-aware client.
func NewHTTPFetcher(userAgent string) *HTTPFetcher {
	return &HTTPFetcher{Client: buildHTTPClient(), UserAgent: userAgent}
}

// buildHTTPClient creates an HTTP client with sensible transport defaults.
func buildHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: tr}
}

// Fetch streams url into dst+".part" and renames it to dst once the body has
// been read completely. On failure the partial file is removed.
func (f *HTTPFetcher) Fetch(ctx context.Context, url, dst string, emit ProgressFunc) error {
	if emit == nil {
		emit = func(ProgressEvent) {}
	}
	client := f.Client
	if client == nil {
		client = buildHTTPClient()
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	req.Header.Set("User-Agent", defaultString(f.UserAgent, DefaultUserAgent))

	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}

	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}

	pr := newProgressReader(resp.Body, resp.ContentLength, dst, emit)
	_, cerr := io.Copy(out, pr)
	if err := out.Close(); cerr == nil {
		cerr = err
	}
	if cerr != nil {
		_ = os.Remove(tmp)
		if pr.err != nil {
			return &TransportError{URL: url, Err: pr.err}
		}
		return fmt.Errorf("write %s: %w", dst, cerr)
	}

	return os.Rename(tmp, dst)
}

// progressReader wraps a response body and emits throttled progress events.
// It remembers read failures so they can be told apart from write failures.
type progressReader struct {
	reader     io.Reader
	total      int64
	downloaded int64
	path       string
	emit       ProgressFunc
	lastEmit   time.Time
	interval   time.Duration
	err        error
}

func newProgressReader(r io.Reader, total int64, path string, emit ProgressFunc) *progressReader {
	if total < 0 {
		total = 0
	}
	return &progressReader{
		reader:   r,
		total:    total,
		path:     path,
		emit:     emit,
		lastEmit: time.Now(),
		interval: 200 * time.Millisecond,
	}
}

func (pr *progressReader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.downloaded += int64(n)
		if time.Since(pr.lastEmit) >= pr.interval || err == io.EOF {
			pr.emit(ProgressEvent{
				Event:      "download_progress",
				Path:       pr.path,
				Downloaded: pr.downloaded,
				Total:      pr.total,
			})
			pr.lastEmit = time.Now()
		}
	}
	if err != nil && err != io.EOF {
		pr.err = err
	}
	return n, err
}

// defaultString returns s if non-empty, otherwise def.
func defaultString(s string, def string) string {
	if s == "" {
		return def
	}
	return s
}
