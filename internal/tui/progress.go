// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

// Package tui renders run progress for humans: status lines, and a byte
// progress bar while an archive downloads on an interactive terminal.
package tui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bodaay/notebook-datasets/pkg/datasets"
)

// Renderer turns progress events into terminal output.
type Renderer struct {
	out         io.Writer
	interactive bool

	bar *pb.ProgressBar

	heading func(a ...interface{}) string
	success func(a ...interface{}) string
	muted   func(a ...interface{}) string
}

// NewRenderer writes status to out. Colour and progress bars are used only
// when out is a terminal and NO_COLOR is unset.
func NewRenderer(out io.Writer) *Renderer {
	interactive := isInteractive(out)
	noColor := !interactive || os.Getenv("NO_COLOR") != "" || strings.EqualFold(os.Getenv("TERM"), "dumb")

	paint := func(attrs ...color.Attribute) func(a ...interface{}) string {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c.SprintFunc()
	}

	return &Renderer{
		out:         out,
		interactive: interactive,
		heading:     paint(color.FgCyan, color.Bold),
		success:     paint(color.FgGreen),
		muted:       paint(color.Faint),
	}
}

// Handler returns a ProgressFunc feeding the renderer.
func (r *Renderer) Handler() datasets.ProgressFunc {
	return r.apply
}

// Close finishes any bar still on screen.
func (r *Renderer) Close() {
	r.finishBar()
}

func (r *Renderer) apply(ev datasets.ProgressEvent) {
	switch ev.Event {
	case "resolve":
		fmt.Fprintln(r.out, r.muted(capitalize(ev.Message)))
	case "dataset_start", "faces_start":
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.heading(capitalize(ev.Message)))
	case "download_start", "archive_found", "extract_start", "verify":
		fmt.Fprintln(r.out, capitalize(ev.Message)+"...")
	case "download_progress":
		r.progress(ev)
	case "download_done", "extract_done":
		r.finishBar()
	case "dataset_done", "faces_done":
		fmt.Fprintln(r.out, r.success("=> Success!"))
	case "error":
		// The command reports the error itself once it returns.
		r.finishBar()
	case "done":
		fmt.Fprintln(r.out)
		fmt.Fprintln(r.out, r.success("✓ "+ev.Message))
	}
}

func (r *Renderer) progress(ev datasets.ProgressEvent) {
	if !r.interactive {
		return
	}
	if r.bar == nil {
		r.bar = pb.New64(ev.Total)
		r.bar.SetTemplate(pb.Full)
		r.bar.SetWriter(r.out)
		r.bar.Set(pb.Bytes, true)
		r.bar.Start()
	}
	if ev.Total > 0 {
		r.bar.SetTotal(ev.Total)
	}
	r.bar.SetCurrent(ev.Downloaded)
}

func (r *Renderer) finishBar() {
	if r.bar != nil {
		r.bar.Finish()
		r.bar = nil
	}
}

func isInteractive(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
