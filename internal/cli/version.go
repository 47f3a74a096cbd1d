// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bodaay/notebook-datasets/internal/lfw"
	"github.com/bodaay/notebook-datasets/pkg/datasets"
)

// BuildInfo describes this binary and the datasets it knows how to fetch.
type BuildInfo struct {
	Version  string
	Go       string
	Platform string
	Commit   string
	Built    string
	Datasets []string
}

// ReadBuildInfo collects build metadata. Commit and Built come from the VCS
// stamp the Go toolchain embeds and are "unknown" outside a checkout.
func ReadBuildInfo(version string) BuildInfo {
	info := BuildInfo{
		Version:  version,
		Go:       runtime.Version(),
		Platform: runtime.GOOS + "/" + runtime.GOARCH,
		Commit:   "unknown",
		Built:    "unknown",
	}
	for _, d := range datasets.Catalog() {
		info.Datasets = append(info.Datasets, d.Name)
	}
	info.Datasets = append(info.Datasets, lfw.Descriptor().Name)

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value[:min(len(s.Value), 7)]
		case "vcs.time":
			info.Built = s.Value
		}
	}
	return info
}

// Write prints the multi-line report shown by "fetchdata version".
func (b BuildInfo) Write(w io.Writer) {
	fmt.Fprintf(w, "fetchdata %s\n", b.Version)
	for _, row := range [][2]string{
		{"Go", b.Go},
		{"OS/Arch", b.Platform},
		{"Commit", b.Commit},
		{"Built", b.Built},
		{"Datasets", strings.Join(b.Datasets, ", ")},
	} {
		fmt.Fprintf(w, "  %-9s %s\n", row[0]+":", row[1])
	}
}

func newVersionCmd(version string) *cobra.Command {
	var short bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version, build and dataset information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			info := ReadBuildInfo(version)
			if short {
				fmt.Fprintln(cmd.OutOrStdout(), info.Version)
				return
			}
			info.Write(cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")

	return cmd
}
