// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bodaay/notebook-datasets/internal/lfw"
	"github.com/bodaay/notebook-datasets/internal/logging"
	"github.com/bodaay/notebook-datasets/internal/tui"
	"github.com/bodaay/notebook-datasets/pkg/datasets"
)

// RootOpts holds global CLI options.
type RootOpts struct {
	JSONOut   bool
	Quiet     bool
	Verbose   bool
	Config    string
	LogFile   string
	LogLevel  string
	UserAgent string

	logCloser     io.Closer
	levelExplicit bool
	unknownKeys   []string
	configFile    string
}

// Execute runs the CLI with the given version string.
func Execute(version string) error {
	ro := &RootOpts{}
	ctx, cancel := signalContext(context.Background())
	defer cancel()
	defer ro.closeLog()

	root := newRootCmd(ctx, ro, version)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		return err
	}
	return nil
}

func newRootCmd(ctx context.Context, ro *RootOpts, version string) *cobra.Command {
	root := &cobra.Command{
		Use:           "fetchdata",
		Short:         "Download and extract the datasets used by the example notebooks",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	// Global flags
	root.PersistentFlags().BoolVar(&ro.JSONOut, "json", false, "Emit machine-readable JSON events")
	root.PersistentFlags().BoolVarP(&ro.Quiet, "quiet", "q", false, "Quiet mode (plain status lines, warnings only in logs)")
	root.PersistentFlags().BoolVarP(&ro.Verbose, "verbose", "v", false, "Verbose logs (debug details)")
	root.PersistentFlags().StringVar(&ro.Config, "config", "", "Path to config file (JSON or YAML)")
	root.PersistentFlags().StringVar(&ro.LogFile, "log-file", "", "Write JSON logs to a rotating file (in addition to stderr)")
	root.PersistentFlags().StringVar(&ro.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&ro.UserAgent, "user-agent", datasets.DefaultUserAgent, "User-Agent header for archive downloads")

	fetchCmd := newFetchCmd(ctx, ro)
	root.AddCommand(fetchCmd)
	root.AddCommand(newVersionCmd(version))
	root.AddCommand(newConfigCmd())

	// fetch is the default command
	root.PreRunE = fetchCmd.PreRunE
	root.RunE = fetchCmd.RunE
	root.Flags().AddFlagSet(fetchCmd.Flags())
	root.SetHelpCommand(&cobra.Command{Use: "help", Hidden: true})

	return root
}

func newFetchCmd(ctx context.Context, ro *RootOpts) *cobra.Command {
	var dryRun bool
	var planFmt string

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Make every dataset available under notebooks/datasets",
		Long: `Resolves notebooks/datasets next to this executable (extracting a
pre-staged notebooks/datasets.zip when present), then downloads and extracts
Sentiment140 and IMDb if they are missing, and finally fetches the Labeled
Faces in the Wild pictures.

Archives are kept after extraction. A dataset whose folder already exists is
never downloaded or extracted again; only its expected files are checked.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := applyConfigDefaults(cmd, ro); err != nil {
				return err
			}
			if err := ro.setupLogging(); err != nil {
				return err
			}
			for _, key := range ro.unknownKeys {
				slog.Warn("unknown config key", "key", key, "file", ro.configFile)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := datasets.Settings{UserAgent: ro.UserAgent}

			if dryRun {
				// The face loader materializes its archive under the same root.
				cfg.Descriptors = append(datasets.Catalog(), lfw.Descriptor())
				plans, err := datasets.PlanAll(cfg)
				if err != nil {
					return err
				}
				return printPlans(cmd.OutOrStdout(), plans, strings.ToLower(planFmt) == "json" || ro.JSONOut)
			}

			out := cmd.OutOrStdout()
			var progress datasets.ProgressFunc
			if ro.JSONOut {
				progress = jsonProgress(out)
			} else if ro.Quiet {
				progress = cliProgress(out)
			} else {
				ui := tui.NewRenderer(out)
				defer ui.Close()
				progress = ui.Handler()
			}

			fetcher := datasets.NewHTTPFetcher(ro.UserAgent)
			extractor := datasets.ArchiveExtractor{}
			cfg.Fetcher = fetcher
			cfg.Extractor = extractor
			cfg.Faces = lfw.New(datasets.NewMaterializer(fetcher, extractor, progress))
			cfg.FaceParams = datasets.DefaultFaceParams()

			return datasets.Run(ctx, cfg, progress)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan only: print what would be downloaded or extracted and exit")
	cmd.Flags().StringVar(&planFmt, "plan-format", "table", "Plan output format for --dry-run: table|json")

	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-ch:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func (ro *RootOpts) setupLogging() error {
	level := ro.LogLevel
	switch {
	case ro.Verbose:
		level = "debug"
	case ro.Quiet && !ro.levelExplicit:
		level = "warn"
	}
	logger, closer, err := logging.New(logging.Options{Level: level, File: ro.LogFile})
	if err != nil {
		return err
	}
	ro.closeLog()
	ro.logCloser = closer
	slog.SetDefault(logger)
	return nil
}

func (ro *RootOpts) closeLog() {
	if ro.logCloser != nil {
		_ = ro.logCloser.Close()
		ro.logCloser = nil
	}
}

// configPaths lists the default config locations in lookup order.
func configPaths() []string {
	home, _ := os.UserHomeDir()
	dir := filepath.Join(home, ".config")
	return []string{
		filepath.Join(dir, "fetchdata.json"),
		filepath.Join(dir, "fetchdata.yaml"),
		filepath.Join(dir, "fetchdata.yml"),
	}
}

// applyConfigDefaults fills flags the user did not set from the config file.
// Unknown keys are recorded for logging once the logger is installed.
func applyConfigDefaults(cmd *cobra.Command, ro *RootOpts) error {
	ro.levelExplicit = cmd.Flags().Changed("log-level")
	ro.unknownKeys = nil

	path := ro.Config
	if path == "" {
		path = findConfig()
	}
	if path == "" {
		return nil
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var cfg map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("invalid YAML config file: %w", err)
		}
	default: // .json or unknown
		if err := json.Unmarshal(b, &cfg); err != nil {
			return fmt.Errorf("invalid JSON config file: %w", err)
		}
	}

	ro.configFile = path
	for key := range cfg {
		if _, ok := DefaultConfig()[key]; !ok {
			ro.unknownKeys = append(ro.unknownKeys, key)
		}
	}
	sort.Strings(ro.unknownKeys)

	setStr := func(flagName string, set func(string)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName]; ok && v != nil {
			set(fmt.Sprint(v))
		}
	}
	setBool := func(flagName string, set func(bool)) {
		if cmd.Flags().Changed(flagName) {
			return
		}
		if v, ok := cfg[flagName].(bool); ok {
			set(v)
		}
	}

	setStr("log-level", func(v string) {
		ro.LogLevel = v
		ro.levelExplicit = true
	})
	setStr("log-file", func(v string) { ro.LogFile = v })
	setStr("user-agent", func(v string) { ro.UserAgent = v })
	setBool("quiet", func(v bool) { ro.Quiet = v })
	setBool("json", func(v bool) { ro.JSONOut = v })

	return nil
}

func printPlans(w io.Writer, plans []*datasets.Plan, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(plans)
	}
	for _, p := range plans {
		action := "ready"
		switch {
		case p.Download:
			action = "download + extract"
		case p.Extract:
			action = "extract"
		}
		if p.Source != "" {
			action += " (from " + p.Source + ")"
		}
		fmt.Fprintf(w, "%-14s %-32s %s\n", p.Dataset, action, p.ExtractedRoot)
	}
	return nil
}

// cliProgress returns a terse text progress handler.
func cliProgress(w io.Writer) datasets.ProgressFunc {
	return func(ev datasets.ProgressEvent) {
		switch ev.Event {
		case "resolve", "download_start", "archive_found", "extract_start":
			fmt.Fprintln(w, ev.Message)
		case "dataset_done":
			fmt.Fprintf(w, "done: %s\n", ev.Dataset)
		case "faces_done":
			fmt.Fprintln(w, "done: faces")
		case "done":
			fmt.Fprintln(w, ev.Message)
		}
	}
}

// jsonProgress returns a JSON-lines progress handler.
func jsonProgress(w io.Writer) datasets.ProgressFunc {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	var mu sync.Mutex
	return func(ev datasets.ProgressEvent) {
		mu.Lock()
		_ = enc.Encode(ev)
		mu.Unlock()
	}
}
