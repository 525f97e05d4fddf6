package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/piwi3910/gerbmerge/internal/engine"
	"github.com/piwi3910/gerbmerge/internal/merge"
	"github.com/piwi3910/gerbmerge/internal/project"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

const version = "0.1.0"

type flags struct {
	placeFile      string
	randomSearch   bool
	fullSearch     bool
	subsetSize     int
	searchTimeout  float64
	noTrimGerber   bool
	noTrimExcellon bool
	octagons       string
	seed           int64
	workers        int
	outputDir      string
	verbose        bool
	defaults       string
	dumpConfig     bool
	saveDefaults   bool
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	cmd := &cobra.Command{
		Use:   "gerbmerge [flags] <config.yaml> [layout-file]",
		Short: "Merge PCB Gerber and Excellon files into one panel",
		Long: `gerbmerge panelizes several printed circuit boards: it arranges the jobs
listed in a configuration file on one panel and writes merged Gerber layers,
a merged Excellon drill file and tool list, and optional drawings and reports.

Examples:
  gerbmerge panel.yaml                            # hybrid placement search
  gerbmerge --full-search panel.yaml              # exhaustive search
  gerbmerge --random-search --search-timeout 60 panel.yaml
  gerbmerge panel.yaml layout.txt                 # rows from a layout file
  gerbmerge --place-file merged.placement.txt panel.yaml`,
		Version:       version,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, f, args)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.placeFile, "place-file", "", "use the absolute placement in this file instead of searching")
	fl.BoolVar(&f.randomSearch, "random-search", false, "search random arrangements")
	fl.BoolVar(&f.fullSearch, "full-search", false, "search every arrangement")
	fl.IntVar(&f.subsetSize, "rs-fsjobs", 0, "jobs placed exhaustively after each random prefix (hybrid search)")
	fl.Float64Var(&f.searchTimeout, "search-timeout", 0, "stop searching after this many seconds (0 = no limit)")
	fl.BoolVar(&f.noTrimGerber, "no-trim-gerber", false, "do not clip Gerber data to the board outline")
	fl.BoolVar(&f.noTrimExcellon, "no-trim-excellon", false, "do not drop drill hits outside the board outline")
	fl.StringVar(&f.octagons, "octagons", "", "octagon orientation: normal or rotate")
	fl.Int64Var(&f.seed, "seed", 0, "random search seed")
	fl.IntVar(&f.workers, "workers", 0, "search workers (0 = one per CPU, or one when iterations are capped)")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "directory for the merged files")
	fl.BoolVarP(&f.verbose, "verbose", "v", false, "verbose output")
	fl.StringVar(&f.defaults, "defaults", "", "user defaults file (default ~/.gerbmerge/defaults.yaml)")
	fl.BoolVar(&f.dumpConfig, "dump-config", false, "print the effective configuration and exit")
	fl.BoolVar(&f.saveDefaults, "save-defaults", false, "store the effective settings, without jobs, as user defaults and exit")
	cmd.MarkFlagsMutuallyExclusive("random-search", "full-search")
	cmd.MarkFlagsMutuallyExclusive("place-file", "random-search")
	cmd.MarkFlagsMutuallyExclusive("place-file", "full-search")
	return cmd
}

func run(cmd *cobra.Command, f *flags, args []string) error {
	if f.placeFile != "" && len(args) == 2 {
		return fmt.Errorf("a placement file and a layout file cannot be used together")
	}

	defaultsPath := f.defaults
	if defaultsPath == "" {
		defaultsPath = project.DefaultDefaultsPath()
	}
	cfg, err := project.Load(args[0], defaultsPath)
	if err != nil {
		return err
	}
	if err := applyFlags(cmd, f, cfg); err != nil {
		return err
	}

	if f.dumpConfig {
		return project.Write(cmd.OutOrStdout(), cfg)
	}
	if f.saveDefaults {
		if err := project.SaveDefaults(defaultsPath, *cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "defaults saved to %s\n", defaultsPath)
		return nil
	}

	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	opts := merge.Options{
		PlaceFile: f.placeFile,
		Logger:    slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})),
		Stdout:    cmd.OutOrStdout(),
		Locale:    localeFromEnv(),
	}
	if len(args) == 2 {
		opts.LayoutFile = args[1]
	}

	res, err := merge.Run(cmd.Context(), cfg, opts)
	if res != nil {
		for _, file := range res.Files {
			opts.Logger.Debug("wrote", "file", file)
		}
	}
	return err
}

// applyFlags overrides configuration values with the flags that were set.
func applyFlags(cmd *cobra.Command, f *flags, cfg *project.Config) error {
	changed := cmd.Flags().Changed
	switch {
	case f.randomSearch:
		cfg.Search.Strategy = string(engine.StrategyRandom)
	case f.fullSearch:
		cfg.Search.Strategy = string(engine.StrategyExhaustive)
	}
	if changed("rs-fsjobs") {
		if f.subsetSize < 1 {
			return fmt.Errorf("--rs-fsjobs must be at least 1")
		}
		cfg.Search.SubsetSize = f.subsetSize
	}
	if changed("search-timeout") {
		if f.searchTimeout < 0 {
			return fmt.Errorf("--search-timeout must not be negative")
		}
		cfg.Search.TimeoutSeconds = f.searchTimeout
	}
	if f.noTrimGerber {
		cfg.Trim.Gerber = false
	}
	if f.noTrimExcellon {
		cfg.Trim.Excellon = false
	}
	if changed("octagons") {
		if f.octagons != "normal" && f.octagons != "rotate" {
			return fmt.Errorf("--octagons must be normal or rotate, got %q", f.octagons)
		}
		cfg.Octagons = f.octagons
	}
	if changed("seed") {
		cfg.Search.Seed = f.seed
	}
	if changed("workers") {
		cfg.Search.Workers = f.workers
	}
	if f.outputDir != "" {
		cfg.Outputs.Dir = f.outputDir
	}
	return nil
}

// localeFromEnv picks the statistics locale from LC_ALL, LC_NUMERIC or LANG.
func localeFromEnv() language.Tag {
	for _, key := range []string{"LC_ALL", "LC_NUMERIC", "LANG"} {
		v := os.Getenv(key)
		if v == "" || v == "C" || v == "POSIX" {
			continue
		}
		v, _, _ = strings.Cut(v, ".")
		if tag, err := language.Parse(strings.ReplaceAll(v, "_", "-")); err == nil {
			return tag
		}
	}
	return language.English
}
