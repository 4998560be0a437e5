package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/flood-impact-engine/internal/dataset"
	"github.com/couchcryptid/flood-impact-engine/internal/domain"
)

// info prints the effective configuration, how many files the data directory
// holds and which source the default city would load from.
func (a *app) info(args []string) error {
	flags := flag.NewFlagSet("info", flag.ContinueOnError)
	dataDir := flags.String("data", a.cfg.DataDir, "building data directory")
	if err := flags.Parse(args); err != nil {
		return err
	}
	a.cfg.DataDir = *dataDir

	files, err := countDataFiles(a.cfg.DataDir)
	if err != nil {
		return err
	}

	source := "none"
	path, src, err := dataset.NewLoader(a.cfg, a.logger, a.metrics).Resolve(a.cfg.DefaultCity)
	switch {
	case err == nil:
		source = fmt.Sprintf("%s (%s)", path, src)
	case errors.Is(err, domain.ErrDataUnavailable):
		if a.cfg.SyntheticFallback {
			source = fmt.Sprintf("%s (seed %d, %d buildings)", dataset.SourceSynthetic, a.cfg.SyntheticSeed, a.cfg.SyntheticCount)
		}
	default:
		return err
	}

	kafka := "disabled"
	if a.cfg.KafkaEnabled {
		kafka = fmt.Sprintf("%s -> %s", strings.Join(a.cfg.KafkaBrokers, ","), a.cfg.KafkaResultsTopic)
	}
	tracing := "disabled"
	if a.cfg.TracingEnabled {
		tracing = fmt.Sprintf("%s (%s)", a.cfg.TracingExporter, a.cfg.TracingServiceName)
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	for _, row := range [][2]string{
		{"data dir", a.cfg.DataDir},
		{"data files", fmt.Sprint(files)},
		{"output dir", a.cfg.OutputDir},
		{"default city", a.cfg.DefaultCity},
		{"default source", source},
		{"http addr", a.cfg.HTTPAddr},
		{"batch workers", fmt.Sprint(a.cfg.BatchWorkers)},
		{"dataset cache", fmt.Sprintf("%d entries, ttl %s", a.cfg.DatasetCacheSize, a.cfg.DatasetCacheTTL)},
		{"kafka", kafka},
		{"tracing", tracing},
	} {
		fmt.Fprintf(tw, "%s:\t%s\n", row[0], row[1])
	}
	return tw.Flush()
}

// countDataFiles counts regular files under dir. A missing directory holds
// none.
func countDataFiles(dir string) (int, error) {
	n := 0
	err := filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			n++
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("scan data dir: %w", err)
	}
	return n, nil
}
