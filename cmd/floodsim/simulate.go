package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/couchcryptid/flood-impact-engine/internal/adapter/file"
	"github.com/couchcryptid/flood-impact-engine/internal/adapter/geojson"
	kafkaadapter "github.com/couchcryptid/flood-impact-engine/internal/adapter/kafka"
	"github.com/couchcryptid/flood-impact-engine/internal/dataset"
	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/couchcryptid/flood-impact-engine/internal/pipeline"
	"golang.org/x/term"
)

func (a *app) simulate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	city := fs.String("city", a.cfg.DefaultCity, "city whose buildings to load")
	level := fs.Float64("level", 10, "water level in metres")
	dataDir := fs.String("data", a.cfg.DataDir, "building data directory")
	outDir := fs.String("output", a.cfg.OutputDir, "output directory")
	asJSON := fs.Bool("json", false, "print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkLevel(*level); err != nil {
		return err
	}
	a.cfg.DataDir = *dataDir

	loaded, err := dataset.NewLoader(a.cfg, a.logger, a.metrics).LoadOrSynthesize(ctx, *city)
	if err != nil {
		return err
	}
	ds := loaded.Dataset
	runner := pipeline.NewRunner(1, a.logger, a.metrics)

	res, buildings := runner.Annotated(ctx, ds, *level)

	resultPath := filepath.Join(*outDir, file.ResultName(ds.Name(), *level))
	if err := file.WriteJSON(resultPath, res); err != nil {
		return err
	}
	layerPath := filepath.Join(*outDir, file.ClassifiedName(ds.Name(), *level))
	if err := file.WriteAtomic(layerPath, func(w io.Writer) error {
		return geojson.WriteClassified(w, *level, buildings)
	}); err != nil {
		return err
	}
	a.logger.Info("simulation written", "result", resultPath, "layer", layerPath)

	return a.print(*asJSON, ds, []domain.FloodResult{res})
}

func (a *app) batch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	city := fs.String("city", a.cfg.DefaultCity, "city whose buildings to load")
	levelList := fs.String("levels", "5,10,15,20", "comma-separated water levels in metres")
	dataDir := fs.String("data", a.cfg.DataDir, "building data directory")
	outDir := fs.String("output", a.cfg.OutputDir, "output directory")
	asJSON := fs.Bool("json", false, "print the results as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	levels, err := parseLevels(*levelList)
	if err != nil {
		return err
	}
	a.cfg.DataDir = *dataDir

	loaded, err := dataset.NewLoader(a.cfg, a.logger, a.metrics).LoadOrSynthesize(ctx, *city)
	if err != nil {
		return err
	}
	ds := loaded.Dataset
	runner := pipeline.NewRunner(a.cfg.BatchWorkers, a.logger, a.metrics)

	results, err := runner.Run(ctx, ds, levels)
	if err != nil {
		return err
	}
	for _, r := range results {
		if err := file.WriteJSON(filepath.Join(*outDir, file.ResultName(ds.Name(), r.WaterLevel)), r); err != nil {
			return err
		}
	}

	exporters := []pipeline.Exporter{file.NewExporter(filepath.Join(*outDir, file.BatchSummaryName(ds.Name())))}
	if a.cfg.KafkaEnabled {
		w := kafkaadapter.NewResultWriter(a.cfg, a.logger)
		defer func() {
			if err := w.Close(); err != nil {
				a.logger.Error("kafka writer close error", "error", err)
			}
		}()
		exporters = append(exporters, w)
	}

	// Print before exporting so a failed export still shows the results.
	if err := a.print(*asJSON, ds, results); err != nil {
		return err
	}
	return runner.Export(ctx, pipeline.NewBatch(ds, results), exporters...)
}

// print renders results as an aligned table on a terminal and as JSON
// otherwise.
func (a *app) print(asJSON bool, ds *domain.Dataset, results []domain.FloodResult) error {
	if asJSON || !isTerminal(a.stdout) {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}
	return writeTable(a.stdout, ds, results)
}

func writeTable(w io.Writer, ds *domain.Dataset, results []domain.FloodResult) error {
	fmt.Fprintf(w, "%s (%d buildings, dataset %s)\n\n", ds.Name(), ds.Len(), ds.ID())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "level (m)\tflooded\tpartial\tsafe\taffected %\tmax depth (m)\t")
	for _, r := range results {
		fmt.Fprintf(tw, "%g\t%d\t%d\t%d\t%.1f\t%.2f\t\n",
			r.WaterLevel, r.FloodedBuildings, r.PartiallyFlooded, r.SafeBuildings, r.AffectedPercentage, r.MaxFloodDepth)
	}
	return tw.Flush()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func parseLevels(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	levels := make([]float64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid water level %q", p)
		}
		if err := checkLevel(v); err != nil {
			return nil, err
		}
		levels = append(levels, v)
	}
	if len(levels) == 0 {
		return nil, fmt.Errorf("no water levels in %q", s)
	}
	return levels, nil
}

func checkLevel(v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("water level must be finite, got %v", v)
	}
	return nil
}
