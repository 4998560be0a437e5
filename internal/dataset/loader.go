// Package dataset resolves building sources for a city, falls back to
// synthetic data when none exist, and caches the resulting datasets.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/couchcryptid/flood-impact-engine/internal/adapter/elevation"
	"github.com/couchcryptid/flood-impact-engine/internal/adapter/geojson"
	"github.com/couchcryptid/flood-impact-engine/internal/adapter/shapefile"
	"github.com/couchcryptid/flood-impact-engine/internal/adapter/synthetic"
	"github.com/couchcryptid/flood-impact-engine/internal/config"
	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/couchcryptid/flood-impact-engine/internal/observability"
)

// Source names where a dataset came from.
type Source string

const (
	SourceGeoJSON   Source = "geojson"
	SourceShapefile Source = "shapefile"
	SourceSynthetic Source = "synthetic"
)

// ErrInvalidCity is returned for city names that are not a plain identifier.
var ErrInvalidCity = errors.New("invalid city name")

var cityPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,63}$`)

// patterns are tried in order; the first glob with a match wins.
var patterns = []struct {
	glob   string
	source Source
}{
	{"%s_buildings.geojson", SourceGeoJSON},
	{"%s_bldg.geojson", SourceGeoJSON},
	{"*%s*bldg*.geojson", SourceGeoJSON},
	{"%s_buildings.shp", SourceShapefile},
	{"*%s*bldg*.shp", SourceShapefile},
}

// Loaded is a dataset together with where it came from.
type Loaded struct {
	Dataset *domain.Dataset
	Source  Source
	Path    string
}

// Loader builds datasets from files in a data directory.
type Loader struct {
	dir      string
	fallback bool
	seed     uint64
	count    int
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewLoader creates a loader over cfg.DataDir with the configured synthetic
// fallback.
func NewLoader(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	return &Loader{
		dir:      cfg.DataDir,
		fallback: cfg.SyntheticFallback,
		seed:     cfg.SyntheticSeed,
		count:    cfg.SyntheticCount,
		logger:   logger,
		metrics:  metrics,
	}
}

// NormalizeCity lower-cases city and checks it is safe to use in a file name.
func NormalizeCity(city string) (string, error) {
	c := strings.ToLower(strings.TrimSpace(city))
	if !cityPattern.MatchString(c) {
		return "", fmt.Errorf("%w: %q", ErrInvalidCity, city)
	}
	return c, nil
}

// Resolve returns the first source file matching the city, or
// domain.ErrDataUnavailable.
func (l *Loader) Resolve(city string) (string, Source, error) {
	c, err := NormalizeCity(city)
	if err != nil {
		return "", "", err
	}
	for _, p := range patterns {
		matches, err := filepath.Glob(filepath.Join(l.dir, fmt.Sprintf(p.glob, c)))
		if err != nil {
			return "", "", fmt.Errorf("resolve %s: %w", c, err)
		}
		if len(matches) > 0 {
			return matches[0], p.source, nil
		}
	}
	return "", "", fmt.Errorf("%w: no building file for %s in %s", domain.ErrDataUnavailable, c, l.dir)
}

// Load reads and validates the city's building file. A {city}_dem.asc grid in
// the same directory supplies ground heights records do not carry.
func (l *Loader) Load(ctx context.Context, city string) (Loaded, error) {
	if err := ctx.Err(); err != nil {
		return Loaded{}, err
	}

	path, source, err := l.Resolve(city)
	if err != nil {
		l.countError(err)
		return Loaded{}, err
	}
	c, _ := NormalizeCity(city)

	var crs string
	var raws []domain.RawBuilding
	switch source {
	case SourceShapefile:
		crs, raws, err = shapefile.ReadFile(path)
	default:
		crs, raws, err = geojson.ReadFile(path)
	}
	if err != nil {
		l.countError(err)
		return Loaded{}, fmt.Errorf("load %s: %w", path, err)
	}

	sampler, err := l.groundSampler(c)
	if err != nil {
		l.countError(err)
		return Loaded{}, err
	}

	ds, err := domain.NewDataset(c, crs, raws, sampler)
	if err != nil {
		l.countError(err)
		return Loaded{}, fmt.Errorf("load %s: %w", path, err)
	}

	l.metrics.DatasetsLoaded.WithLabelValues(string(source)).Inc()
	l.logger.Info("dataset loaded",
		"city", c,
		"source", source,
		"path", path,
		"buildings", ds.Len(),
		"dataset_id", ds.ID(),
	)
	return Loaded{Dataset: ds, Source: source, Path: path}, nil
}

// LoadOrSynthesize loads the city's data, substituting a seeded synthetic
// dataset when no source file exists and fallback is enabled. Any other error,
// including schema errors, is returned unchanged.
func (l *Loader) LoadOrSynthesize(ctx context.Context, city string) (Loaded, error) {
	loaded, err := l.Load(ctx, city)
	if err == nil || !errors.Is(err, domain.ErrDataUnavailable) || !l.fallback {
		return loaded, err
	}

	c, _ := NormalizeCity(city)
	l.logger.Warn("no building data found, generating synthetic dataset",
		"city", c,
		"seed", l.seed,
		"count", l.count,
	)
	ds, err := domain.NewDataset(c, domain.CRS, synthetic.Generate(c, l.seed, l.count), nil)
	if err != nil {
		return Loaded{}, fmt.Errorf("synthesize %s: %w", c, err)
	}
	l.metrics.DatasetsLoaded.WithLabelValues(string(SourceSynthetic)).Inc()
	return Loaded{Dataset: ds, Source: SourceSynthetic}, nil
}

func (l *Loader) groundSampler(city string) (domain.GroundSampler, error) {
	path := filepath.Join(l.dir, city+"_dem.asc")
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	grid, err := elevation.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load dem %s: %w", path, err)
	}
	l.logger.Debug("ground heights sampled from dem", "path", path, "cols", grid.NCols, "rows", grid.NRows)
	return grid, nil
}

func (l *Loader) countError(err error) {
	var schemaErr *domain.SchemaError
	switch {
	case errors.Is(err, domain.ErrDataUnavailable):
		l.metrics.DatasetErrors.WithLabelValues("unavailable").Inc()
	case errors.As(err, &schemaErr):
		l.metrics.DatasetErrors.WithLabelValues("schema").Inc()
	case errors.Is(err, ErrInvalidCity):
		l.metrics.DatasetErrors.WithLabelValues("invalid_city").Inc()
	default:
		l.metrics.DatasetErrors.WithLabelValues("io").Inc()
	}
}
