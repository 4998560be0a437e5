// Package file persists flood results and classified layers to the local
// filesystem. Every write replaces its destination atomically.
package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
)

// ResultName is the single-level summary file name, e.g. flood_tokyo_2.5m.json.
func ResultName(city string, level float64) string {
	return fmt.Sprintf("flood_%s_%sm.json", city, formatLevel(level))
}

// ClassifiedName is the per-building GeoJSON layer file name for one level.
func ClassifiedName(city string, level float64) string {
	return fmt.Sprintf("flood_%s_%sm.geojson", city, formatLevel(level))
}

// BatchSummaryName is the batch export file name for a city.
func BatchSummaryName(city string) string {
	return fmt.Sprintf("batch_summary_%s.json", city)
}

func formatLevel(level float64) string {
	return strconv.FormatFloat(level, 'f', -1, 64)
}

// Exporter writes a batch's results as a JSON array of FloodResult objects to
// Path, overwriting whatever was there.
type Exporter struct {
	Path string
}

// NewExporter returns an exporter for path.
func NewExporter(path string) *Exporter {
	return &Exporter{Path: path}
}

// Name identifies the exporter in logs and metrics.
func (e *Exporter) Name() string { return "file" }

// Export writes batch.Results in order. Failures are *domain.PersistenceError.
func (e *Exporter) Export(ctx context.Context, batch domain.Batch) error {
	if err := ctx.Err(); err != nil {
		return &domain.PersistenceError{Destination: e.Path, Err: err}
	}
	results := batch.Results
	if results == nil {
		results = []domain.FloodResult{}
	}
	return WriteJSON(e.Path, results)
}

// ReadResults loads a JSON array written by Exporter.
func ReadResults(path string) ([]domain.FloodResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read results: %w", err)
	}
	var results []domain.FloodResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	return results, nil
}

// WriteJSON atomically writes v as indented JSON to path.
func WriteJSON(path string, v any) error {
	return WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
}

// WriteAtomic streams content into a temporary file next to path and renames
// it into place. The temporary file is closed and removed on every failure,
// and the previous contents of path survive. Errors are
// *domain.PersistenceError.
func WriteAtomic(path string, write func(io.Writer) error) (err error) {
	fail := func(e error) error {
		return &domain.PersistenceError{Destination: path, Err: e}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fail(err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fail(err)
	}
	tmpName := tmp.Name()
	closed := false
	defer func() {
		if err == nil {
			return
		}
		if !closed {
			tmp.Close() //nolint:errcheck // already failing
		}
		os.Remove(tmpName) //nolint:errcheck // best-effort cleanup
	}()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	closed = true
	if err := tmp.Close(); err != nil {
		return fail(err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fail(err)
	}
	return nil
}
