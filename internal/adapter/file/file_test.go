package file

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleBatch() domain.Batch {
	return domain.Batch{
		DatasetID: "ds-1",
		Dataset:   "tokyo",
		Results: []domain.FloodResult{
			{WaterLevel: 5, TotalBuildings: 3, PartiallyFlooded: 1, SafeBuildings: 2, AffectedPercentage: 100.0 / 3, MaxFloodDepth: 5},
			{WaterLevel: 1, TotalBuildings: 3, PartiallyFlooded: 1, SafeBuildings: 2, AffectedPercentage: 100.0 / 3, MaxFloodDepth: 1},
			{WaterLevel: 5, TotalBuildings: 3, PartiallyFlooded: 1, SafeBuildings: 2, AffectedPercentage: 100.0 / 3, MaxFloodDepth: 5},
		},
	}
}

func TestExporter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", BatchSummaryName("tokyo"))
	batch := sampleBatch()

	require.NoError(t, NewExporter(path).Export(context.Background(), batch))

	got, err := ReadResults(path)
	require.NoError(t, err)
	if diff := cmp.Diff(batch.Results, got); diff != "" {
		t.Fatalf("results changed on reload (-want +got):\n%s", diff)
	}
}

func TestExporter_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	exp := NewExporter(path)
	ctx := context.Background()

	require.NoError(t, exp.Export(ctx, sampleBatch()))
	require.NoError(t, exp.Export(ctx, domain.Batch{Results: []domain.FloodResult{{WaterLevel: 9}}}))

	got, err := ReadResults(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 9.0, got[0].WaterLevel, 0)
}

func TestExporter_EmptyBatchWritesEmptyArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")

	require.NoError(t, NewExporter(path).Export(context.Background(), domain.Batch{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(data))
}

func TestExporter_UnwritableDestination(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	path := filepath.Join(blocker, "results.json")

	batch := sampleBatch()
	err := NewExporter(path).Export(context.Background(), batch)

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, path, perr.Destination)
	assert.Len(t, batch.Results, 3, "in-memory results untouched")
}

func TestExporter_CancelledContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewExporter(path).Export(ctx, sampleBatch())

	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, path)
}

func TestWriteAtomic_FailureKeepsPreviousContentAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "layer.geojson")
	require.NoError(t, os.WriteFile(path, []byte("old"), 0o600))

	boom := errors.New("encoder exploded")
	err := WriteAtomic(path, func(w io.Writer) error {
		_, _ = w.Write([]byte("partial"))
		return boom
	})

	require.ErrorIs(t, err, boom)
	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "old", string(data))

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Len(t, entries, 1, "temporary file removed")
}

func TestReadResults_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadResults(filepath.Join(dir, "missing.json"))
	require.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = ReadResults(bad)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode results")
}

func TestNames(t *testing.T) {
	assert.Equal(t, "flood_tokyo_2.5m.json", ResultName("tokyo", 2.5))
	assert.Equal(t, "flood_nagoya_3m.geojson", ClassifiedName("nagoya", 3))
	assert.Equal(t, "batch_summary_tokyo.json", BatchSummaryName("tokyo"))
}
