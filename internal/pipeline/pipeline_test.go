package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/couchcryptid/flood-impact-engine/internal/observability"
	"github.com/couchcryptid/flood-impact-engine/internal/pipeline"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockExporter struct {
	name string
	err  error

	mu      sync.Mutex
	batches []domain.Batch
}

func (m *mockExporter) Name() string { return m.name }

func (m *mockExporter) Export(_ context.Context, batch domain.Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, batch)
	return m.err
}

func ptr(v float64) *float64 { return &v }

func square(lon, lat float64) *domain.RawGeometry {
	const s = 0.0001
	return &domain.RawGeometry{
		Type: domain.GeometryPolygon,
		Polygons: []domain.Polygon{{domain.Ring{
			{Lon: lon, Lat: lat},
			{Lon: lon + s, Lat: lat},
			{Lon: lon + s, Lat: lat + s},
			{Lon: lon, Lat: lat + s},
			{Lon: lon, Lat: lat},
		}}},
	}
}

// workedExample holds A (ground 0, height 10), B (5, 5) and C (12, 3).
func workedExample(t *testing.T) *domain.Dataset {
	t.Helper()
	raws := []domain.RawBuilding{
		{ID: "A", Geometry: square(139.70, 35.68), Height: ptr(10), GroundHeight: ptr(0)},
		{ID: "B", Geometry: square(139.71, 35.68), Height: ptr(5), GroundHeight: ptr(5)},
		{ID: "C", Geometry: square(139.72, 35.68), Height: ptr(3), GroundHeight: ptr(12)},
	}
	ds, err := domain.NewDataset("example", domain.CRS, raws, nil)
	require.NoError(t, err)
	return ds
}

func newRunner(workers int) (*pipeline.Runner, *observability.Metrics) {
	m := observability.NewMetricsForTesting()
	return pipeline.NewRunner(workers, slog.Default(), m), m
}

// --- tests ---

func TestRunner_Simulate(t *testing.T) {
	r, m := newRunner(1)
	ds := workedExample(t)

	res, cls := r.Simulate(context.Background(), ds, 6)

	assert.InDelta(t, 200.0/3, res.AffectedPercentage, 1e-9)
	res.AffectedPercentage = 0
	assert.Equal(t, domain.FloodResult{
		WaterLevel:       6,
		TotalBuildings:   3,
		PartiallyFlooded: 2,
		SafeBuildings:    1,
		MaxFloodDepth:    6,
	}, res)
	assert.Equal(t, domain.StatusPartial, cls["A"].Status)
	assert.Equal(t, domain.StatusPartial, cls["B"].Status)
	assert.Equal(t, domain.StatusSafe, cls["C"].Status)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.SimulationsTotal), 0)
	assert.InDelta(t, 3.0, testutil.ToFloat64(m.BuildingsClassified), 0)
}

func TestRunner_Run_PreservesOrderAndDuplicates(t *testing.T) {
	r, m := newRunner(4)
	ds := workedExample(t)
	levels := []float64{10, 0, 6, 10, 3.5, 0}

	got, err := r.Run(context.Background(), ds, levels)
	require.NoError(t, err)
	require.Len(t, got, len(levels))

	for i, level := range levels {
		want := domain.Aggregate(level, domain.Classify(ds, level))
		if diff := cmp.Diff(want, got[i]); diff != "" {
			t.Errorf("level %d (%v) mismatch (-want +got):\n%s", i, level, diff)
		}
	}
	assert.Equal(t, got[0], got[3])
	assert.Equal(t, 2, got[0].FloodedBuildings)
	assert.InDelta(t, float64(len(levels)), testutil.ToFloat64(m.SimulationsTotal), 0)
}

func TestRunner_Run_MatchesSequential(t *testing.T) {
	ds := workedExample(t)
	levels := make([]float64, 0, 60)
	for l := -1.0; l < 20; l += 0.35 {
		levels = append(levels, l)
	}

	seq, _ := newRunner(1)
	par, _ := newRunner(8)

	want, err := seq.Run(context.Background(), ds, levels)
	require.NoError(t, err)
	got, err := par.Run(context.Background(), ds, levels)
	require.NoError(t, err)

	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parallel run differs (-seq +par):\n%s", diff)
	}
}

func TestRunner_Run_EmptyLevels(t *testing.T) {
	r, _ := newRunner(2)

	got, err := r.Run(context.Background(), workedExample(t), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRunner_Run_Cancelled(t *testing.T) {
	r, _ := newRunner(2)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := r.Run(ctx, workedExample(t), []float64{1, 2, 3})
	require.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

func TestRunner_Export_FansOut(t *testing.T) {
	r, m := newRunner(1)
	ds := workedExample(t)
	results, err := r.Run(context.Background(), ds, []float64{0, 6})
	require.NoError(t, err)

	a := &mockExporter{name: "file"}
	b := &mockExporter{name: "kafka"}
	batch := pipeline.NewBatch(ds, results)

	require.NoError(t, r.Export(context.Background(), batch, a, b))

	require.Len(t, a.batches, 1)
	require.Len(t, b.batches, 1)
	assert.Equal(t, batch, a.batches[0])
	assert.NotEmpty(t, batch.RunID)
	assert.Equal(t, ds.ID(), batch.DatasetID)
	assert.Equal(t, "example", batch.Dataset)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("kafka", "success")), 0)
}

func TestRunner_Export_FailureKeepsResults(t *testing.T) {
	r, m := newRunner(1)
	ds := workedExample(t)
	results, err := r.Run(context.Background(), ds, []float64{6})
	require.NoError(t, err)
	snapshot := append([]domain.FloodResult(nil), results...)

	perr := &domain.PersistenceError{Destination: "/readonly/out.json", Err: errors.New("permission denied")}
	bad := &mockExporter{name: "file", err: perr}
	good := &mockExporter{name: "kafka"}

	err = r.Export(context.Background(), pipeline.NewBatch(ds, results), bad, good)

	var got *domain.PersistenceError
	require.ErrorAs(t, err, &got)
	assert.Equal(t, "/readonly/out.json", got.Destination)
	assert.Len(t, good.batches, 1, "later exporters still run")
	assert.Equal(t, snapshot, results)
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.Exports.WithLabelValues("file", "error")), 0)
}

func TestNewBatch_DistinctRunIDs(t *testing.T) {
	ds := workedExample(t)
	assert.NotEqual(t, pipeline.NewBatch(ds, nil).RunID, pipeline.NewBatch(ds, nil).RunID)
}

func TestRunner_Readiness(t *testing.T) {
	r, _ := newRunner(1)
	require.Error(t, r.CheckReadiness(context.Background()))

	r.Simulate(context.Background(), workedExample(t), 0)
	require.NoError(t, r.CheckReadiness(context.Background()))
}

func TestRunner_Layer(t *testing.T) {
	r, _ := newRunner(1)
	ds := workedExample(t)

	res, layer := r.Layer(context.Background(), ds, 10)

	assert.Equal(t, 2, res.FloodedBuildings)
	assert.Equal(t, domain.StyleVersion, layer.StyleVersion)
	require.Len(t, layer.Features, 3)
	assert.Equal(t, "A", layer.Features[0].ID)
	assert.Equal(t, domain.StatusFlooded, layer.Features[0].FloodStatus)
	assert.InDelta(t, 10.0, layer.Features[0].Elevation, 0)
	assert.Equal(t, domain.StatusSafe, layer.Features[2].FloodStatus)
}
