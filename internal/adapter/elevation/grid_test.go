package elevation

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const smallDEM = `ncols        3
nrows        2
xllcorner    0.0
yllcorner    0.0
cellsize     1.0
NODATA_value -9999
10 20 30
0 10 20
`

var _ domain.GroundSampler = (*Grid)(nil)

func TestParse(t *testing.T) {
	g, err := Parse(strings.NewReader(smallDEM))
	require.NoError(t, err)

	assert.Equal(t, 3, g.NCols)
	assert.Equal(t, 2, g.NRows)
	assert.True(t, g.HasNoData)
	assert.Equal(t, []float64{10, 20, 30, 0, 10, 20}, g.Values)
}

func TestParse_CenterHeaders(t *testing.T) {
	doc := "ncols 1\nnrows 1\nxllcenter 139.5\nyllcenter 35.5\ncellsize 1\n7\n"

	g, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	assert.InDelta(t, 139.0, g.XLL, 1e-12)
	assert.InDelta(t, 35.0, g.YLL, 1e-12)
	assert.False(t, g.HasNoData)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing cellsize", "ncols 1\nnrows 1\n5\n", "missing cellsize"},
		{"short data", "ncols 2\nnrows 2\ncellsize 1\n1 2 3\n", "want 4"},
		{"unknown header", "ncols 1\nbogus 1\n", "unknown key"},
		{"bad value", "ncols 1\nnrows 2\ncellsize 1\n1 x\n", "dem value 1"},
		{"zero size", "ncols 0\nnrows 1\ncellsize 1\n", "invalid dimensions"},
		{"product wraps", "ncols 4294967296\nnrows 4294967296\ncellsize 1\n", "exceeds"},
		{"huge header", "ncols 3037000500\nnrows 3037000500\ncellsize 1\n1\n", "exceeds"},
		{"too many values", "ncols 1\nnrows 1\ncellsize 1\n1 2\n", "more than 1 values"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(tc.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestSampleGround(t *testing.T) {
	g, err := Parse(strings.NewReader(smallDEM))
	require.NoError(t, err)

	tests := []struct {
		name     string
		lon, lat float64
		want     float64
		ok       bool
	}{
		{"cell centre", 0.5, 1.5, 10, true},
		{"between four centres", 1.0, 1.0, 10, true},
		{"halfway along a row", 2.0, 1.5, 25, true},
		{"edge falls back to cell", 0.1, 0.1, 0, true},
		{"corner", 3.0, 2.0, 30, true},
		{"outside west", -0.5, 1.0, 0, false},
		{"outside north", 1.0, 2.5, 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := g.SampleGround(tc.lon, tc.lat)
			assert.Equal(t, tc.ok, ok)
			assert.InDelta(t, tc.want, got, 1e-9)
		})
	}
}

func TestSampleGround_NoData(t *testing.T) {
	doc := "ncols 2\nnrows 2\nxllcorner 0\nyllcorner 0\ncellsize 1\nnodata_value -9999\n4 -9999\n8 12\n"
	g, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)

	v, ok := g.SampleGround(0.9, 1.1)
	assert.True(t, ok, "falls back to containing cell")
	assert.InDelta(t, 4.0, v, 0)

	_, ok = g.SampleGround(1.5, 1.5)
	assert.False(t, ok, "containing cell is NODATA")
}

func TestReadFile_FeedsDataset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tokyo_dem.asc")
	doc := "ncols 2\nnrows 2\nxllcorner 139.7\nyllcorner 35.6\ncellsize 0.1\n3 3\n3 3\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	g, err := ReadFile(path)
	require.NoError(t, err)

	geom := &domain.RawGeometry{Type: domain.GeometryPolygon, Polygons: []domain.Polygon{{domain.Ring{
		{Lon: 139.75, Lat: 35.65}, {Lon: 139.751, Lat: 35.65}, {Lon: 139.751, Lat: 35.651},
		{Lon: 139.75, Lat: 35.651}, {Lon: 139.75, Lat: 35.65},
	}}}}
	ds, err := domain.NewDataset("tokyo", "", []domain.RawBuilding{{ID: "a", Geometry: geom}}, g)
	require.NoError(t, err)

	rec, _ := ds.Record("a")
	assert.InDelta(t, 3.0, rec.GroundHeight, 1e-9)
}
