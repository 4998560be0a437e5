package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

// square returns a closed 4-vertex ring polygon anchored at (lon, lat).
func square(lon, lat, size float64) *RawGeometry {
	return &RawGeometry{
		Type: GeometryPolygon,
		Polygons: []Polygon{{Ring{
			{Lon: lon, Lat: lat},
			{Lon: lon + size, Lat: lat},
			{Lon: lon + size, Lat: lat + size},
			{Lon: lon, Lat: lat + size},
			{Lon: lon, Lat: lat},
		}}},
	}
}

func building(id string, ground, height float64) RawBuilding {
	return RawBuilding{
		ID:           id,
		Geometry:     square(139.70, 35.68, 0.0001),
		Height:       ptr(height),
		GroundHeight: ptr(ground),
	}
}

// workedExample is the A/B/C reference dataset used across tests.
func workedExample(t *testing.T) *Dataset {
	t.Helper()
	ds, err := NewDataset("example", CRS, []RawBuilding{
		building("A", 0, 10),
		building("B", 5, 5),
		building("C", 12, 3),
	}, nil)
	require.NoError(t, err)
	return ds
}

// terrainDataset spreads grounds and heights so thresholds are crossed at
// many different levels.
func terrainDataset(t *testing.T) *Dataset {
	t.Helper()
	raws := make([]RawBuilding, 0, 40)
	for i := 0; i < 40; i++ {
		ground := float64(i%9) * 1.5
		height := 3 + float64(i%7)*4
		raws = append(raws, RawBuilding{
			Geometry:     square(139.7+float64(i)*0.0002, 35.68, 0.0001),
			Height:       ptr(height),
			GroundHeight: ptr(ground),
		})
	}
	ds, err := NewDataset("terrain", CRS, raws, nil)
	require.NoError(t, err)
	return ds
}
