package domain

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFillColor(t *testing.T) {
	assert.Equal(t, color.RGBA{R: 255, G: 50, B: 50, A: 200}, FillColor(StatusFlooded))
	assert.Equal(t, color.RGBA{R: 255, G: 165, B: 0, A: 200}, FillColor(StatusPartial))
	assert.Equal(t, color.RGBA{R: 50, G: 255, B: 50, A: 200}, FillColor(StatusSafe))
	assert.Equal(t, color.RGBA{R: 128, G: 128, B: 128, A: 200}, FillColor("unknown"))
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#FF0000", HexColor(StatusFlooded))
	assert.Equal(t, "#FFA500", HexColor(StatusPartial))
	assert.Equal(t, "#00FF00", HexColor(StatusSafe))
	assert.Equal(t, "#808080", HexColor(""))
}

func TestBuildLayer(t *testing.T) {
	ds := workedExample(t)
	buildings := Annotate(ds, Classify(ds, 8))

	layer := BuildLayer(8, ds.Bounds(), buildings)

	assert.Equal(t, StyleVersion, layer.StyleVersion)
	assert.InDelta(t, 8.0, layer.WaterLevel, 0)
	require.Len(t, layer.Features, 3)

	a := layer.Features[0]
	assert.Equal(t, "A", a.ID)
	assert.InDelta(t, 10.0, a.Elevation, 0, "extrusion uses building height")
	assert.InDelta(t, 8.0, a.FloodDepth, 0)
	assert.Equal(t, [4]uint8{255, 165, 0, 200}, a.FillColor)
	assert.Equal(t, "#FFA500", a.Color)
	assert.Len(t, a.Polygon, 5)

	c := layer.Features[2]
	assert.Equal(t, StatusSafe, c.FloodStatus)
	assert.Equal(t, "#00FF00", c.Color)

	require.Len(t, layer.WaterPlane, 5)
	assert.Equal(t, layer.WaterPlane[0], layer.WaterPlane[4])
	b := ds.Bounds()
	assert.Equal(t, [2]float64{b.MaxLon, b.MaxLat}, layer.WaterPlane[2])
	assert.Equal(t, b.Center(), layer.Center)
}

func TestBuildLayer_Empty(t *testing.T) {
	layer := BuildLayer(3, Bounds{}, nil)

	assert.Empty(t, layer.Features)
	assert.NotNil(t, layer.Features)
	assert.Equal(t, Point{}, layer.Center)
}
