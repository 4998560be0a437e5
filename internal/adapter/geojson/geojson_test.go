package geojson

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "urn:ogc:def:crs:OGC:1.3:CRS84"}},
  "features": [
    {
      "type": "Feature",
      "id": "b-1",
      "geometry": {"type": "Polygon", "coordinates": [[[139.7, 35.68, 2.1], [139.7001, 35.68, 2.1], [139.7001, 35.6801, 2.1], [139.7, 35.6801, 2.1], [139.7, 35.68, 2.1]]]},
      "properties": {"height": 12.5, "ground_height": "3.25", "building_type": "residential"}
    },
    {
      "type": "Feature",
      "geometry": {"type": "MultiPolygon", "coordinates": [[[[139.71, 35.68], [139.7101, 35.68], [139.7101, 35.6801], [139.71, 35.6801], [139.71, 35.68]]]]},
      "properties": {"gml_id": 42, "storeys": 3}
    },
    {
      "type": "Feature",
      "geometry": {"type": "Polygon", "coordinates": [[[139.72, 35.68], [139.7201, 35.68], [139.7201, 35.6801], [139.72, 35.6801], [139.72, 35.68]]]},
      "properties": null
    }
  ]
}`

func TestRead(t *testing.T) {
	crs, raws, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "urn:ogc:def:crs:OGC:1.3:CRS84", crs)
	require.Len(t, raws, 3)

	first := raws[0]
	assert.Equal(t, "b-1", first.ID)
	require.NotNil(t, first.Height)
	assert.InDelta(t, 12.5, *first.Height, 0)
	require.NotNil(t, first.GroundHeight)
	assert.InDelta(t, 3.25, *first.GroundHeight, 0)
	assert.Nil(t, first.Storeys)
	assert.Equal(t, "residential", first.Properties["building_type"])
	assert.NotContains(t, first.Properties, "height")
	require.Len(t, first.Geometry.Polygons, 1)
	assert.Equal(t, domain.Point{Lon: 139.7, Lat: 35.68}, first.Geometry.Polygons[0][0][0])

	second := raws[1]
	assert.Equal(t, "42", second.ID)
	assert.Equal(t, domain.GeometryMultiPolygon, second.Geometry.Type)
	require.NotNil(t, second.Storeys)
	assert.InDelta(t, 3.0, *second.Storeys, 0)
	assert.Nil(t, second.Height)

	third := raws[2]
	assert.Empty(t, third.ID)
	assert.Nil(t, third.Height)
	assert.Nil(t, third.GroundHeight)
}

func TestRead_FeedsDataset(t *testing.T) {
	crs, raws, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	ds, err := domain.NewDataset("tokyo", crs, raws, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	second, ok := ds.Record("42")
	require.True(t, ok)
	assert.InDelta(t, 10.5, second.Height, 1e-9)
	third, ok := ds.Record("bldg-00002")
	require.True(t, ok)
	assert.InDelta(t, domain.DefaultHeight, third.Height, 0)
}

func TestRead_NotFeatureCollection(t *testing.T) {
	_, _, err := Read(strings.NewReader(`{"type":"Feature"}`))

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, -1, schemaErr.Index)
}

func TestRead_BadNumericProperty(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"x","geometry":null,"properties":{"height":"tall"}}
	]}`

	_, _, err := Read(strings.NewReader(doc))

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "x", schemaErr.ID)
	assert.Contains(t, schemaErr.Reason, "height")
}

func TestRead_ShortPosition(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[1],[2,3],[4,5],[1,1]]]},"properties":{}}
	]}`

	_, _, err := Read(strings.NewReader(doc))

	var schemaErr *domain.SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, 0, schemaErr.Index)
}

func TestRead_MalformedJSON(t *testing.T) {
	_, _, err := Read(strings.NewReader(`{"type":`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode geojson")
}

func TestWriteRaw_RoundTrip(t *testing.T) {
	_, raws, err := Read(strings.NewReader(sample))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteRaw(&buf, "tokyo", raws))

	_, again, err := Read(&buf)
	require.NoError(t, err)
	require.Len(t, again, len(raws))
	for i := range raws {
		assert.Equal(t, raws[i].ID, again[i].ID)
		assert.Equal(t, raws[i].Height, again[i].Height)
		assert.Equal(t, raws[i].GroundHeight, again[i].GroundHeight)
		assert.Equal(t, raws[i].Geometry.Polygons[0], again[i].Geometry.Polygons[0])
	}
}

func TestWriteClassified(t *testing.T) {
	_, raws, err := Read(strings.NewReader(sample))
	require.NoError(t, err)
	ds, err := domain.NewDataset("tokyo", "", raws, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteClassified(&buf, 5, domain.Annotate(ds, domain.Classify(ds, 5))))

	var fc struct {
		Name     string `json:"name"`
		Features []struct {
			ID         string         `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &fc))

	assert.Equal(t, "flood_5m", fc.Name)
	require.Len(t, fc.Features, 3)
	b1 := fc.Features[0].Properties
	assert.Equal(t, "b-1", fc.Features[0].ID)
	assert.Equal(t, "partial", b1["flood_status"])
	assert.InDelta(t, 1.75, b1["flood_depth"], 1e-9)
	assert.Equal(t, "#FFA500", b1["color"])
	assert.Equal(t, "residential", b1["building_type"])
}
