// Package geojson reads building footprints from GeoJSON FeatureCollections
// and writes classified buildings back out for map renderers.
package geojson

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
)

// FeatureCollection is the top-level GeoJSON document.
type FeatureCollection struct {
	Type     string    `json:"type"`
	Name     string    `json:"name,omitempty"`
	CRS      *CRS      `json:"crs,omitempty"`
	Features []Feature `json:"features"`
}

// CRS is the legacy named-CRS member still emitted by GDAL and PLATEAU exports.
type CRS struct {
	Type       string `json:"type"`
	Properties struct {
		Name string `json:"name"`
	} `json:"properties"`
}

// Feature is a single GeoJSON feature. ID may be a string or a number.
type Feature struct {
	Type       string         `json:"type"`
	ID         any            `json:"id,omitempty"`
	Geometry   *Geometry      `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry keeps coordinates raw until the type is known.
type Geometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// Property keys recognised on input features. The first match wins.
var (
	idKeys     = []string{"id", "gml_id", "building_id"}
	heightKeys = []string{"height", "measuredHeight", "bldg:measuredHeight"}
	groundKeys = []string{"ground_height", "ground_elevation"}
	storeyKeys = []string{"storeys", "storeysAboveGround", "bldg:storeysAboveGround"}
)

// ReadFile opens path and decodes it with Read.
func ReadFile(path string) (string, []domain.RawBuilding, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open geojson: %w", err)
	}
	defer f.Close()
	return Read(f)
}

// Read decodes a FeatureCollection into raw building records and returns the
// declared CRS name (empty when the document has none).
func Read(r io.Reader) (string, []domain.RawBuilding, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var fc FeatureCollection
	if err := dec.Decode(&fc); err != nil {
		return "", nil, fmt.Errorf("decode geojson: %w", err)
	}
	if fc.Type != "FeatureCollection" {
		return "", nil, &domain.SchemaError{Index: -1, Reason: fmt.Sprintf("document type %q, want FeatureCollection", fc.Type)}
	}

	crs := ""
	if fc.CRS != nil {
		crs = fc.CRS.Properties.Name
	}

	raws := make([]domain.RawBuilding, 0, len(fc.Features))
	for i, f := range fc.Features {
		raw, err := toRaw(i, f)
		if err != nil {
			return "", nil, err
		}
		raws = append(raws, raw)
	}
	return crs, raws, nil
}

func toRaw(i int, f Feature) (domain.RawBuilding, error) {
	raw := domain.RawBuilding{
		ID:         featureID(f),
		Properties: map[string]any{},
	}

	geom, err := decodeGeometry(f.Geometry)
	if err != nil {
		return raw, &domain.SchemaError{Index: i, ID: raw.ID, Reason: err.Error()}
	}
	raw.Geometry = geom

	consumed := map[string]bool{}
	for _, field := range []struct {
		keys []string
		dst  **float64
	}{
		{heightKeys, &raw.Height},
		{groundKeys, &raw.GroundHeight},
		{storeyKeys, &raw.Storeys},
	} {
		key, v, ok := lookup(f.Properties, field.keys)
		if !ok {
			continue
		}
		consumed[key] = true
		n, err := toFloat(v)
		if err != nil {
			return raw, &domain.SchemaError{Index: i, ID: raw.ID, Reason: fmt.Sprintf("property %s: %v", key, err)}
		}
		*field.dst = n
	}

	for k, v := range f.Properties {
		if consumed[k] || k == "id" {
			continue
		}
		if n, ok := v.(json.Number); ok {
			if fv, err := n.Float64(); err == nil {
				v = fv
			}
		}
		raw.Properties[k] = v
	}
	return raw, nil
}

func featureID(f Feature) string {
	if s := scalarString(f.ID); s != "" {
		return s
	}
	if _, v, ok := lookup(f.Properties, idKeys); ok {
		return scalarString(v)
	}
	return ""
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func lookup(props map[string]any, keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := props[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

// toFloat accepts JSON numbers and numeric strings.
func toFloat(v any) (*float64, error) {
	var f float64
	var err error
	switch t := v.(type) {
	case json.Number:
		f, err = t.Float64()
	case float64:
		f = t
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(t), 64)
	default:
		return nil, fmt.Errorf("not a number: %v", v)
	}
	if err != nil {
		return nil, fmt.Errorf("not a number: %v", v)
	}
	return &f, nil
}

func decodeGeometry(g *Geometry) (*domain.RawGeometry, error) {
	if g == nil {
		return nil, nil
	}
	out := &domain.RawGeometry{Type: g.Type}
	switch g.Type {
	case domain.GeometryPolygon:
		var coords [][][]json.Number
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("polygon coordinates: %w", err)
		}
		poly, err := toPolygon(coords)
		if err != nil {
			return nil, err
		}
		out.Polygons = []domain.Polygon{poly}
	case domain.GeometryMultiPolygon:
		var coords [][][][]json.Number
		if err := json.Unmarshal(g.Coordinates, &coords); err != nil {
			return nil, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		for _, c := range coords {
			poly, err := toPolygon(c)
			if err != nil {
				return nil, err
			}
			out.Polygons = append(out.Polygons, poly)
		}
	}
	// Other types carry no polygons and are rejected by domain.NewDataset.
	return out, nil
}

var errShortPosition = errors.New("position has fewer than 2 coordinates")

func toPolygon(coords [][][]json.Number) (domain.Polygon, error) {
	poly := make(domain.Polygon, 0, len(coords))
	for _, ring := range coords {
		r := make(domain.Ring, 0, len(ring))
		for _, pos := range ring {
			if len(pos) < 2 {
				return nil, errShortPosition
			}
			lon, err := pos[0].Float64()
			if err != nil {
				return nil, fmt.Errorf("longitude: %w", err)
			}
			lat, err := pos[1].Float64()
			if err != nil {
				return nil, fmt.Errorf("latitude: %w", err)
			}
			r = append(r, domain.Point{Lon: lon, Lat: lat})
		}
		poly = append(poly, r)
	}
	return poly, nil
}

// WriteRaw encodes raw buildings as a FeatureCollection using the same
// property names Read understands.
func WriteRaw(w io.Writer, name string, raws []domain.RawBuilding) error {
	fc := FeatureCollection{Type: "FeatureCollection", Name: name, Features: make([]Feature, 0, len(raws))}
	for _, r := range raws {
		props := make(map[string]any, len(r.Properties)+3)
		for k, v := range r.Properties {
			props[k] = v
		}
		if r.Height != nil {
			props["height"] = *r.Height
		}
		if r.GroundHeight != nil {
			props["ground_height"] = *r.GroundHeight
		}
		if r.Storeys != nil {
			props["storeys"] = *r.Storeys
		}
		props["id"] = r.ID

		f := Feature{Type: "Feature", ID: r.ID, Properties: props}
		if r.Geometry != nil && len(r.Geometry.Polygons) > 0 {
			g, err := encodePolygon(r.Geometry.Polygons[0])
			if err != nil {
				return err
			}
			f.Geometry = g
		}
		fc.Features = append(fc.Features, f)
	}
	return encode(w, fc)
}

// WriteClassified encodes classified buildings with their flood state and
// map colour, the shape 2D renderers consume.
func WriteClassified(w io.Writer, waterLevel float64, buildings []domain.ClassifiedBuilding) error {
	fc := FeatureCollection{
		Type:     "FeatureCollection",
		Name:     fmt.Sprintf("flood_%gm", waterLevel),
		Features: make([]Feature, 0, len(buildings)),
	}
	for _, b := range buildings {
		props := make(map[string]any, len(b.Properties)+6)
		for k, v := range b.Properties {
			props[k] = v
		}
		props["id"] = b.ID
		props["height"] = b.Height
		props["ground_height"] = b.GroundHeight
		props["flood_depth"] = b.FloodDepth
		props["flood_status"] = b.FloodStatus
		props["color"] = domain.HexColor(b.FloodStatus)

		g, err := encodePolygon(b.Footprint)
		if err != nil {
			return err
		}
		fc.Features = append(fc.Features, Feature{Type: "Feature", ID: b.ID, Geometry: g, Properties: props})
	}
	return encode(w, fc)
}

func encodePolygon(p domain.Polygon) (*Geometry, error) {
	coords := make([][][2]float64, len(p))
	for i, ring := range p {
		coords[i] = make([][2]float64, len(ring))
		for j, pt := range ring {
			coords[i][j] = [2]float64{pt.Lon, pt.Lat}
		}
	}
	data, err := json.Marshal(coords)
	if err != nil {
		return nil, fmt.Errorf("encode polygon: %w", err)
	}
	return &Geometry{Type: domain.GeometryPolygon, Coordinates: data}, nil
}

func encode(w io.Writer, fc FeatureCollection) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		return fmt.Errorf("encode geojson: %w", err)
	}
	_, err := w.Write(buf.Bytes())
	return err
}
