// Package shapefile reads building footprints from ESRI shapefiles.
package shapefile

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
	shp "github.com/jonas-p/go-shp"
)

// DBF field names are limited to 10 characters, so exports truncate the
// longer GeoJSON property names. Matching is case-insensitive.
var (
	idFields     = []string{"id", "gml_id", "bldg_id"}
	heightFields = []string{"height", "measuredhe"}
	groundFields = []string{"ground_h", "ground_hei", "ground_height"}
	storeyFields = []string{"storeys", "storeysabo"}
)

// ReadFile reads every polygon record of the shapefile at path. The returned
// CRS comes from the .prj sidecar: empty when there is none, EPSG:4326 for a
// geographic WGS 84 definition, otherwise the projection name so that
// domain.NewDataset rejects it.
func ReadFile(path string) (string, []domain.RawBuilding, error) {
	r, err := shp.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open shapefile: %w", err)
	}
	defer r.Close()

	crs, err := readPrj(path)
	if err != nil {
		return "", nil, err
	}

	fields := r.Fields()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = strings.ToLower(strings.TrimSpace(f.String()))
	}

	var raws []domain.RawBuilding
	for r.Next() {
		idx, shape := r.Shape()

		attrs := make(map[string]string, len(names))
		for i, name := range names {
			attrs[name] = strings.TrimSpace(strings.Trim(r.ReadAttribute(idx, i), "\x00"))
		}

		raw, err := toRaw(idx, shape, attrs)
		if err != nil {
			return "", nil, err
		}
		raws = append(raws, raw)
	}
	if err := r.Err(); err != nil {
		return "", nil, fmt.Errorf("read shapefile: %w", err)
	}
	return crs, raws, nil
}

func toRaw(idx int, shape shp.Shape, attrs map[string]string) (domain.RawBuilding, error) {
	raw := domain.RawBuilding{Properties: map[string]any{}}
	consumed := map[string]bool{}

	if k, v, ok := lookup(attrs, idFields); ok {
		raw.ID = v
		consumed[k] = true
	}

	for _, field := range []struct {
		keys []string
		dst  **float64
	}{
		{heightFields, &raw.Height},
		{groundFields, &raw.GroundHeight},
		{storeyFields, &raw.Storeys},
	} {
		k, v, ok := lookup(attrs, field.keys)
		if !ok {
			continue
		}
		consumed[k] = true
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return raw, &domain.SchemaError{Index: idx, ID: raw.ID, Reason: fmt.Sprintf("field %s: not a number: %q", k, v)}
		}
		*field.dst = &f
	}

	for k, v := range attrs {
		if !consumed[k] && v != "" {
			raw.Properties[k] = v
		}
	}

	var err error
	switch s := shape.(type) {
	case *shp.Polygon:
		raw.Geometry, err = polygonGeometry(s.Parts, s.Points)
	case *shp.PolygonZ:
		raw.Geometry, err = polygonGeometry(s.Parts, s.Points)
	case *shp.PolygonM:
		raw.Geometry, err = polygonGeometry(s.Parts, s.Points)
	default:
		raw.Geometry = &domain.RawGeometry{Type: fmt.Sprintf("%T", shape)}
	}
	if err != nil {
		return raw, &domain.SchemaError{Index: idx, ID: raw.ID, Reason: err.Error()}
	}
	return raw, nil
}

// polygonGeometry splits flat shapefile points into rings and groups them
// into polygons. Clockwise rings start a new polygon, counter-clockwise rings
// are holes of the preceding one. Part offsets must be ascending and inside
// the point array.
func polygonGeometry(parts []int32, points []shp.Point) (*domain.RawGeometry, error) {
	var polys []domain.Polygon
	for i := range parts {
		start := int(parts[i])
		end := len(points)
		if i+1 < len(parts) {
			end = int(parts[i+1])
		}
		if start < 0 || start >= end || end > len(points) {
			return nil, fmt.Errorf("part %d: offsets [%d:%d] outside %d points", i, start, end, len(points))
		}
		ring := make(domain.Ring, 0, end-start)
		for _, pt := range points[start:end] {
			ring = append(ring, domain.Point{Lon: pt.X, Lat: pt.Y})
		}

		if len(polys) == 0 || signedArea(ring) < 0 {
			polys = append(polys, domain.Polygon{ring})
			continue
		}
		last := len(polys) - 1
		polys[last] = append(polys[last], ring)
	}

	typ := domain.GeometryPolygon
	if len(polys) > 1 {
		typ = domain.GeometryMultiPolygon
	}
	return &domain.RawGeometry{Type: typ, Polygons: polys}, nil
}

// signedArea is negative for clockwise rings.
func signedArea(r domain.Ring) float64 {
	var sum float64
	for i := 0; i+1 < len(r); i++ {
		sum += r[i].Lon*r[i+1].Lat - r[i+1].Lon*r[i].Lat
	}
	return sum / 2
}

func lookup(attrs map[string]string, keys []string) (string, string, bool) {
	for _, k := range keys {
		if v, ok := attrs[k]; ok && v != "" {
			return k, v, true
		}
	}
	return "", "", false
}

func readPrj(shpPath string) (string, error) {
	prj := strings.TrimSuffix(shpPath, ".shp") + ".prj"
	data, err := os.ReadFile(prj)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read projection: %w", err)
	}

	wkt := string(data)
	if i := strings.Index(wkt, "PROJCS["); i >= 0 {
		name := wkt[i+len("PROJCS["):]
		if j := strings.IndexByte(name, ','); j >= 0 {
			name = name[:j]
		}
		return strings.Trim(name, `"`), nil
	}
	upper := strings.ToUpper(wkt)
	if strings.Contains(upper, "WGS_1984") || strings.Contains(upper, "WGS 84") || strings.Contains(upper, "WGS84") {
		return domain.CRS, nil
	}
	return strings.TrimSpace(wkt), nil
}
