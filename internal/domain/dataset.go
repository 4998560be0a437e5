package domain

import (
	"crypto/sha256"
	"fmt"
	"math"
	"strings"

	"github.com/google/uuid"
)

// CRS is the only coordinate reference the engine works in.
const CRS = "EPSG:4326"

// Attribute defaults applied when a record omits them.
const (
	DefaultHeight       = 10.0
	DefaultGroundHeight = 0.0
	StoreyHeight        = 3.5
)

var datasetNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/couchcryptid/flood-impact-engine/dataset"))

// crsAliases lists spellings of WGS-84 geographic coordinates seen in GeoJSON
// and shapefile sidecars. All normalize to CRS.
var crsAliases = map[string]bool{
	"":                              true,
	"epsg:4326":                     true,
	"urn:ogc:def:crs:epsg::4326":    true,
	"urn:ogc:def:crs:ogc:1.3:crs84": true,
	"ogc:crs84":                     true,
	"crs84":                         true,
	"wgs84":                         true,
}

// Dataset is an immutable, validated collection of buildings. Replacing the
// collection means constructing a new Dataset, which recomputes bounds.
type Dataset struct {
	id      string
	name    string
	records []BuildingRecord
	index   map[string]int
	bounds  Bounds
}

// NewDataset validates raw records, resolves defaults and computes bounds.
// Pass a nil sampler to default missing ground heights to zero.
func NewDataset(name, crs string, raws []RawBuilding, sampler GroundSampler) (*Dataset, error) {
	if !crsAliases[strings.ToLower(strings.TrimSpace(crs))] {
		return nil, &SchemaError{Index: -1, Reason: fmt.Sprintf("unsupported CRS %q, want %s", crs, CRS)}
	}

	ds := &Dataset{
		name:    name,
		records: make([]BuildingRecord, 0, len(raws)),
		index:   make(map[string]int, len(raws)),
		bounds:  emptyBounds(),
	}

	explicit := make(map[string]bool, len(raws))
	for _, raw := range raws {
		if id := strings.TrimSpace(raw.ID); id != "" {
			explicit[id] = true
		}
	}

	for i, raw := range raws {
		id := strings.TrimSpace(raw.ID)
		if id == "" {
			id = generatedID(i, explicit)
		}
		rec, err := resolveRecord(i, id, raw, sampler)
		if err != nil {
			return nil, err
		}
		if _, dup := ds.index[rec.ID]; dup {
			return nil, &SchemaError{Index: i, ID: rec.ID, Reason: "duplicate building id"}
		}
		ds.index[rec.ID] = len(ds.records)
		ds.records = append(ds.records, rec)
		for _, p := range rec.Footprint.Exterior() {
			ds.bounds.extend(p)
		}
	}

	if len(ds.records) == 0 {
		ds.bounds = Bounds{}
	}
	ds.id = fingerprint(name, ds.records)
	return ds, nil
}

// ID returns the deterministic dataset identity.
func (d *Dataset) ID() string { return d.id }

// Name returns the dataset name, usually the city it was loaded for.
func (d *Dataset) Name() string { return d.name }

// CRS returns the normalized coordinate reference.
func (d *Dataset) CRS() string { return CRS }

// Len returns the number of buildings.
func (d *Dataset) Len() int { return len(d.records) }

// Bounds returns the bounding box computed at construction.
func (d *Dataset) Bounds() Bounds { return d.bounds }

// Records returns a copy of the building records in source order.
func (d *Dataset) Records() []BuildingRecord {
	out := make([]BuildingRecord, len(d.records))
	copy(out, d.records)
	return out
}

// Record looks up a building by ID.
func (d *Dataset) Record(id string) (BuildingRecord, bool) {
	i, ok := d.index[id]
	if !ok {
		return BuildingRecord{}, false
	}
	return d.records[i], true
}

// each visits records in order without copying.
func (d *Dataset) each(fn func(BuildingRecord)) {
	for i := range d.records {
		fn(d.records[i])
	}
}

// generatedID names a record that has no ID after its position, adding a
// suffix when the source already uses that name. The result is reserved.
func generatedID(i int, taken map[string]bool) string {
	base := fmt.Sprintf("bldg-%05d", i)
	id := base
	for n := 1; taken[id]; n++ {
		id = fmt.Sprintf("%s-%d", base, n)
	}
	taken[id] = true
	return id
}

func resolveRecord(i int, id string, raw RawBuilding, sampler GroundSampler) (BuildingRecord, error) {
	fail := func(format string, args ...any) (BuildingRecord, error) {
		return BuildingRecord{}, &SchemaError{Index: i, ID: id, Reason: fmt.Sprintf(format, args...)}
	}

	footprint, reason := resolveGeometry(raw.Geometry)
	if reason != "" {
		return fail("%s", reason)
	}

	height := DefaultHeight
	switch {
	case raw.Height != nil:
		height = *raw.Height
		if !finite(height) || height <= 0 {
			return fail("height must be a positive number, got %v", height)
		}
	case raw.Storeys != nil && finite(*raw.Storeys) && *raw.Storeys > 0:
		height = *raw.Storeys * StoreyHeight
	}

	ground := DefaultGroundHeight
	if raw.GroundHeight != nil {
		ground = *raw.GroundHeight
		if !finite(ground) || ground < 0 {
			return fail("ground_height must be a non-negative number, got %v", ground)
		}
	} else if sampler != nil {
		c := footprint.Centroid()
		if v, ok := sampler.SampleGround(c.Lon, c.Lat); ok && finite(v) {
			ground = math.Max(0, v)
		}
	}

	return BuildingRecord{
		ID:           id,
		Footprint:    footprint,
		Height:       height,
		GroundHeight: ground,
		Properties:   raw.Properties,
	}, nil
}

// resolveGeometry returns the single polygon of g, or a non-empty reason why
// g is not a single closed geographic polygon.
func resolveGeometry(g *RawGeometry) (Polygon, string) {
	if g == nil {
		return nil, "missing geometry"
	}
	switch g.Type {
	case GeometryPolygon, GeometryMultiPolygon:
	default:
		return nil, fmt.Sprintf("geometry type %q, want a single Polygon", g.Type)
	}
	if len(g.Polygons) != 1 {
		return nil, fmt.Sprintf("%s has %d polygons, want exactly 1", g.Type, len(g.Polygons))
	}

	poly := g.Polygons[0]
	if len(poly) == 0 {
		return nil, "polygon has no rings"
	}
	for r, ring := range poly {
		if len(ring) < 4 {
			return nil, fmt.Sprintf("ring %d has %d positions, want at least 4", r, len(ring))
		}
		if ring[0] != ring[len(ring)-1] {
			return nil, fmt.Sprintf("ring %d is not closed", r)
		}
		for _, p := range ring {
			if !finite(p.Lon) || !finite(p.Lat) || p.Lon < -180 || p.Lon > 180 || p.Lat < -90 || p.Lat > 90 {
				return nil, fmt.Sprintf("ring %d has non-geographic position (%v, %v)", r, p.Lon, p.Lat)
			}
		}
	}
	return poly, ""
}

// fingerprint hashes the resolved content that affects classification, so two
// loads of the same source share an identity.
func fingerprint(name string, records []BuildingRecord) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d\n", name, len(records))
	for _, r := range records {
		fmt.Fprintf(h, "%s|%g|%g", r.ID, r.Height, r.GroundHeight)
		for _, p := range r.Footprint.Exterior() {
			fmt.Fprintf(h, "|%.7f,%.7f", p.Lon, p.Lat)
		}
		h.Write([]byte{'\n'})
	}
	return uuid.NewSHA1(datasetNamespace, h.Sum(nil)).String()
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
