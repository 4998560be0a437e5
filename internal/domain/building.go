package domain

import "math"

// Geometry type names accepted from loaders.
const (
	GeometryPolygon      = "Polygon"
	GeometryMultiPolygon = "MultiPolygon"
)

// Point is a WGS-84 position in lon/lat order.
type Point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Ring is a closed sequence of points (first == last).
type Ring []Point

// Polygon holds an exterior ring followed by zero or more holes.
type Polygon []Ring

// Exterior returns the outer ring, or nil for an empty polygon.
func (p Polygon) Exterior() Ring {
	if len(p) == 0 {
		return nil
	}
	return p[0]
}

// Centroid returns the vertex mean of the exterior ring, skipping the closing
// point. It is good enough for sampling a raster under a small footprint.
func (p Polygon) Centroid() Point {
	ext := p.Exterior()
	n := len(ext)
	if n == 0 {
		return Point{}
	}
	if n > 1 && ext[0] == ext[n-1] {
		n--
	}
	var sumLon, sumLat float64
	for i := 0; i < n; i++ {
		sumLon += ext[i].Lon
		sumLat += ext[i].Lat
	}
	return Point{Lon: sumLon / float64(n), Lat: sumLat / float64(n)}
}

// RawGeometry is the loader-facing geometry: a type name plus zero or more
// polygons. A Polygon has exactly one entry; a MultiPolygon may have many.
type RawGeometry struct {
	Type     string
	Polygons []Polygon
}

// RawBuilding is an unvalidated building record as produced by a loader or
// synthetic generator. Nil pointers mean the attribute was absent.
type RawBuilding struct {
	ID           string
	Geometry     *RawGeometry
	Height       *float64
	GroundHeight *float64
	Storeys      *float64
	Properties   map[string]any
}

// BuildingRecord is a validated building with all optional attributes resolved.
type BuildingRecord struct {
	ID           string         `json:"id"`
	Footprint    Polygon        `json:"footprint"`
	Height       float64        `json:"height"`
	GroundHeight float64        `json:"ground_height"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// Top returns the elevation of the building's roof above the datum.
func (b BuildingRecord) Top() float64 {
	return b.GroundHeight + b.Height
}

// Bounds is an axis-aligned lon/lat bounding box.
type Bounds struct {
	MinLon float64 `json:"min_lon"`
	MinLat float64 `json:"min_lat"`
	MaxLon float64 `json:"max_lon"`
	MaxLat float64 `json:"max_lat"`
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Point {
	return Point{Lon: (b.MinLon + b.MaxLon) / 2, Lat: (b.MinLat + b.MaxLat) / 2}
}

// Empty reports whether the box covers no points.
func (b Bounds) Empty() bool {
	return b.MinLon > b.MaxLon || b.MinLat > b.MaxLat
}

func emptyBounds() Bounds {
	return Bounds{
		MinLon: math.Inf(1),
		MinLat: math.Inf(1),
		MaxLon: math.Inf(-1),
		MaxLat: math.Inf(-1),
	}
}

func (b *Bounds) extend(p Point) {
	b.MinLon = math.Min(b.MinLon, p.Lon)
	b.MinLat = math.Min(b.MinLat, p.Lat)
	b.MaxLon = math.Max(b.MaxLon, p.Lon)
	b.MaxLat = math.Max(b.MaxLat, p.Lat)
}

// GroundSampler supplies a ground elevation for a position when a record does
// not carry one. Implementations return false when the position is outside
// their coverage or the cell holds no data.
type GroundSampler interface {
	SampleGround(lon, lat float64) (float64, bool)
}
