// Package synthetic generates reproducible building datasets for cities with
// no footprint data on disk.
package synthetic

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/couchcryptid/flood-impact-engine/internal/domain"
)

// Defaults used by the loader fallback.
const (
	DefaultSeed  uint64 = 42
	DefaultCount        = 100
)

const (
	jitter       = 0.01   // degrees either side of the centre
	footprint    = 0.0001 // roughly 10 m square
	minHeight    = 5.0
	maxHeight    = 50.0
	maxGround    = 5.0
	fallbackCity = "tokyo"
)

// Centres are the city centres buildings are scattered around.
var Centres = map[string]domain.Point{
	"tokyo":  {Lon: 139.7, Lat: 35.68},
	"nagoya": {Lon: 136.9, Lat: 35.18},
}

// Centre returns the centre for city, falling back to Tokyo.
func Centre(city string) domain.Point {
	if c, ok := Centres[strings.ToLower(city)]; ok {
		return c
	}
	return Centres[fallbackCity]
}

// Generate scatters count square footprints uniformly within ±0.01° of the
// city centre. Heights are uniform in [5, 50) m and ground heights in [0, 5) m.
// The same city, seed and count always produce the same records.
func Generate(city string, seed uint64, count int) []domain.RawBuilding {
	rng := rand.New(rand.NewPCG(seed, seed))
	c := Centre(city)

	out := make([]domain.RawBuilding, 0, count)
	for i := 0; i < count; i++ {
		lon := c.Lon + uniform(rng, -jitter, jitter)
		lat := c.Lat + uniform(rng, -jitter, jitter)
		height := uniform(rng, minHeight, maxHeight)
		ground := uniform(rng, 0, maxGround)

		out = append(out, domain.RawBuilding{
			Geometry:     square(lon, lat, footprint, footprint),
			Height:       &height,
			GroundHeight: &ground,
			Properties:   map[string]any{"synthetic": true},
		})
	}
	return out
}

// district is a cluster of buildings around a real Tokyo landmark.
type district struct {
	name   string
	centre domain.Point
	count  int
}

var tokyoDistricts = []district{
	{"shinjuku", domain.Point{Lon: 139.7003, Lat: 35.6938}, 150},
	{"shibuya", domain.Point{Lon: 139.7019, Lat: 35.6580}, 120},
	{"tokyo_station", domain.Point{Lon: 139.7671, Lat: 35.6812}, 100},
	{"roppongi", domain.Point{Lon: 139.7314, Lat: 35.6627}, 80},
}

// GenerateDistricts builds a denser Tokyo sample: buildings cluster around
// four districts with taller, larger buildings near each centre, and ground
// falls towards the bay in the east.
func GenerateDistricts(seed uint64) []domain.RawBuilding {
	rng := rand.New(rand.NewPCG(seed, seed))

	var out []domain.RawBuilding
	for _, d := range tokyoDistricts {
		for i := 0; i < d.count; i++ {
			angle := uniform(rng, 0, 2*math.Pi)
			distance := rng.ExpFloat64() * 0.005

			lon := d.centre.Lon + distance*math.Cos(angle)
			lat := d.centre.Lat + distance*math.Sin(angle)

			var size, height float64
			switch {
			case distance < 0.002:
				size = uniform(rng, 0.0001, 0.0002)
				height = uniform(rng, 30, 200)
			case distance < 0.005:
				size = uniform(rng, 0.00008, 0.00015)
				height = uniform(rng, 15, 60)
			default:
				size = uniform(rng, 0.00005, 0.0001)
				height = uniform(rng, 6, 20)
			}
			width := size * uniform(rng, 0.8, 1.2)
			depth := size * uniform(rng, 0.8, 1.2)

			storeys := math.Floor(height / domain.StoreyHeight)
			ground := math.Max(0, 10-(lon-139.7)*100)

			out = append(out, domain.RawBuilding{
				Geometry:     square(lon-width/2, lat-depth/2, width, depth),
				Height:       &height,
				GroundHeight: &ground,
				Storeys:      &storeys,
				Properties:   map[string]any{"area": d.name, "synthetic": true},
			})
		}
	}
	return out
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	return lo + rng.Float64()*(hi-lo)
}

func square(lon, lat, w, h float64) *domain.RawGeometry {
	return &domain.RawGeometry{
		Type: domain.GeometryPolygon,
		Polygons: []domain.Polygon{{domain.Ring{
			{Lon: lon, Lat: lat},
			{Lon: lon + w, Lat: lat},
			{Lon: lon + w, Lat: lat + h},
			{Lon: lon, Lat: lat + h},
			{Lon: lon, Lat: lat},
		}}},
	}
}
