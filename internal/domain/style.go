package domain

import "image/color"

// StyleVersion identifies the colouring and layer rules below. Bump it when
// any colour, elevation rule or layer field changes so cached renders can be
// invalidated.
const StyleVersion = "2"

// FillColor returns the extruded-layer fill for a status, alpha included.
func FillColor(status FloodStatus) color.RGBA {
	switch status {
	case StatusFlooded:
		return color.RGBA{R: 255, G: 50, B: 50, A: 200}
	case StatusPartial:
		return color.RGBA{R: 255, G: 165, B: 0, A: 200}
	case StatusSafe:
		return color.RGBA{R: 50, G: 255, B: 50, A: 200}
	default:
		return color.RGBA{R: 128, G: 128, B: 128, A: 200}
	}
}

// HexColor returns the flat 2D map colour for a status.
func HexColor(status FloodStatus) string {
	switch status {
	case StatusFlooded:
		return "#FF0000"
	case StatusPartial:
		return "#FFA500"
	case StatusSafe:
		return "#00FF00"
	default:
		return "#808080"
	}
}

// LayerFeature is one extruded building as a scene renderer consumes it.
type LayerFeature struct {
	ID          string       `json:"id"`
	Polygon     [][2]float64 `json:"polygon"` // exterior ring, [lon, lat]
	Elevation   float64      `json:"elevation"`
	FloodDepth  float64      `json:"flood_depth"`
	FloodStatus FloodStatus  `json:"flood_status"`
	FillColor   [4]uint8     `json:"fill_color"`
	Color       string       `json:"color"`
}

// Layer is the full scene payload for one water level.
type Layer struct {
	StyleVersion string         `json:"style_version"`
	WaterLevel   float64        `json:"water_level"`
	Center       Point          `json:"center"`
	WaterPlane   [][2]float64   `json:"water_plane"`
	Features     []LayerFeature `json:"features"`
}

// BuildLayer turns classified buildings into extruded layer features plus a
// water plane spanning bounds at the water level. Extrusion height is the
// building height, not the flood depth.
func BuildLayer(waterLevel float64, bounds Bounds, buildings []ClassifiedBuilding) Layer {
	features := make([]LayerFeature, 0, len(buildings))
	for _, b := range buildings {
		c := FillColor(b.FloodStatus)
		ext := b.Footprint.Exterior()
		ring := make([][2]float64, len(ext))
		for i, p := range ext {
			ring[i] = [2]float64{p.Lon, p.Lat}
		}
		features = append(features, LayerFeature{
			ID:          b.ID,
			Polygon:     ring,
			Elevation:   b.Height,
			FloodDepth:  b.FloodDepth,
			FloodStatus: b.FloodStatus,
			FillColor:   [4]uint8{c.R, c.G, c.B, c.A},
			Color:       HexColor(b.FloodStatus),
		})
	}

	return Layer{
		StyleVersion: StyleVersion,
		WaterLevel:   waterLevel,
		Center:       bounds.Center(),
		WaterPlane: [][2]float64{
			{bounds.MinLon, bounds.MinLat},
			{bounds.MaxLon, bounds.MinLat},
			{bounds.MaxLon, bounds.MaxLat},
			{bounds.MinLon, bounds.MaxLat},
			{bounds.MinLon, bounds.MinLat},
		},
		Features: features,
	}
}
