package domain

// FloodResult summarizes one classification run.
type FloodResult struct {
	WaterLevel         float64 `json:"water_level"`
	TotalBuildings     int     `json:"total_buildings"`
	FloodedBuildings   int     `json:"flooded_buildings"`
	PartiallyFlooded   int     `json:"partially_flooded"`
	SafeBuildings      int     `json:"safe_buildings"`
	FloodedPercentage  float64 `json:"flooded_percentage"`
	AffectedPercentage float64 `json:"affected_percentage"`
	MaxFloodDepth      float64 `json:"max_flood_depth"`
}

// Affected returns the number of flooded and partially flooded buildings.
func (r FloodResult) Affected() int {
	return r.FloodedBuildings + r.PartiallyFlooded
}

// Batch is an ordered set of results for one dataset, ready for export.
// RunID distinguishes separate runs over the same dataset.
type Batch struct {
	RunID     string        `json:"run_id,omitempty"`
	DatasetID string        `json:"dataset_id"`
	Dataset   string        `json:"dataset"`
	Results   []FloodResult `json:"results"`
}

// Aggregate counts states by status and derives percentages (0-100) against
// the total. An empty classification yields a zeroed result for waterLevel.
func Aggregate(waterLevel float64, cls Classification) FloodResult {
	res := FloodResult{WaterLevel: waterLevel}
	for _, st := range cls {
		switch st.Status {
		case StatusFlooded:
			res.FloodedBuildings++
		case StatusPartial:
			res.PartiallyFlooded++
		default:
			res.SafeBuildings++
		}
		if st.Depth > res.MaxFloodDepth {
			res.MaxFloodDepth = st.Depth
		}
	}
	res.TotalBuildings = len(cls)
	if res.TotalBuildings == 0 {
		return res
	}

	total := float64(res.TotalBuildings)
	res.FloodedPercentage = float64(res.FloodedBuildings) / total * 100
	res.AffectedPercentage = float64(res.Affected()) / total * 100
	return res
}
