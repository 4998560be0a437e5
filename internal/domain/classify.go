package domain

// FloodStatus is the per-building flood classification.
type FloodStatus string

const (
	StatusSafe    FloodStatus = "safe"
	StatusPartial FloodStatus = "partial"
	StatusFlooded FloodStatus = "flooded"
)

// FloodState is the derived flood depth and status of one building.
type FloodState struct {
	Depth  float64     `json:"flood_depth"`
	Status FloodStatus `json:"flood_status"`
}

// Classification maps building ID to its flood state for one water level.
type Classification map[string]FloodState

// ClassifiedBuilding is a building record together with its derived state.
type ClassifiedBuilding struct {
	BuildingRecord
	FloodDepth  float64     `json:"flood_depth"`
	FloodStatus FloodStatus `json:"flood_status"`
}

// ClassifyBuilding computes depth and status for a single building.
//
// Depth is max(0, waterLevel-groundHeight). A NaN water level compares false
// everywhere and therefore classifies as safe with zero depth.
func ClassifyBuilding(waterLevel, groundHeight, height float64) FloodState {
	depth := waterLevel - groundHeight
	if !(depth > 0) {
		return FloodState{Depth: 0, Status: StatusSafe}
	}
	if depth < height {
		return FloodState{Depth: depth, Status: StatusPartial}
	}
	return FloodState{Depth: depth, Status: StatusFlooded}
}

// Classify evaluates every building in ds against waterLevel. The dataset is
// only read; buildings are independent of each other.
func Classify(ds *Dataset, waterLevel float64) Classification {
	out := make(Classification, ds.Len())
	ds.each(func(b BuildingRecord) {
		out[b.ID] = ClassifyBuilding(waterLevel, b.GroundHeight, b.Height)
	})
	return out
}

// Annotate pairs each record of ds with its state from cls, in dataset order.
// Records missing from cls are reported as safe.
func Annotate(ds *Dataset, cls Classification) []ClassifiedBuilding {
	out := make([]ClassifiedBuilding, 0, ds.Len())
	ds.each(func(b BuildingRecord) {
		st, ok := cls[b.ID]
		if !ok {
			st = FloodState{Status: StatusSafe}
		}
		out = append(out, ClassifiedBuilding{
			BuildingRecord: b,
			FloodDepth:     st.Depth,
			FloodStatus:    st.Status,
		})
	})
	return out
}
