// Package domain models building footprints and the flood impact of a flat
// water level on them.
//
// # Flood Model
//
// The model is a flat-water elevation comparison. A single scalar water level
// (metres above the same datum as ground heights) is compared against each
// building's base elevation:
//
//	flood_depth = max(0, water_level - ground_height)
//
// Status uses half-open intervals on depth relative to building height:
//
//	depth == 0            safe
//	0 < depth < height    partial
//	depth >= height       flooded
//
// This is not a 3D intersection test and not a hydrological model: there is
// no flow, routing, connectivity to a water body, or infiltration. A building
// in a sealed basin floods as soon as the water level exceeds its ground
// height. Rendered scenes built from these results can look more realistic
// than the model is.
//
// # Input Conventions
//
// Building records arrive as [RawBuilding] values with optional attributes.
// [NewDataset] resolves every optional exactly once:
//
//	height         storeys * 3.5 when storeys > 0, otherwise 10 m
//	ground_height  sampled from a GroundSampler when one is configured, otherwise 0 m
//	id             "bldg-00042" (position-based) when blank
//
// Geometry must be a single closed polygon in geographic coordinates
// (EPSG:4326, lon/lat order). Single-member MultiPolygons are unwrapped.
//
// # Errors
//
// [ErrDataUnavailable] means no source resolved and is recoverable by falling
// back to synthetic data. [*SchemaError] means a record is malformed and is
// not recoverable. [*PersistenceError] means an export destination could not
// be written; results already computed stay valid.
//
// # Dataset Identity
//
// Dataset IDs are SHA-1 name-based UUIDs over the dataset name and the
// resolved record content, so re-loading the same source yields the same ID.
// Exporters key persisted results by (dataset ID, water level), which makes
// re-runs overwrite rather than append.
package domain
