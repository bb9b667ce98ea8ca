package pipeline

import (
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/pkg/geometry"
	"volmesh/pkg/normalization"
	"volmesh/pkg/propagation"
)

// BoundsPayload is a bounding box as plain arrays.
type BoundsPayload struct {
	Min [3]float64 `json:"min"`
	Max [3]float64 `json:"max"`
}

// MeshPayload is the JSON shape of a normalized or display mesh.
type MeshPayload struct {
	Vertices     [][3]float64   `json:"vertices"`
	Faces        [][3]int       `json:"faces"`
	Centroid     [3]float64     `json:"centroid"`
	VoxelSpacing [3]float64     `json:"voxel_spacing"`
	Bounds       BoundsPayload  `json:"bounds"`
	Method       string         `json:"method,omitempty"`
	Params       map[string]any `json:"params,omitempty"`
}

// CoordinateStatsPayload compares a propagated point set before and after
// the transform.
type CoordinateStatsPayload struct {
	OriginalCentroid    [3]float64    `json:"original_centroid"`
	TransformedCentroid [3]float64    `json:"transformed_centroid"`
	OriginalBounds      BoundsPayload `json:"original_bounds"`
	TransformedBounds   BoundsPayload `json:"transformed_bounds"`
}

// CoordinatePayload is the JSON shape of propagated companion coordinates.
type CoordinatePayload struct {
	Coordinates         [][3]float64                   `json:"coordinates"`
	OriginalCoordinates [][3]float64                   `json:"original_coordinates"`
	VoxelIndices        [][3]int                       `json:"voxel_indices"`
	Transform           *normalization.TransformRecord `json:"transform"`
	CompanionSpacing    [3]float64                     `json:"companion_spacing"`
	PrimarySpacing      [3]float64                     `json:"primary_spacing"`
	Statistics          CoordinateStatsPayload         `json:"statistics"`
}

// DisplayPayload converts a display mesh.
func DisplayPayload(d *geometry.DisplayMesh) MeshPayload {
	return MeshPayload{
		Vertices:     vecs(d.Vertices),
		Faces:        d.Faces,
		Centroid:     vec(d.Centroid),
		VoxelSpacing: vec(d.VoxelSpacing),
		Bounds:       bounds(d.Bounds),
	}
}

// NormalizedPayload converts the outcome of a normalization. The centroid
// and bounds describe the normalized vertices.
func NormalizedPayload(res *NormalizeResult, spacing r3.Vec) MeshPayload {
	vertices := res.Normalized.Vertices
	return MeshPayload{
		Vertices:     vecs(vertices),
		Faces:        res.Normalized.Faces,
		Centroid:     vec(geometry.Centroid(vertices)),
		VoxelSpacing: vec(spacing),
		Bounds:       bounds(geometry.BoundsOf(vertices)),
		Method:       string(res.Method.Kind()),
		Params:       res.Method.Params(),
	}
}

// CoordinatesPayload converts a coordinate set.
func CoordinatesPayload(set *propagation.CoordinateSet) CoordinatePayload {
	return CoordinatePayload{
		Coordinates:         vecs(set.Coordinates),
		OriginalCoordinates: vecs(set.OriginalCoordinates),
		VoxelIndices:        set.VoxelIndices,
		Transform:           set.Record,
		CompanionSpacing:    vec(set.CompanionSpacing),
		PrimarySpacing:      vec(set.PrimarySpacing),
		Statistics: CoordinateStatsPayload{
			OriginalCentroid:    vec(set.Stats.OriginalCentroid),
			TransformedCentroid: vec(set.Stats.TransformedCentroid),
			OriginalBounds:      bounds(set.Stats.OriginalBounds),
			TransformedBounds:   bounds(set.Stats.TransformedBounds),
		},
	}
}

func vec(v r3.Vec) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func vecs(vs []r3.Vec) [][3]float64 {
	out := make([][3]float64, len(vs))
	for i, v := range vs {
		out[i] = vec(v)
	}
	return out
}

func bounds(b geometry.Bounds) BoundsPayload {
	return BoundsPayload{Min: vec(b.Min), Max: vec(b.Max)}
}
