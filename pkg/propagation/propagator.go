// Package propagation carries a primary volume's normalization over to the
// significant voxels of its companion volumes.
package propagation

import (
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
	"volmesh/pkg/geometry"
	"volmesh/pkg/normalization"
)

// Stats compares the point set before and after the transform.
type Stats struct {
	OriginalCentroid    r3.Vec          `json:"original_centroid"`
	TransformedCentroid r3.Vec          `json:"transformed_centroid"`
	OriginalBounds      geometry.Bounds `json:"original_bounds"`
	TransformedBounds   geometry.Bounds `json:"transformed_bounds"`
}

// CoordinateSet is the outcome of propagating a transform onto a companion.
type CoordinateSet struct {
	// Coordinates are the transformed points, one per significant voxel
	Coordinates []r3.Vec

	// OriginalCoordinates are the same points in companion physical space
	OriginalCoordinates []r3.Vec

	// VoxelIndices are the significant voxels in (i, j, k) order
	VoxelIndices [][3]int

	// CompanionSpacing and PrimarySpacing are the voxel sizes in mm
	CompanionSpacing r3.Vec
	PrimarySpacing   r3.Vec

	// Record is the transform that was replayed, nil for a centred view
	Record *normalization.TransformRecord

	Stats Stats
}

// Count returns the number of propagated points.
func (c *CoordinateSet) Count() int {
	return len(c.Coordinates)
}

// SignificantVoxels lists the voxels of data (laid out for vol's shape)
// holding a strictly positive sample in lexicographic (i, j, k) order.
func SignificantVoxels(vol *models.Volume, data []float64) [][3]int {
	var out [][3]int
	for i := 0; i < vol.Shape[0]; i++ {
		for j := 0; j < vol.Shape[1]; j++ {
			for k := 0; k < vol.Shape[2]; k++ {
				if data[vol.Index(i, j, k)] > 0 {
					out = append(out, [3]int{i, j, k})
				}
			}
		}
	}
	return out
}

// Propagate replays record on the significant voxels of data, the effective
// samples of companion (its derived variant when it has one). Voxel
// indices are converted with the companion's own spacing, never the
// primary's; the centre and scale come only from the record.
// A companion without significant voxels yields ErrNoSignificantVoxels,
// which callers treat as an empty, successful outcome.
func Propagate(record *normalization.TransformRecord, companion *models.Volume, data []float64, primarySpacing r3.Vec) (*CoordinateSet, error) {
	if record == nil {
		return nil, zerr.Wrap(models.ErrNoTransform, "cannot propagate without a transform")
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	indices, err := significant(companion, data)
	if err != nil {
		return nil, err
	}

	original := make([]r3.Vec, len(indices))
	for n, idx := range indices {
		original[n] = geometry.VoxelToPhysical(idx, companion.Spacing)
	}

	return build(record, indices, original, companion.Spacing, primarySpacing), nil
}

// Replay re-applies record to the original coordinates of set. Replaying the
// record a set was built with reproduces it exactly.
func Replay(record *normalization.TransformRecord, set *CoordinateSet) *CoordinateSet {
	return build(record, set.VoxelIndices, set.OriginalCoordinates, set.CompanionSpacing, set.PrimarySpacing)
}

// Centered returns the companion's significant voxels in physical space,
// centred on their own centroid. It is the view offered before the primary
// has been normalized.
func Centered(companion *models.Volume, data []float64) (*CoordinateSet, error) {
	indices, err := significant(companion, data)
	if err != nil {
		return nil, err
	}

	original := make([]r3.Vec, len(indices))
	for n, idx := range indices {
		original[n] = geometry.VoxelToPhysical(idx, companion.Spacing)
	}
	centroid := geometry.Centroid(original)
	centred := geometry.Translate(original, r3.Scale(-1, centroid))

	return &CoordinateSet{
		Coordinates:         centred,
		OriginalCoordinates: original,
		VoxelIndices:        indices,
		CompanionSpacing:    companion.Spacing,
		Stats: Stats{
			OriginalCentroid:    centroid,
			TransformedCentroid: geometry.Centroid(centred),
			OriginalBounds:      geometry.BoundsOf(original),
			TransformedBounds:   geometry.BoundsOf(centred),
		},
	}, nil
}

func significant(companion *models.Volume, data []float64) ([][3]int, error) {
	if len(data) != companion.Len() {
		err := zerr.Wrap(models.ErrShapeMismatch, "sample count does not match volume shape")
		return nil, zerr.With(err, "volume", companion.ID)
	}
	indices := SignificantVoxels(companion, data)
	if len(indices) == 0 {
		return nil, zerr.With(zerr.Wrap(models.ErrNoSignificantVoxels, "companion holds no positive voxels"), "volume", companion.ID)
	}
	return indices, nil
}

func build(record *normalization.TransformRecord, indices [][3]int, original []r3.Vec, companionSpacing, primarySpacing r3.Vec) *CoordinateSet {
	transformed := record.ApplyAll(original)
	rec := *record

	return &CoordinateSet{
		Coordinates:         transformed,
		OriginalCoordinates: original,
		VoxelIndices:        indices,
		CompanionSpacing:    companionSpacing,
		PrimarySpacing:      primarySpacing,
		Record:              &rec,
		Stats: Stats{
			OriginalCentroid:    geometry.Centroid(original),
			TransformedCentroid: geometry.Centroid(transformed),
			OriginalBounds:      geometry.BoundsOf(original),
			TransformedBounds:   geometry.BoundsOf(transformed),
		},
	}
}
