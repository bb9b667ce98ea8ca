package propagation_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
	"volmesh/pkg/normalization"
	"volmesh/pkg/propagation"
)

// createCompanion builds a companion volume with the given voxels set to one
func createCompanion(t *testing.T, shape [3]int, spacing r3.Vec, voxels ...[3]int) *models.Volume {
	t.Helper()
	data := make([]float64, shape[0]*shape[1]*shape[2])
	for _, v := range voxels {
		data[v[2]*shape[0]*shape[1]+v[1]*shape[0]+v[0]] = 1
	}
	vol, err := models.NewVolume(data, shape, spacing)
	require.NoError(t, err)
	vol.ID = "lesion"
	vol.Role = models.RoleCompanion
	return vol
}

func TestPropagateUsesCompanionSpacing(t *testing.T) {
	companion := createCompanion(t, [3]int{5, 5, 5}, r3.Vec{X: 2, Y: 2, Z: 2}, [3]int{2, 3, 4})
	record := &normalization.TransformRecord{
		Kind:            normalization.KindCartesian,
		ReferenceCenter: r3.Vec{X: 50, Y: 20, Z: 10},
		Scale:           normalization.UniformScale(1),
	}

	set, err := propagation.Propagate(record, companion, companion.Data, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	require.Equal(t, 1, set.Count())
	assert.Equal(t, r3.Vec{X: 4, Y: 6, Z: 8}, set.OriginalCoordinates[0])
	assert.Equal(t, r3.Vec{X: -46, Y: -14, Z: -2}, set.Coordinates[0])
	assert.Equal(t, [][3]int{{2, 3, 4}}, set.VoxelIndices)
	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 2}, set.CompanionSpacing)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 1}, set.PrimarySpacing)
	assert.Equal(t, *record, *set.Record)
	assert.Equal(t, r3.Vec{X: -46, Y: -14, Z: -2}, set.Stats.TransformedCentroid)
}

func TestPropagateReplaysCartesianFit(t *testing.T) {
	// Physical points with extent (50, 20, 10) and centroid (25, 10, 5)
	var points []r3.Vec
	for _, x := range []float64{0, 50} {
		for _, y := range []float64{0, 20} {
			for _, z := range []float64{0, 10} {
				points = append(points, r3.Vec{X: x, Y: y, Z: z})
			}
		}
	}
	fit, err := normalization.Normalize(points, normalization.DefaultCartesian())
	require.NoError(t, err)

	record := fit.Record
	require.Equal(t, r3.Vec{X: 25, Y: 10, Z: 5}, record.ReferenceCenter)
	require.InDelta(t, 2.0, record.Scale.Factor(), 1e-12)
	require.Equal(t, r3.Vec{}, record.DestinationCenter)

	companion := createCompanion(t, [3]int{5, 5, 5}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{2, 3, 4})
	set, err := propagation.Propagate(&record, companion, companion.Data, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	require.Equal(t, 1, set.Count())
	assert.Equal(t, r3.Vec{X: 2, Y: 3, Z: 4}, set.OriginalCoordinates[0])
	assert.Equal(t, r3.Vec{X: -46, Y: -14, Z: -2}, set.Coordinates[0])
}

func TestPropagateReadsGivenSamples(t *testing.T) {
	companion := createCompanion(t, [3]int{3, 3, 3}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{0, 0, 0}, [3]int{1, 1, 1})
	record := &normalization.TransformRecord{Kind: normalization.KindCartesian, Scale: normalization.UniformScale(1)}

	derived := make([]float64, companion.Len())
	derived[companion.Index(2, 2, 2)] = 0.5
	derived[companion.Index(0, 0, 0)] = -1

	set, err := propagation.Propagate(record, companion, derived, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)
	assert.Equal(t, [][3]int{{2, 2, 2}}, set.VoxelIndices)

	_, err = propagation.Propagate(record, companion, derived[:5], r3.Vec{X: 1, Y: 1, Z: 1})
	require.ErrorIs(t, err, models.ErrShapeMismatch)
}

func TestPropagateOrderAndStats(t *testing.T) {
	companion := createCompanion(t, [3]int{3, 3, 3}, r3.Vec{X: 1, Y: 1, Z: 1},
		[3]int{2, 0, 0}, [3]int{0, 0, 2}, [3]int{0, 1, 0})
	record := &normalization.TransformRecord{
		Kind:              normalization.KindSpherical,
		ReferenceCenter:   r3.Vec{X: 1, Y: 1, Z: 1},
		Scale:             normalization.UniformScale(10),
		DestinationCenter: r3.Vec{},
	}

	set, err := propagation.Propagate(record, companion, companion.Data, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	// Lexicographic (i, j, k) order
	assert.Equal(t, [][3]int{{0, 0, 2}, {0, 1, 0}, {2, 0, 0}}, set.VoxelIndices)
	assert.Equal(t, r3.Vec{X: -10, Y: -10, Z: 10}, set.Coordinates[0])
	assert.Equal(t, r3.Vec{X: 0, Y: 0, Z: 0}, set.Stats.OriginalBounds.Min)
	assert.Equal(t, r3.Vec{X: 2, Y: 1, Z: 2}, set.Stats.OriginalBounds.Max)
	assert.Equal(t, r3.Vec{X: -10, Y: -10, Z: -10}, set.Stats.TransformedBounds.Min)
	assert.Equal(t, r3.Vec{X: 10, Y: 0, Z: 10}, set.Stats.TransformedBounds.Max)
}

func TestPropagateNoSignificantVoxels(t *testing.T) {
	companion := createCompanion(t, [3]int{2, 2, 2}, r3.Vec{X: 1, Y: 1, Z: 1})
	record := &normalization.TransformRecord{Kind: normalization.KindCartesian, Scale: normalization.UniformScale(1)}

	_, err := propagation.Propagate(record, companion, companion.Data, r3.Vec{X: 1, Y: 1, Z: 1})
	require.ErrorIs(t, err, models.ErrNoSignificantVoxels)

	_, err = propagation.Centered(companion, companion.Data)
	require.ErrorIs(t, err, models.ErrNoSignificantVoxels)
}

func TestPropagateRequiresRecord(t *testing.T) {
	companion := createCompanion(t, [3]int{2, 2, 2}, r3.Vec{X: 1, Y: 1, Z: 1}, [3]int{1, 1, 1})

	_, err := propagation.Propagate(nil, companion, companion.Data, r3.Vec{X: 1, Y: 1, Z: 1})
	require.ErrorIs(t, err, models.ErrNoTransform)
}

func TestNegativeSamplesAreNotSignificant(t *testing.T) {
	data := []float64{-1, 0, 0.5, 0, 0, 0, 0, -3}
	vol, err := models.NewVolume(data, [3]int{2, 2, 2}, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	assert.Equal(t, [][3]int{{0, 1, 0}}, propagation.SignificantVoxels(vol, vol.Data))
}

func TestReplayIsIdempotent(t *testing.T) {
	companion := createCompanion(t, [3]int{4, 4, 4}, r3.Vec{X: 0.5, Y: 1, Z: 2},
		[3]int{1, 1, 1}, [3]int{3, 2, 0}, [3]int{0, 3, 3})
	record := &normalization.TransformRecord{
		Kind:              normalization.KindCartesian,
		ReferenceCenter:   r3.Vec{X: 1, Y: 2, Z: 3},
		Scale:             normalization.AxisScale(r3.Vec{X: 2, Y: 3, Z: 4}),
		DestinationCenter: r3.Vec{X: 5, Y: 5, Z: 5},
	}

	first, err := propagation.Propagate(record, companion, companion.Data, r3.Vec{X: 1, Y: 1, Z: 1})
	require.NoError(t, err)

	again := propagation.Replay(record, first)
	assert.Equal(t, first, again)

	twice := propagation.Replay(first.Record, propagation.Replay(record, first))
	assert.Equal(t, first.Coordinates, twice.Coordinates)
}

func TestCentered(t *testing.T) {
	companion := createCompanion(t, [3]int{4, 4, 4}, r3.Vec{X: 2, Y: 2, Z: 2}, [3]int{0, 0, 0}, [3]int{2, 2, 2})

	set, err := propagation.Centered(companion, companion.Data)
	require.NoError(t, err)

	assert.Nil(t, set.Record)
	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 2}, set.Stats.OriginalCentroid)
	assert.Equal(t, []r3.Vec{{X: -2, Y: -2, Z: -2}, {X: 2, Y: 2, Z: 2}}, set.Coordinates)
}

func TestSurfaceProximity(t *testing.T) {
	surface := []r3.Vec{{X: 0}, {X: 10}}
	points := []r3.Vec{{X: 1}, {X: 7}, {X: 10, Y: 2}}

	prox, ok := propagation.SurfaceProximity(points, surface)
	require.True(t, ok)

	assert.InDelta(t, 1, prox.Min, 1e-12)
	assert.InDelta(t, 3, prox.Max, 1e-12)
	assert.InDelta(t, 2, prox.Mean, 1e-12)

	_, ok = propagation.SurfaceProximity(points, nil)
	assert.False(t, ok)
}
