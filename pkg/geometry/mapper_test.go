package geometry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
	"volmesh/pkg/geometry"
)

func TestToPhysical(t *testing.T) {
	mesh := &models.Mesh{
		Vertices: []r3.Vec{{X: 1, Y: 2, Z: 3}, {X: 0.5, Y: 0, Z: 4}},
		Faces:    [][3]int{{0, 1, 0}},
		Space:    models.VoxelSpace,
	}

	out := geometry.ToPhysical(mesh, r3.Vec{X: 2, Y: 0.5, Z: 1.5})

	assert.Equal(t, models.PhysicalSpace, out.Space)
	assert.Equal(t, []r3.Vec{{X: 2, Y: 1, Z: 4.5}, {X: 1, Y: 0, Z: 6}}, out.Vertices)
	assert.Equal(t, mesh.Faces, out.Faces)
	assert.Equal(t, r3.Vec{X: 1, Y: 2, Z: 3}, mesh.Vertices[0], "input must not change")
}

func TestCentroidAndBounds(t *testing.T) {
	points := []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 4, Y: 2, Z: -2}, {X: 2, Y: 4, Z: 2}}

	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 0}, geometry.Centroid(points))

	b := geometry.BoundsOf(points)
	assert.Equal(t, r3.Vec{X: 0, Y: 0, Z: -2}, b.Min)
	assert.Equal(t, r3.Vec{X: 4, Y: 4, Z: 2}, b.Max)
	assert.Equal(t, r3.Vec{X: 4, Y: 4, Z: 4}, b.Extent())
	assert.Equal(t, r3.Vec{X: 2, Y: 2, Z: 0}, b.Center())

	assert.Equal(t, r3.Vec{}, geometry.Centroid(nil))
	assert.Equal(t, geometry.Bounds{}, geometry.BoundsOf(nil))
}

func TestVoxelToPhysical(t *testing.T) {
	got := geometry.VoxelToPhysical([3]int{2, 3, 4}, r3.Vec{X: 2, Y: 2, Z: 2})
	assert.Equal(t, r3.Vec{X: 4, Y: 6, Z: 8}, got)
}

func TestPrepareDisplay(t *testing.T) {
	mesh := &models.Mesh{
		Vertices: []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 0, Y: 2, Z: 0}, {X: 2, Y: 2, Z: 0}},
		Faces:    [][3]int{{0, 1, 2}, {1, 3, 2}},
	}

	d := geometry.PrepareDisplay(mesh, r3.Vec{X: 1, Y: 1, Z: 3})

	require.Len(t, d.Vertices, 4)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 0}, d.Centroid)
	assert.Equal(t, r3.Vec{}, geometry.Centroid(d.Vertices))
	assert.Equal(t, r3.Vec{X: -1, Y: -1, Z: 0}, d.Bounds.Min)
	assert.Equal(t, r3.Vec{X: 1, Y: 1, Z: 0}, d.Bounds.Max)
}
