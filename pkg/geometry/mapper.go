// Package geometry maps meshes and voxel indices into physical space and
// provides the point-set summaries shared by normalization and propagation.
package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
)

// Bounds is an axis-aligned bounding box serialized as {min, max}.
type Bounds struct {
	Min r3.Vec `json:"min"`
	Max r3.Vec `json:"max"`
}

// Box returns the bounds as a gonum box.
func (b Bounds) Box() r3.Box {
	return r3.Box{Min: b.Min, Max: b.Max}
}

// Extent returns max - min along each axis.
func (b Bounds) Extent() r3.Vec {
	return r3.Sub(b.Max, b.Min)
}

// Center returns the midpoint of the box.
func (b Bounds) Center() r3.Vec {
	return b.Box().Center()
}

// ToPhysical scales voxel-space vertices by the voxel spacing. Faces are
// shared with the input mesh, which is left untouched.
func ToPhysical(mesh *models.Mesh, spacing r3.Vec) *models.Mesh {
	vertices := make([]r3.Vec, len(mesh.Vertices))
	for i, v := range mesh.Vertices {
		vertices[i] = MulElem(v, spacing)
	}
	return mesh.WithVertices(vertices, models.PhysicalSpace)
}

// VoxelToPhysical converts integer voxel indices into millimetres.
func VoxelToPhysical(idx [3]int, spacing r3.Vec) r3.Vec {
	return r3.Vec{
		X: float64(idx[0]) * spacing.X,
		Y: float64(idx[1]) * spacing.Y,
		Z: float64(idx[2]) * spacing.Z,
	}
}

// Centroid returns the arithmetic mean of points, or the zero vector when
// points is empty.
func Centroid(points []r3.Vec) r3.Vec {
	if len(points) == 0 {
		return r3.Vec{}
	}
	var sum r3.Vec
	for _, p := range points {
		sum = r3.Add(sum, p)
	}
	return r3.Scale(1/float64(len(points)), sum)
}

// BoundsOf returns the axis-aligned bounds of points.
func BoundsOf(points []r3.Vec) Bounds {
	if len(points) == 0 {
		return Bounds{}
	}
	b := Bounds{Min: points[0], Max: points[0]}
	for _, p := range points[1:] {
		b.Min = r3.Vec{X: math.Min(b.Min.X, p.X), Y: math.Min(b.Min.Y, p.Y), Z: math.Min(b.Min.Z, p.Z)}
		b.Max = r3.Vec{X: math.Max(b.Max.X, p.X), Y: math.Max(b.Max.Y, p.Y), Z: math.Max(b.Max.Z, p.Z)}
	}
	return b
}

// Translate returns points shifted by offset.
func Translate(points []r3.Vec, offset r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = r3.Add(p, offset)
	}
	return out
}

// MulElem multiplies two vectors component-wise.
func MulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}

// MaxComponent returns the largest of the three components.
func MaxComponent(v r3.Vec) float64 {
	return math.Max(v.X, math.Max(v.Y, v.Z))
}
