package models

import (
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/spatial/r3"
)

// Space tags the coordinate frame mesh vertices are expressed in.
type Space string

const (
	// VoxelSpace holds fractional voxel indices
	VoxelSpace Space = "voxel"

	// PhysicalSpace holds millimetres (voxel index times spacing)
	PhysicalSpace Space = "physical"

	// NormalizedSpace holds coordinates after a normalization transform
	NormalizedSpace Space = "normalized"
)

// Mesh is an indexed triangle mesh
type Mesh struct {
	// Vertices are the mesh points
	Vertices []r3.Vec

	// Faces index into Vertices, three per triangle
	Faces [][3]int

	// Space is the frame the vertices live in
	Space Space
}

// Validate checks that every face references an existing vertex.
func (m *Mesh) Validate() error {
	n := len(m.Vertices)
	for f, face := range m.Faces {
		for _, idx := range face {
			if idx < 0 || idx >= n {
				err := zerr.Wrap(ErrInvalidMesh, "face references missing vertex")
				err = zerr.With(err, "face", f)
				return zerr.With(err, "vertex", idx)
			}
		}
	}
	return nil
}

// WithVertices returns a mesh sharing the faces of m with new vertices.
// Faces are never modified after extraction, so sharing them is safe.
func (m *Mesh) WithVertices(vertices []r3.Vec, space Space) *Mesh {
	return &Mesh{
		Vertices: vertices,
		Faces:    m.Faces,
		Space:    space,
	}
}
