package geometry

import (
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
)

// DisplayMesh is a physical-space mesh centred on its own centroid, the shape
// viewers consume.
type DisplayMesh struct {
	Vertices     []r3.Vec `json:"vertices"`
	Faces        [][3]int `json:"faces"`
	Centroid     r3.Vec   `json:"centroid"`
	VoxelSpacing r3.Vec   `json:"voxel_spacing"`
	Bounds       Bounds   `json:"bounds"`
}

// PrepareDisplay maps a voxel-space mesh to physical space and centres it.
// Centroid and spacing describe the mesh before centring.
func PrepareDisplay(mesh *models.Mesh, spacing r3.Vec) *DisplayMesh {
	physical := ToPhysical(mesh, spacing)
	centroid := Centroid(physical.Vertices)
	centred := Translate(physical.Vertices, r3.Scale(-1, centroid))

	return &DisplayMesh{
		Vertices:     centred,
		Faces:        mesh.Faces,
		Centroid:     centroid,
		VoxelSpacing: spacing,
		Bounds:       BoundsOf(centred),
	}
}
