package stl

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
)

// createSphere builds a size^3 binary volume holding a sphere of radius size/4
func createSphere(size int) []float64 {
	data := make([]float64, size*size*size)
	radius := float64(size) / 4.0
	center := float64(size) / 2.0

	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx := float64(x) - center
				dy := float64(y) - center
				dz := float64(z) - center
				if math.Sqrt(dx*dx+dy*dy+dz*dz) < radius {
					data[z*size*size+y*size+x] = 1.0
				}
			}
		}
	}
	return data
}

// TestMarchingCubes verifies the extraction on a sphere
func TestMarchingCubes(t *testing.T) {
	size := 20
	center := float32(size) / 2.0

	mc := NewMarchingCubes(createSphere(size), size, size, size, 0.5)
	triangles := mc.GenerateTriangles()

	require.GreaterOrEqual(t, len(triangles), 100, "sphere should produce a reasonable number of triangles")

	// For a sphere the normal should point away from the center
	var sum float64
	inward := 0
	for _, triangle := range triangles {
		radial := r3.Unit(r3.Vec{
			X: float64((triangle.Vertex1[0]+triangle.Vertex2[0]+triangle.Vertex3[0])/3 - center),
			Y: float64((triangle.Vertex1[1]+triangle.Vertex2[1]+triangle.Vertex3[1])/3 - center),
			Z: float64((triangle.Vertex1[2]+triangle.Vertex2[2]+triangle.Vertex3[2])/3 - center),
		})
		normal := r3.Vec{X: float64(triangle.Normal[0]), Y: float64(triangle.Normal[1]), Z: float64(triangle.Normal[2])}
		dot := r3.Dot(radial, normal)
		sum += dot
		if dot < 0 {
			inward++
		}
	}
	assert.Greater(t, sum/float64(len(triangles)), 0.5, "normals should point outward on average")
	assert.Less(t, inward, len(triangles)/20, "too many inward facing triangles")
}

// TestExtractClosedSurface checks that the indexed mesh is watertight and
// consistently wound
func TestExtractClosedSurface(t *testing.T) {
	size := 16
	mesh := NewMarchingCubes(createSphere(size), size, size, size, 0.5).Extract()

	require.NoError(t, mesh.Validate())
	assert.Equal(t, models.VoxelSpace, mesh.Space)
	assert.Less(t, len(mesh.Vertices), 3*len(mesh.Faces), "vertices should be shared")

	directed := make(map[[2]int]int)
	for _, f := range mesh.Faces {
		for e := 0; e < 3; e++ {
			directed[[2]int{f[e], f[(e+1)%3]}]++
		}
	}
	for edge, n := range directed {
		assert.Equal(t, 1, n, "directed edge %v used more than once", edge)
		assert.Equal(t, 1, directed[[2]int{edge[1], edge[0]}], "edge %v has no opposite", edge)
	}
}

// TestSetScale verifies that the scale is applied to every vertex
func TestSetScale(t *testing.T) {
	size := 8
	data := createSphere(size)

	plain := NewMarchingCubes(data, size, size, size, 0.5).Extract()

	mc := NewMarchingCubes(data, size, size, size, 0.5)
	mc.SetScale(2.5, 1.5, 3.0)
	scaled := mc.Extract()

	require.Len(t, scaled.Vertices, len(plain.Vertices))
	require.Equal(t, plain.Faces, scaled.Faces)
	assert.Equal(t, models.PhysicalSpace, scaled.Space)
	for i, v := range plain.Vertices {
		assert.InDelta(t, v.X*2.5, scaled.Vertices[i].X, 1e-12)
		assert.InDelta(t, v.Y*1.5, scaled.Vertices[i].Y, 1e-12)
		assert.InDelta(t, v.Z*3.0, scaled.Vertices[i].Z, 1e-12)
	}
}

// TestTriangleInterpolation verifies the vertex interpolation on a single cell
func TestTriangleInterpolation(t *testing.T) {
	data := []float64{
		1, 0,
		0, 0,

		0, 0,
		0, 0,
	}

	mesh := NewMarchingCubes(data, 2, 2, 2, 0.5).Extract()

	// Corner 0 belongs to all six tetrahedra and is connected to the seven
	// other corners, each edge crossing exactly half way.
	require.Len(t, mesh.Faces, 6)
	require.Len(t, mesh.Vertices, 7)
	for _, v := range mesh.Vertices {
		for _, c := range []float64{v.X, v.Y, v.Z} {
			assert.True(t, c == 0 || c == 0.5, "unexpected coordinate %v in %v", c, v)
		}
	}
	for _, tri := range Triangles(mesh) {
		centroid := r3.Vec{
			X: float64(tri.Vertex1[0]+tri.Vertex2[0]+tri.Vertex3[0]) / 3,
			Y: float64(tri.Vertex1[1]+tri.Vertex2[1]+tri.Vertex3[1]) / 3,
			Z: float64(tri.Vertex1[2]+tri.Vertex2[2]+tri.Vertex3[2]) / 3,
		}
		normal := r3.Vec{X: float64(tri.Normal[0]), Y: float64(tri.Normal[1]), Z: float64(tri.Normal[2])}
		assert.Greater(t, r3.Dot(normal, centroid), 0.0, "normal should point away from the bright corner")
	}
}

func TestExtractFlatOrTinyGrid(t *testing.T) {
	assert.Empty(t, NewMarchingCubes(make([]float64, 27), 3, 3, 3, 0.5).Extract().Faces)
	assert.Empty(t, NewMarchingCubes([]float64{1, 0}, 2, 1, 1, 0.5).Extract().Faces)
}

// TestSaveToSTL verifies that the binary STL file can be written
func TestSaveToSTL(t *testing.T) {
	triangles := []Triangle{
		{
			Normal:  [3]float32{0, 0, 1},
			Vertex1: [3]float32{0, 0, 0},
			Vertex2: [3]float32{1, 0, 0},
			Vertex3: [3]float32{0, 1, 0},
		},
	}

	path := filepath.Join(t.TempDir(), "test.stl")
	require.NoError(t, SaveToSTL(path, triangles))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	// 80 byte header, 4 byte count, 50 bytes per triangle
	require.Len(t, raw, 80+4+50)
	assert.Equal(t, uint32(1), binary.LittleEndian.Uint32(raw[80:84]))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(raw[84+8:])))
	assert.Equal(t, float32(1), math.Float32frombits(binary.LittleEndian.Uint32(raw[84+24:])))
}

func TestWriteASCII(t *testing.T) {
	mesh := &models.Mesh{
		Vertices: []r3.Vec{{X: 0, Y: 0, Z: 0}, {X: 2, Y: 0, Z: 0}, {X: 0, Y: 2, Z: 0}, {X: 4, Y: 0, Z: 0}},
		Faces:    [][3]int{{0, 1, 2}, {0, 1, 3}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteASCII(&buf, "mesh", mesh))

	want := "solid mesh\n" +
		"  facet normal 0 0 1\n" +
		"    outer loop\n" +
		"      vertex 0 0 0\n" +
		"      vertex 2 0 0\n" +
		"      vertex 0 2 0\n" +
		"    endloop\n" +
		"  endfacet\n" +
		"  facet normal 0 0 0\n" +
		"    outer loop\n" +
		"      vertex 0 0 0\n" +
		"      vertex 2 0 0\n" +
		"      vertex 4 0 0\n" +
		"    endloop\n" +
		"  endfacet\n" +
		"endsolid mesh\n"
	assert.Equal(t, want, buf.String())
}

func TestWriteASCIIRejectsBadFaces(t *testing.T) {
	mesh := &models.Mesh{
		Vertices: []r3.Vec{{}, {X: 1}},
		Faces:    [][3]int{{0, 1, 2}},
	}

	err := WriteASCII(&bytes.Buffer{}, "mesh", mesh)
	require.ErrorIs(t, err, models.ErrInvalidMesh)
}

// BenchmarkMarchingCubes benchmarks the extraction on a 16^3 sphere
func BenchmarkMarchingCubes(b *testing.B) {
	size := 16
	data := createSphere(size)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		mc := NewMarchingCubes(data, size, size, size, 0.5)
		mc.GenerateTriangles()
	}
}
