// Package stl extracts iso-surfaces from volumes and writes them as STL.
package stl

import (
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
)

// cornerOffsets are the grid offsets of the eight corners of a cell.
var cornerOffsets = [8][3]int{
	{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {1, 1, 1}, {0, 1, 1},
}

// cellTetrahedra splits a cell into six tetrahedra around the 0-6 diagonal.
// Every cell is split the same way, so shared faces of neighbouring cells are
// cut along the same diagonal and the surface has no cracks.
var cellTetrahedra = [6][4]int{
	{0, 5, 1, 6},
	{0, 1, 2, 6},
	{0, 2, 3, 6},
	{0, 3, 7, 6},
	{0, 7, 4, 6},
	{0, 4, 5, 6},
}

// MarchingCubes extracts the iso-surface of a scalar grid. Each cell is
// polygonized through its tetrahedral decomposition, which needs no case
// table and never produces ambiguous faces.
type MarchingCubes struct {
	// data holds the samples, x varying fastest
	data []float64

	// dimensions of the grid
	width  int
	height int
	depth  int

	// isoLevel is the surface threshold
	isoLevel float64

	// scale is applied to vertex positions
	scale r3.Vec
}

// NewMarchingCubes creates an extractor for the grid with unit scale
func NewMarchingCubes(data []float64, width, height, depth int, isoLevel float64) *MarchingCubes {
	return &MarchingCubes{
		data:     data,
		width:    width,
		height:   height,
		depth:    depth,
		isoLevel: isoLevel,
		scale:    r3.Vec{X: 1, Y: 1, Z: 1},
	}
}

// SetScale sets the physical size of a cell along each axis
func (mc *MarchingCubes) SetScale(x, y, z float64) {
	mc.scale = r3.Vec{X: x, Y: y, Z: z}
}

// Extract builds the indexed surface mesh. Vertices lying on the same grid
// edge are shared between triangles. Triangles are wound so that their normal
// points from higher to lower values.
func (mc *MarchingCubes) Extract() *models.Mesh {
	mesh := &models.Mesh{Space: models.VoxelSpace}
	if mc.scale != (r3.Vec{X: 1, Y: 1, Z: 1}) {
		mesh.Space = models.PhysicalSpace
	}
	if mc.width < 2 || mc.height < 2 || mc.depth < 2 || len(mc.data) != mc.width*mc.height*mc.depth {
		return mesh
	}

	b := &meshBuilder{
		mc:    mc,
		mesh:  mesh,
		edges: make(map[[2]int]int),
	}

	var grid [8]int
	var values [8]float64
	var corners [8]r3.Vec

	for z := 0; z < mc.depth-1; z++ {
		for y := 0; y < mc.height-1; y++ {
			for x := 0; x < mc.width-1; x++ {
				above := 0
				for c, off := range cornerOffsets {
					cx, cy, cz := x+off[0], y+off[1], z+off[2]
					grid[c] = cz*mc.width*mc.height + cy*mc.width + cx
					values[c] = mc.data[grid[c]]
					corners[c] = r3.Vec{X: float64(cx), Y: float64(cy), Z: float64(cz)}
					if values[c] > mc.isoLevel {
						above++
					}
				}
				// Skip cells entirely inside or outside the surface
				if above == 0 || above == 8 {
					continue
				}

				for _, tet := range cellTetrahedra {
					b.polygonize(tet, &grid, &values, &corners)
				}
			}
		}
	}

	return mesh
}

// GenerateTriangles returns the surface as a triangle soup with unit normals,
// ready for binary STL output
func (mc *MarchingCubes) GenerateTriangles() []Triangle {
	return Triangles(mc.Extract())
}

// meshBuilder accumulates vertices and faces for one extraction.
type meshBuilder struct {
	mc    *MarchingCubes
	mesh  *models.Mesh
	edges map[[2]int]int
}

// polygonize emits the triangles of one tetrahedron.
func (b *meshBuilder) polygonize(tet [4]int, grid *[8]int, values *[8]float64, corners *[8]r3.Vec) {
	var in, out []int
	for _, c := range tet {
		if values[c] > b.mc.isoLevel {
			in = append(in, c)
		} else {
			out = append(out, c)
		}
	}

	// dir points from the inside corners towards the outside ones
	var inMean, outMean r3.Vec
	for _, c := range in {
		inMean = r3.Add(inMean, corners[c])
	}
	for _, c := range out {
		outMean = r3.Add(outMean, corners[c])
	}

	switch len(in) {
	case 1:
		a := in[0]
		dir := r3.Sub(r3.Scale(1.0/3, outMean), corners[a])
		b.triangle(dir,
			b.vertex(a, out[0], grid, values, corners),
			b.vertex(a, out[1], grid, values, corners),
			b.vertex(a, out[2], grid, values, corners))
	case 3:
		o := out[0]
		dir := r3.Sub(corners[o], r3.Scale(1.0/3, inMean))
		b.triangle(dir,
			b.vertex(in[0], o, grid, values, corners),
			b.vertex(in[1], o, grid, values, corners),
			b.vertex(in[2], o, grid, values, corners))
	case 2:
		dir := r3.Scale(0.5, r3.Sub(outMean, inMean))
		p, q := in[0], in[1]
		c, d := out[0], out[1]
		pc := b.vertex(p, c, grid, values, corners)
		pd := b.vertex(p, d, grid, values, corners)
		qd := b.vertex(q, d, grid, values, corners)
		qc := b.vertex(q, c, grid, values, corners)
		// pc, pd, qd, qc walk around the quad
		b.triangle(dir, pc, pd, qd)
		b.triangle(dir, pc, qd, qc)
	}
}

// vertex returns the index of the surface crossing on edge (a, c), creating
// it on first use.
func (b *meshBuilder) vertex(a, c int, grid *[8]int, values *[8]float64, corners *[8]r3.Vec) int {
	ga, gc := grid[a], grid[c]
	if ga > gc {
		a, c = c, a
		ga, gc = gc, ga
	}
	key := [2]int{ga, gc}
	if idx, ok := b.edges[key]; ok {
		return idx
	}

	t := (b.mc.isoLevel - values[a]) / (values[c] - values[a])
	p := r3.Add(corners[a], r3.Scale(t, r3.Sub(corners[c], corners[a])))
	p = mulElem(p, b.mc.scale)

	idx := len(b.mesh.Vertices)
	b.mesh.Vertices = append(b.mesh.Vertices, p)
	b.edges[key] = idx
	return idx
}

// triangle appends a face, flipping it when its normal faces against dir.
func (b *meshBuilder) triangle(dir r3.Vec, i0, i1, i2 int) {
	v := b.mesh.Vertices
	n := r3.Cross(r3.Sub(v[i1], v[i0]), r3.Sub(v[i2], v[i0]))
	if r3.Dot(n, mulElem(dir, b.mc.scale)) < 0 {
		i1, i2 = i2, i1
	}
	b.mesh.Faces = append(b.mesh.Faces, [3]int{i0, i1, i2})
}

func mulElem(a, b r3.Vec) r3.Vec {
	return r3.Vec{X: a.X * b.X, Y: a.Y * b.Y, Z: a.Z * b.Z}
}
