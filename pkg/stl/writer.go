package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
)

// Triangle is a single facet of a binary STL file
type Triangle struct {
	Normal  [3]float32
	Vertex1 [3]float32
	Vertex2 [3]float32
	Vertex3 [3]float32
}

// FacetNormal returns the unit normal of triangle (v1, v2, v3), computed as
// (v2 - v1) x (v3 - v1). A degenerate triangle yields the zero vector.
func FacetNormal(v1, v2, v3 r3.Vec) r3.Vec {
	n := r3.Cross(r3.Sub(v2, v1), r3.Sub(v3, v1))
	if norm := r3.Norm(n); norm > 0 {
		return r3.Scale(1/norm, n)
	}
	return n
}

// Triangles converts an indexed mesh into a triangle soup
func Triangles(mesh *models.Mesh) []Triangle {
	triangles := make([]Triangle, 0, len(mesh.Faces))
	for _, face := range mesh.Faces {
		v1, v2, v3 := mesh.Vertices[face[0]], mesh.Vertices[face[1]], mesh.Vertices[face[2]]
		triangles = append(triangles, Triangle{
			Normal:  toFloat32(FacetNormal(v1, v2, v3)),
			Vertex1: toFloat32(v1),
			Vertex2: toFloat32(v2),
			Vertex3: toFloat32(v3),
		})
	}
	return triangles
}

// SaveToSTL saves triangles to a binary STL file
func SaveToSTL(filename string, triangles []Triangle) error {
	file, err := os.Create(filename)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create STL file"), "path", filename)
	}
	defer file.Close()

	if err := WriteBinary(file, triangles); err != nil {
		return zerr.With(err, "path", filename)
	}
	return file.Close()
}

// WriteBinary writes triangles in binary STL layout: an 80-byte header, the
// facet count and 50 bytes per facet.
func WriteBinary(w io.Writer, triangles []Triangle) error {
	bw := bufio.NewWriter(w)

	header := make([]byte, 80)
	copy(header, "volmesh binary STL")
	if _, err := bw.Write(header); err != nil {
		return zerr.Wrap(err, "failed to write STL header")
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(triangles))); err != nil {
		return zerr.Wrap(err, "failed to write triangle count")
	}

	var buf [50]byte
	for _, t := range triangles {
		off := 0
		for _, v := range [4][3]float32{t.Normal, t.Vertex1, t.Vertex2, t.Vertex3} {
			for _, c := range v {
				binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(c))
				off += 4
			}
		}
		// attribute byte count stays zero
		buf[48], buf[49] = 0, 0
		if _, err := bw.Write(buf[:]); err != nil {
			return zerr.Wrap(err, "failed to write triangle")
		}
	}

	return bw.Flush()
}

// WriteASCII writes an indexed mesh as an ASCII STL solid. Vertices are
// emitted exactly as stored; each facet normal is the normalized cross
// product of its edges, or the zero vector for degenerate faces.
func WriteASCII(w io.Writer, name string, mesh *models.Mesh) error {
	if err := mesh.Validate(); err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "solid %s\n", name)
	for _, face := range mesh.Faces {
		v1, v2, v3 := mesh.Vertices[face[0]], mesh.Vertices[face[1]], mesh.Vertices[face[2]]
		n := FacetNormal(v1, v2, v3)

		fmt.Fprintf(bw, "  facet normal %s\n", formatVec(n))
		bw.WriteString("    outer loop\n")
		fmt.Fprintf(bw, "      vertex %s\n", formatVec(v1))
		fmt.Fprintf(bw, "      vertex %s\n", formatVec(v2))
		fmt.Fprintf(bw, "      vertex %s\n", formatVec(v3))
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)

	if err := bw.Flush(); err != nil {
		return zerr.Wrap(err, "failed to write ASCII STL")
	}
	return nil
}

// SaveASCII writes an indexed mesh to an ASCII STL file
func SaveASCII(filename, name string, mesh *models.Mesh) error {
	file, err := os.Create(filename)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create STL file"), "path", filename)
	}
	defer file.Close()

	if err := WriteASCII(file, name, mesh); err != nil {
		return zerr.With(err, "path", filename)
	}
	return file.Close()
}

func formatVec(v r3.Vec) string {
	return strconv.FormatFloat(v.X, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Y, 'g', -1, 64) + " " +
		strconv.FormatFloat(v.Z, 'g', -1, 64)
}

func toFloat32(v r3.Vec) [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
