package models

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/spatial/r3"
)

// Role tells whether a volume is the anatomical reference of a subject or a
// companion (e.g. a lesion mask) that follows the reference's transform.
type Role string

const (
	RolePrimary   Role = "primary"
	RoleCompanion Role = "companion"
)

// Volume represents a 3D scalar grid loaded from a scan
type Volume struct {
	// ID is the stable registry identifier, assigned on registration
	ID string

	// Name is the original filename of the volume
	Name string

	// Subject groups a primary volume with its companions
	Subject string

	// Role is either primary or companion
	Role Role

	// Shape holds the voxel counts along the three axes (nx, ny, nz)
	Shape [3]int

	// Spacing is the physical size of each voxel in mm
	Spacing r3.Vec

	// DType is the sample type as stored on disk
	DType string

	// Data is the volume data as a 1D array, first axis varying fastest
	Data []float64

	// Fingerprint identifies the sample content (xxhash64, hex)
	Fingerprint string
}

// NewVolume builds a volume and computes its fingerprint. The data slice is
// owned by the volume afterwards and must not be modified.
func NewVolume(data []float64, shape [3]int, spacing r3.Vec) (*Volume, error) {
	for axis, n := range shape {
		if n <= 0 {
			return nil, zerr.With(zerr.Wrap(ErrShapeMismatch, "volume extent must be positive"), "axis", axis)
		}
	}
	if want := shape[0] * shape[1] * shape[2]; len(data) != want {
		err := zerr.Wrap(ErrShapeMismatch, "sample count does not match shape")
		err = zerr.With(err, "samples", len(data))
		return nil, zerr.With(err, "expected", want)
	}
	if spacing.X <= 0 || spacing.Y <= 0 || spacing.Z <= 0 {
		return nil, zerr.With(zerr.Wrap(ErrInvalidParameter, "voxel spacing must be positive"), "spacing", spacing)
	}

	return &Volume{
		Shape:       shape,
		Spacing:     spacing,
		DType:       "float64",
		Data:        data,
		Fingerprint: Fingerprint(data),
	}, nil
}

// Len returns the number of voxels.
func (v *Volume) Len() int {
	return v.Shape[0] * v.Shape[1] * v.Shape[2]
}

// Index returns the linear offset of voxel (i, j, k).
func (v *Volume) Index(i, j, k int) int {
	return k*v.Shape[0]*v.Shape[1] + j*v.Shape[0] + i
}

// At returns the sample at voxel (i, j, k).
func (v *Volume) At(i, j, k int) float64 {
	return v.Data[v.Index(i, j, k)]
}

// PhysicalSize returns the extent of the grid in mm.
func (v *Volume) PhysicalSize() r3.Vec {
	return r3.Vec{
		X: float64(v.Shape[0]) * v.Spacing.X,
		Y: float64(v.Shape[1]) * v.Spacing.Y,
		Z: float64(v.Shape[2]) * v.Spacing.Z,
	}
}

// String implements fmt.Stringer.
func (v *Volume) String() string {
	return fmt.Sprintf("%s [%dx%dx%d] %.3gx%.3gx%.3g mm",
		v.Name, v.Shape[0], v.Shape[1], v.Shape[2], v.Spacing.X, v.Spacing.Y, v.Spacing.Z)
}

// Fingerprint hashes the samples so that identical content maps to the same
// cache key regardless of where it was loaded from.
func Fingerprint(data []float64) string {
	hasher := xxhash.New()
	var buf [8]byte
	for _, value := range data {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(value))
		_, _ = hasher.Write(buf[:])
	}
	return fmt.Sprintf("%016x", hasher.Sum64())
}
