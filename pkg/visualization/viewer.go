// Package visualization extracts display-oriented 2D slices from volumes and
// renders them to images.
package visualization

import (
	"fmt"
	"os"
	"path/filepath"

	"go.trai.ch/zerr"

	"volmesh/internal/models"
)

// Viewer extracts slices from a single volume
type Viewer struct {
	// data holds the samples, first axis varying fastest
	data []float64

	// shape of the volume (nx, ny, nz)
	shape [3]int
}

// NewViewer creates a viewer over data laid out for shape
func NewViewer(data []float64, shape [3]int) *Viewer {
	return &Viewer{
		data:  data,
		shape: shape,
	}
}

// SliceCount returns how many slices a plane offers
func (v *Viewer) SliceCount(plane Plane) (int, error) {
	if _, err := ParsePlane(string(plane)); err != nil {
		return 0, err
	}
	return v.shape[plane.fixedAxis()], nil
}

// RawSlice returns the samples of the plane at index without reorientation.
// Axial slices are nx x ny, coronal nx x nz and sagittal ny x nz.
func (v *Viewer) RawSlice(plane Plane, index int) (Slice, error) {
	count, err := v.SliceCount(plane)
	if err != nil {
		return Slice{}, err
	}
	if index < 0 || index >= count {
		err := zerr.Wrap(models.ErrIndexOutOfRange, "slice index outside volume")
		err = zerr.With(err, "index", index)
		return Slice{}, zerr.With(err, "slices", count)
	}

	nx, ny, nz := v.shape[0], v.shape[1], v.shape[2]
	at := func(i, j, k int) float64 {
		return v.data[k*nx*ny+j*nx+i]
	}

	var raw Slice
	switch plane {
	case PlaneAxial:
		raw = NewSlice(nx, ny)
		for i := 0; i < nx; i++ {
			for j := 0; j < ny; j++ {
				raw.set(i, j, at(i, j, index))
			}
		}
	case PlaneCoronal:
		raw = NewSlice(nx, nz)
		for i := 0; i < nx; i++ {
			for k := 0; k < nz; k++ {
				raw.set(i, k, at(i, index, k))
			}
		}
	case PlaneSagittal:
		raw = NewSlice(ny, nz)
		for j := 0; j < ny; j++ {
			for k := 0; k < nz; k++ {
				raw.set(j, k, at(index, j, k))
			}
		}
	}

	return raw, nil
}

// ExtractSlice returns the display-oriented slice of the plane at index
func (v *Viewer) ExtractSlice(plane Plane, index int) (Slice, error) {
	raw, err := v.RawSlice(plane, index)
	if err != nil {
		return Slice{}, err
	}
	return Orient(raw, plane)
}

// SaveSliceSequence renders every slice of a plane into outputDir using the
// given image format (jpeg or tiff)
func (v *Viewer) SaveSliceSequence(plane Plane, outputDir string, format Format) error {
	count, err := v.SliceCount(plane)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", outputDir)
	}

	for pos := 0; pos < count; pos++ {
		s, err := v.ExtractSlice(plane, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.%s", plane, pos, format.Extension()))
		if err := SaveImage(ToGray16(s), filename, format); err != nil {
			return err
		}
	}

	return nil
}
