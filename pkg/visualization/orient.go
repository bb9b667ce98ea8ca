package visualization

import (
	"go.trai.ch/zerr"

	"volmesh/internal/models"
)

// Plane is an anatomical slicing plane.
type Plane string

const (
	// PlaneAxial fixes the third axis
	PlaneAxial Plane = "axial"

	// PlaneCoronal fixes the second axis
	PlaneCoronal Plane = "coronal"

	// PlaneSagittal fixes the first axis
	PlaneSagittal Plane = "sagittal"
)

// Planes lists the supported planes in display order.
var Planes = []Plane{PlaneAxial, PlaneCoronal, PlaneSagittal}

// ParsePlane validates a plane name.
func ParsePlane(name string) (Plane, error) {
	switch p := Plane(name); p {
	case PlaneAxial, PlaneCoronal, PlaneSagittal:
		return p, nil
	}
	return "", zerr.With(zerr.Wrap(models.ErrInvalidPlane, "plane must be axial, coronal or sagittal"), "plane", name)
}

// fixedAxis returns the volume axis a plane holds constant.
func (p Plane) fixedAxis() int {
	switch p {
	case PlaneSagittal:
		return 0
	case PlaneCoronal:
		return 1
	default:
		return 2
	}
}

// Slice is a 2D grid of samples stored row by row.
type Slice struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

// NewSlice allocates a zeroed rows x cols slice.
func NewSlice(rows, cols int) Slice {
	return Slice{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// At returns the sample at (r, c).
func (s Slice) At(r, c int) float64 {
	return s.Data[r*s.Cols+c]
}

func (s Slice) set(r, c int, v float64) {
	s.Data[r*s.Cols+c] = v
}

// Transpose swaps rows and columns.
func (s Slice) Transpose() Slice {
	out := NewSlice(s.Cols, s.Rows)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			out.set(c, r, s.At(r, c))
		}
	}
	return out
}

// FlipUD reverses the row order.
func (s Slice) FlipUD() Slice {
	out := NewSlice(s.Rows, s.Cols)
	for r := 0; r < s.Rows; r++ {
		copy(out.Data[r*s.Cols:(r+1)*s.Cols], s.Data[(s.Rows-1-r)*s.Cols:(s.Rows-r)*s.Cols])
	}
	return out
}

// FlipLR reverses the column order.
func (s Slice) FlipLR() Slice {
	out := NewSlice(s.Rows, s.Cols)
	for r := 0; r < s.Rows; r++ {
		for c := 0; c < s.Cols; c++ {
			out.set(r, c, s.At(r, s.Cols-1-c))
		}
	}
	return out
}

// Rot90 rotates the slice k quarter turns counter-clockwise; negative k
// turns clockwise.
func (s Slice) Rot90(k int) Slice {
	switch ((k % 4) + 4) % 4 {
	case 1:
		return s.Transpose().FlipUD()
	case 2:
		return s.FlipUD().FlipLR()
	case 3:
		return s.Transpose().FlipLR()
	}
	out := NewSlice(s.Rows, s.Cols)
	copy(out.Data, s.Data)
	return out
}

// Orient applies the fixed display orientation of a plane to a raw slice:
//
//	axial:    flipud(rot90(raw, -1))
//	coronal:  rot90(raw, 1)
//	sagittal: fliplr(rot90(raw, 1))
//
// The raw slice is not modified.
func Orient(raw Slice, plane Plane) (Slice, error) {
	switch plane {
	case PlaneAxial:
		return raw.Rot90(-1).FlipUD(), nil
	case PlaneCoronal:
		return raw.Rot90(1), nil
	case PlaneSagittal:
		return raw.Rot90(1).FlipLR(), nil
	}
	return Slice{}, zerr.With(zerr.Wrap(models.ErrInvalidPlane, "cannot orient slice"), "plane", string(plane))
}
