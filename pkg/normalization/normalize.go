package normalization

import (
	"fmt"

	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
	"volmesh/pkg/geometry"
)

// Stats summarizes a normalization. Cartesian runs fill the centroid and
// extent fields, spherical runs the centre and distance fields.
type Stats struct {
	Method Kind  `json:"method"`
	Scale  Scale `json:"scale_factor"`

	OriginalCentroid *r3.Vec `json:"original_centroid,omitempty"`
	FinalCentroid    *r3.Vec `json:"final_centroid,omitempty"`
	OriginalExtent   *r3.Vec `json:"original_size,omitempty"`
	FinalExtent      *r3.Vec `json:"final_size,omitempty"`

	OriginalCenter      *r3.Vec  `json:"original_center,omitempty"`
	FinalCenter         *r3.Vec  `json:"final_center,omitempty"`
	OriginalMaxDistance *float64 `json:"original_max_distance,omitempty"`
	OriginalAvgDistance *float64 `json:"original_avg_distance,omitempty"`
	FinalMaxDistance    *float64 `json:"final_max_distance,omitempty"`
	FinalAvgDistance    *float64 `json:"final_avg_distance,omitempty"`
}

// Result holds the transformed points, the record that reproduces them and
// statistics.
type Result struct {
	Vertices []r3.Vec
	Record   TransformRecord
	Stats    Stats
}

// Normalize applies m to a physical-space point set. The input is not
// modified.
func Normalize(points []r3.Vec, m Method) (*Result, error) {
	if len(points) == 0 {
		return nil, zerr.Wrap(models.ErrInvalidMesh, "cannot normalize an empty point set")
	}

	switch m := m.(type) {
	case Cartesian:
		if m.TargetSize <= 0 {
			return nil, zerr.With(zerr.Wrap(models.ErrInvalidParameter, "target size must be positive"), "target_size", m.TargetSize)
		}
	case Spherical:
		if m.TargetRadius <= 0 {
			return nil, zerr.With(zerr.Wrap(models.ErrInvalidParameter, "target radius must be positive"), "target_radius", m.TargetRadius)
		}
		if _, err := ParseCenterMode(string(m.CenterMode)); err != nil {
			return nil, err
		}
	case nil:
		return nil, zerr.Wrap(models.ErrUnknownMethod, "no normalization method given")
	default:
		return nil, zerr.With(zerr.Wrap(models.ErrUnknownMethod, "unsupported normalization method"), "method", fmt.Sprintf("%T", m))
	}

	return m.normalize(points), nil
}

// NormalizeMesh normalizes the vertices of a physical-space mesh and returns
// a mesh tagged as normalized alongside the result.
func NormalizeMesh(mesh *models.Mesh, m Method) (*models.Mesh, *Result, error) {
	res, err := Normalize(mesh.Vertices, m)
	if err != nil {
		return nil, nil, err
	}
	return mesh.WithVertices(res.Vertices, models.NormalizedSpace), res, nil
}

func (c Cartesian) normalize(points []r3.Vec) *Result {
	centroid := geometry.Centroid(points)
	extent := geometry.BoundsOf(points).Extent()

	var scale Scale
	if c.PreserveAspectRatio {
		factor := 1.0
		if maxDim := geometry.MaxComponent(extent); maxDim > 0 {
			factor = c.TargetSize / maxDim
		}
		scale = UniformScale(factor)
	} else {
		scale = AxisScale(r3.Vec{
			X: axisFactor(c.TargetSize, extent.X),
			Y: axisFactor(c.TargetSize, extent.Y),
			Z: axisFactor(c.TargetSize, extent.Z),
		})
	}

	// Either stay at the origin or return to where the centroid lands under
	// the same scale.
	var destination r3.Vec
	if !c.CenterAtOrigin {
		destination = scale.Apply(centroid)
	}

	record := TransformRecord{
		Kind:              KindCartesian,
		ReferenceCenter:   centroid,
		Scale:             scale,
		DestinationCenter: destination,
	}
	vertices := record.ApplyAll(points)

	finalCentroid := geometry.Centroid(vertices)
	finalExtent := geometry.BoundsOf(vertices).Extent()

	return &Result{
		Vertices: vertices,
		Record:   record,
		Stats: Stats{
			Method:           KindCartesian,
			Scale:            scale,
			OriginalCentroid: &centroid,
			FinalCentroid:    &finalCentroid,
			OriginalExtent:   &extent,
			FinalExtent:      &finalExtent,
		},
	}
}

func axisFactor(target, extent float64) float64 {
	if extent == 0 {
		return 1
	}
	return target / extent
}

func (s Spherical) normalize(points []r3.Vec) *Result {
	var center r3.Vec
	switch s.CenterMode {
	case CenterGeometric:
		center = geometry.BoundsOf(points).Center()
	default:
		// Mass centre assumes uniform density and coincides with the centroid.
		center = geometry.Centroid(points)
	}

	centred := make([]r3.Vec, len(points))
	for i, p := range points {
		centred[i] = r3.Sub(p, center)
	}
	maxDist, avgDist := distances(centred)

	vertices := make([]r3.Vec, len(points))
	switch {
	case s.NormalizeToUnitSphere && maxDist > 0:
		// Project onto the unit sphere first, then grow to the target radius.
		for i, p := range centred {
			vertices[i] = r3.Scale(s.TargetRadius, r3.Scale(1/maxDist, p))
		}
	case maxDist > 0:
		factor := s.TargetRadius / maxDist
		for i, p := range centred {
			vertices[i] = r3.Scale(factor, p)
		}
	default:
		copy(vertices, centred)
	}

	factor := 1.0
	if maxDist > 0 {
		factor = s.TargetRadius / maxDist
	}
	record := TransformRecord{
		Kind:            KindSpherical,
		ReferenceCenter: center,
		Scale:           UniformScale(factor),
	}

	finalMax, finalAvg := distances(vertices)
	var finalCenter r3.Vec

	return &Result{
		Vertices: vertices,
		Record:   record,
		Stats: Stats{
			Method:              KindSpherical,
			Scale:               record.Scale,
			OriginalCenter:      &center,
			FinalCenter:         &finalCenter,
			OriginalMaxDistance: &maxDist,
			OriginalAvgDistance: &avgDist,
			FinalMaxDistance:    &finalMax,
			FinalAvgDistance:    &finalAvg,
		},
	}
}

// distances returns the maximum and mean distance of points from the origin.
func distances(points []r3.Vec) (maxDist, avgDist float64) {
	if len(points) == 0 {
		return 0, 0
	}
	sum := 0.0
	for _, p := range points {
		d := r3.Norm(p)
		sum += d
		if d > maxDist {
			maxDist = d
		}
	}
	return maxDist, sum / float64(len(points))
}
