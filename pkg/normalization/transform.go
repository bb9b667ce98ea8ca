package normalization

import (
	"bytes"
	"encoding/json"

	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
	"volmesh/pkg/geometry"
)

// Kind names the normalization that produced a transform.
type Kind string

const (
	KindCartesian Kind = "cartesian"
	KindSpherical Kind = "spherical"
)

// Scale is either a single uniform factor or one factor per axis.
type Scale struct {
	factors r3.Vec
	perAxis bool
}

// UniformScale returns a scale applying f on every axis.
func UniformScale(f float64) Scale {
	return Scale{factors: r3.Vec{X: f, Y: f, Z: f}}
}

// AxisScale returns a per-axis scale.
func AxisScale(v r3.Vec) Scale {
	return Scale{factors: v, perAxis: true}
}

// IsUniform reports whether the scale is a single factor.
func (s Scale) IsUniform() bool {
	return !s.perAxis
}

// Factor returns the uniform factor. For a per-axis scale it returns the X
// factor, callers should check IsUniform first.
func (s Scale) Factor() float64 {
	return s.factors.X
}

// Factors returns the factor along each axis.
func (s Scale) Factors() r3.Vec {
	return s.factors
}

// Apply scales v.
func (s Scale) Apply(v r3.Vec) r3.Vec {
	if !s.perAxis {
		return r3.Scale(s.factors.X, v)
	}
	return geometry.MulElem(s.factors, v)
}

// MarshalJSON encodes a uniform scale as a number and a per-axis scale as a
// three element array.
func (s Scale) MarshalJSON() ([]byte, error) {
	if !s.perAxis {
		return json.Marshal(s.factors.X)
	}
	return json.Marshal([3]float64{s.factors.X, s.factors.Y, s.factors.Z})
}

// UnmarshalJSON accepts either form written by MarshalJSON.
func (s *Scale) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var v [3]float64
		if err := json.Unmarshal(data, &v); err != nil {
			return zerr.Wrap(err, "failed to decode per-axis scale")
		}
		*s = AxisScale(r3.Vec{X: v[0], Y: v[1], Z: v[2]})
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return zerr.Wrap(err, "failed to decode scale")
	}
	*s = UniformScale(f)
	return nil
}

// TransformRecord captures a normalization so it can be replayed on other
// point sets: p' = (p - ReferenceCenter) * Scale + DestinationCenter.
type TransformRecord struct {
	Kind              Kind   `json:"kind"`
	ReferenceCenter   r3.Vec `json:"reference_center"`
	Scale             Scale  `json:"scale"`
	DestinationCenter r3.Vec `json:"destination_center"`
}

// Validate checks that a spherical record carries a uniform scale.
func (t *TransformRecord) Validate() error {
	switch t.Kind {
	case KindCartesian:
	case KindSpherical:
		if !t.Scale.IsUniform() {
			return zerr.Wrap(models.ErrInvalidParameter, "spherical transform requires a uniform scale")
		}
	default:
		return zerr.With(zerr.Wrap(models.ErrUnknownMethod, "unknown transform kind"), "kind", string(t.Kind))
	}
	return nil
}

// Apply replays the transform on a single point.
func (t *TransformRecord) Apply(p r3.Vec) r3.Vec {
	return r3.Add(t.Scale.Apply(r3.Sub(p, t.ReferenceCenter)), t.DestinationCenter)
}

// ApplyAll replays the transform on every point, returning a new slice.
func (t *TransformRecord) ApplyAll(points []r3.Vec) []r3.Vec {
	out := make([]r3.Vec, len(points))
	for i, p := range points {
		out[i] = t.Apply(p)
	}
	return out
}

// Affine returns the transform as a 4x4 homogeneous matrix acting on column
// vectors.
func (t *TransformRecord) Affine() *mat.Dense {
	s := t.Scale.Factors()
	// translation = destination - scale * reference
	tr := r3.Sub(t.DestinationCenter, geometry.MulElem(s, t.ReferenceCenter))
	return mat.NewDense(4, 4, []float64{
		s.X, 0, 0, tr.X,
		0, s.Y, 0, tr.Y,
		0, 0, s.Z, tr.Z,
		0, 0, 0, 1,
	})
}
