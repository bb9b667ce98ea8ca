// Package normalization rescales a physical-space point set into a canonical
// frame and records the transform so it can be replayed elsewhere.
package normalization

import (
	"fmt"

	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/spatial/r3"

	"volmesh/internal/models"
)

// CenterMode selects the reference point of a spherical normalization.
type CenterMode string

const (
	// CenterCentroid uses the arithmetic mean of the vertices
	CenterCentroid CenterMode = "centroid"

	// CenterGeometric uses the midpoint of the axis-aligned bounds
	CenterGeometric CenterMode = "geometric_center"

	// CenterMass is treated as uniform-density centroid
	CenterMass CenterMode = "mass_center"
)

// Method is one of Cartesian or Spherical.
type Method interface {
	// Kind returns the transform kind the method records
	Kind() Kind

	// Params returns the method parameters in their wire form
	Params() map[string]any

	normalize(points []r3.Vec) *Result
}

// Cartesian fits the point set into a box.
type Cartesian struct {
	TargetSize          float64 `json:"target_size" yaml:"targetSize"`
	CenterAtOrigin      bool    `json:"center_at_origin" yaml:"centerAtOrigin"`
	PreserveAspectRatio bool    `json:"preserve_aspect_ratio" yaml:"preserveAspectRatio"`
}

// DefaultCartesian returns the default box fit
func DefaultCartesian() Cartesian {
	return Cartesian{
		TargetSize:          100,
		CenterAtOrigin:      true,
		PreserveAspectRatio: true,
	}
}

// Kind implements Method.
func (Cartesian) Kind() Kind { return KindCartesian }

// Params implements Method.
func (c Cartesian) Params() map[string]any {
	return map[string]any{
		"target_size":           c.TargetSize,
		"center_at_origin":      c.CenterAtOrigin,
		"preserve_aspect_ratio": c.PreserveAspectRatio,
	}
}

// Spherical fits the point set into a sphere.
type Spherical struct {
	TargetRadius          float64    `json:"target_radius" yaml:"targetRadius"`
	CenterMode            CenterMode `json:"center_mode" yaml:"centerMode"`
	NormalizeToUnitSphere bool       `json:"normalize_to_unit_sphere" yaml:"normalizeToUnitSphere"`
}

// DefaultSpherical returns the default sphere fit
func DefaultSpherical() Spherical {
	return Spherical{
		TargetRadius:          50,
		CenterMode:            CenterCentroid,
		NormalizeToUnitSphere: true,
	}
}

// Kind implements Method.
func (Spherical) Kind() Kind { return KindSpherical }

// Params implements Method.
func (s Spherical) Params() map[string]any {
	return map[string]any{
		"target_radius":            s.TargetRadius,
		"center_mode":              string(s.CenterMode),
		"normalize_to_unit_sphere": s.NormalizeToUnitSphere,
	}
}

// ParseMethod builds a method from its name and loosely typed parameters,
// filling unspecified parameters with defaults.
func ParseMethod(name string, params map[string]any) (Method, error) {
	switch Kind(name) {
	case KindCartesian:
		c := DefaultCartesian()
		if err := readFloat(params, "target_size", &c.TargetSize); err != nil {
			return nil, err
		}
		if err := readBool(params, "center_at_origin", &c.CenterAtOrigin); err != nil {
			return nil, err
		}
		if err := readBool(params, "preserve_aspect_ratio", &c.PreserveAspectRatio); err != nil {
			return nil, err
		}
		return c, nil
	case KindSpherical:
		s := DefaultSpherical()
		if err := readFloat(params, "target_radius", &s.TargetRadius); err != nil {
			return nil, err
		}
		if v, ok := params["center_mode"]; ok {
			mode, err := ParseCenterMode(fmt.Sprint(v))
			if err != nil {
				return nil, err
			}
			s.CenterMode = mode
		}
		if err := readBool(params, "normalize_to_unit_sphere", &s.NormalizeToUnitSphere); err != nil {
			return nil, err
		}
		return s, nil
	}

	return nil, zerr.With(zerr.Wrap(models.ErrUnknownMethod, "unsupported normalization method"), "method", name)
}

// ParseCenterMode validates a spherical centre mode name.
func ParseCenterMode(name string) (CenterMode, error) {
	switch mode := CenterMode(name); mode {
	case CenterCentroid, CenterGeometric, CenterMass:
		return mode, nil
	case "":
		return CenterCentroid, nil
	}
	return "", zerr.With(zerr.Wrap(models.ErrInvalidParameter, "unknown center mode"), "center_mode", name)
}

func readFloat(params map[string]any, key string, dst *float64) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	switch n := v.(type) {
	case float64:
		*dst = n
	case float32:
		*dst = float64(n)
	case int:
		*dst = float64(n)
	case int64:
		*dst = float64(n)
	default:
		return zerr.With(zerr.Wrap(models.ErrInvalidParameter, "expected a number"), key, v)
	}
	return nil
}

func readBool(params map[string]any, key string, dst *bool) error {
	v, ok := params[key]
	if !ok {
		return nil
	}
	b, ok := v.(bool)
	if !ok {
		return zerr.With(zerr.Wrap(models.ErrInvalidParameter, "expected a boolean"), key, v)
	}
	*dst = b
	return nil
}
