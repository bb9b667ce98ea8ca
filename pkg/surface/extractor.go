// Package surface turns a volume into an indexed iso-surface mesh expressed
// in voxel-index coordinates.
package surface

import (
	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/floats"

	"volmesh/internal/models"
	"volmesh/pkg/filter"
	"volmesh/pkg/stl"
)

// DefaultMinVoxels is the number of voxels that must exceed the threshold
// for a surface to be extracted.
const DefaultMinVoxels = 100

// Params controls a single extraction.
type Params struct {
	// ThresholdLevel is the iso level as a fraction of the smoothed data range
	ThresholdLevel float64 `json:"threshold_level" yaml:"thresholdLevel"`

	// SmoothingSigma is the Gaussian standard deviation in voxels, 0 disables smoothing
	SmoothingSigma float64 `json:"smoothing_sigma" yaml:"smoothingSigma"`
}

// DefaultParams returns the default extraction parameters
func DefaultParams() Params {
	return Params{
		ThresholdLevel: 0.5,
		SmoothingSigma: 1.0,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	if p.ThresholdLevel < 0 || p.ThresholdLevel > 1 {
		return zerr.With(zerr.Wrap(models.ErrInvalidParameter, "threshold level must be within [0, 1]"), "threshold_level", p.ThresholdLevel)
	}
	if p.SmoothingSigma < 0 {
		return zerr.With(zerr.Wrap(models.ErrInvalidParameter, "smoothing sigma must not be negative"), "smoothing_sigma", p.SmoothingSigma)
	}
	return nil
}

// Stats describes an extraction.
type Stats struct {
	VertexCount          int        `json:"vertex_count"`
	FaceCount            int        `json:"face_count"`
	ThresholdUsed        float64    `json:"threshold_used"`
	DataRange            [2]float64 `json:"data_range"`
	VoxelsAboveThreshold int        `json:"voxels_above_threshold"`
	SmoothingSigma       float64    `json:"smoothing_sigma"`
}

// Result is a voxel-space mesh with its extraction statistics.
type Result struct {
	Mesh  *models.Mesh
	Stats Stats
}

// Extractor runs smoothing, thresholding and iso-surface extraction.
type Extractor struct {
	// MinVoxels is the minimum count of voxels above threshold
	MinVoxels int

	// Workers bounds the smoothing parallelism, 0 uses all cores
	Workers int
}

// NewExtractor creates an extractor with the default signal floor
func NewExtractor(workers int) *Extractor {
	return &Extractor{
		MinVoxels: DefaultMinVoxels,
		Workers:   workers,
	}
}

// Extract computes the iso-surface of data (laid out for vol's shape) at
// lo + (hi - lo) * ThresholdLevel of the smoothed range. The data is usually
// vol.Data, or its derived variant when the caller prefers one.
func (e *Extractor) Extract(vol *models.Volume, data []float64, p Params) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if len(data) != vol.Len() {
		err := zerr.Wrap(models.ErrShapeMismatch, "sample count does not match volume shape")
		return nil, zerr.With(err, "samples", len(data))
	}

	smoothed := filter.GaussianSmooth(data, vol.Shape, p.SmoothingSigma, e.Workers)

	lo, hi := floats.Min(smoothed), floats.Max(smoothed)
	if hi == lo {
		return nil, zerr.With(zerr.Wrap(models.ErrNoVariation, "cannot place an iso level"), "value", lo)
	}

	threshold := lo + (hi-lo)*p.ThresholdLevel
	above := 0
	for _, v := range smoothed {
		if v > threshold {
			above++
		}
	}
	if above < e.MinVoxels {
		err := zerr.Wrap(models.ErrInsufficientSignal, "too few voxels above threshold")
		err = zerr.With(err, "voxels_above_threshold", above)
		return nil, zerr.With(err, "minimum", e.MinVoxels)
	}

	mc := stl.NewMarchingCubes(smoothed, vol.Shape[0], vol.Shape[1], vol.Shape[2], threshold)
	mesh := mc.Extract()

	return &Result{
		Mesh: mesh,
		Stats: Stats{
			VertexCount:          len(mesh.Vertices),
			FaceCount:            len(mesh.Faces),
			ThresholdUsed:        threshold,
			DataRange:            [2]float64{lo, hi},
			VoxelsAboveThreshold: above,
			SmoothingSigma:       p.SmoothingSigma,
		},
	}, nil
}
