// Package analysis computes descriptive statistics of volumes and the
// intensity-normalized variants preferred by later processing.
package analysis

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
	"gonum.org/v1/gonum/stat"

	"volmesh/internal/models"
)

// HistogramBins is the number of bins of the tissue histogram.
const HistogramBins = 50

// Percentiles reported for tissue intensities.
var Percentiles = []float64{5, 25, 50, 75, 95}

// BasicInfo summarizes a volume right after loading.
type BasicInfo struct {
	Shape              [3]int  `json:"shape"`
	Spacing            r3.Vec  `json:"zooms"`
	PhysicalDimensions r3.Vec  `json:"physical_dimensions"`
	DataType           string  `json:"data_type"`
	Min                float64 `json:"min_value"`
	Max                float64 `json:"max_value"`
	Mean               float64 `json:"mean_value"`
	Std                float64 `json:"std_value"`
	NonZeroCount       int     `json:"non_zero_count"`
	TotalVoxels        int     `json:"total_voxels"`
	NonZeroMean        float64 `json:"non_zero_mean"`
}

// VolumeAnalysis holds voxel counts and physical volumes.
type VolumeAnalysis struct {
	TotalVoxels      int     `json:"total_voxels"`
	TissueVoxels     int     `json:"tissue_voxels"`
	BackgroundVoxels int     `json:"background_voxels"`
	TotalVolumeMM3   float64 `json:"total_volume_mm3"`
	TissueVolumeMM3  float64 `json:"tissue_volume_mm3"`
	TissuePercentage float64 `json:"tissue_percentage"`
	VoxelVolumeMM3   float64 `json:"voxel_volume_mm3"`
}

// IntensityStats holds global and tissue (non-zero) statistics.
type IntensityStats struct {
	GlobalMin   float64            `json:"global_min"`
	GlobalMax   float64            `json:"global_max"`
	GlobalMean  float64            `json:"global_mean"`
	GlobalStd   float64            `json:"global_std"`
	TissueMin   float64            `json:"tissue_min"`
	TissueMax   float64            `json:"tissue_max"`
	TissueMean  float64            `json:"tissue_mean"`
	TissueStd   float64            `json:"tissue_std"`
	Percentiles map[string]float64 `json:"percentiles,omitempty"`
}

// Histogram lists left bin edges and counts.
type Histogram struct {
	Bins   []float64 `json:"bins"`
	Counts []int     `json:"counts"`
}

// NormalizationInfo tells whether analysis ran on derived data.
type NormalizationInfo struct {
	Applied bool   `json:"applied"`
	Method  string `json:"method"`
}

// Report is the full analysis of a volume.
type Report struct {
	Volume        VolumeAnalysis    `json:"volume_analysis"`
	Intensity     IntensityStats    `json:"intensity_statistics"`
	Histogram     Histogram         `json:"histogram_data"`
	Normalization NormalizationInfo `json:"normalization_info"`
}

// Info computes the basic description of data laid out for vol.
func Info(vol *models.Volume, data []float64) BasicInfo {
	tissue := nonZero(data)
	info := BasicInfo{
		Shape:              vol.Shape,
		Spacing:            vol.Spacing,
		PhysicalDimensions: vol.PhysicalSize(),
		DataType:           vol.DType,
		NonZeroCount:       len(tissue),
		TotalVoxels:        len(data),
	}
	if len(data) == 0 {
		return info
	}
	info.Min, info.Max = floats.Min(data), floats.Max(data)
	info.Mean, info.Std = stat.PopMeanStdDev(data, nil)
	if len(tissue) > 0 {
		info.NonZeroMean = stat.Mean(tissue, nil)
	}
	return info
}

// Analyze computes the full report of data laid out for vol. derivedMethod
// names the intensity normalization data came from, empty for raw samples.
func Analyze(vol *models.Volume, data []float64, derivedMethod string) Report {
	voxelVolume := vol.Spacing.X * vol.Spacing.Y * vol.Spacing.Z
	tissue := nonZero(data)
	total := len(data)

	r := Report{
		Volume: VolumeAnalysis{
			TotalVoxels:      total,
			TissueVoxels:     len(tissue),
			BackgroundVoxels: total - len(tissue),
			TotalVolumeMM3:   float64(total) * voxelVolume,
			TissueVolumeMM3:  float64(len(tissue)) * voxelVolume,
			VoxelVolumeMM3:   voxelVolume,
		},
		Histogram: Histogram{Bins: []float64{}, Counts: []int{}},
		Normalization: NormalizationInfo{
			Applied: derivedMethod != "",
			Method:  derivedMethod,
		},
	}
	if r.Normalization.Method == "" {
		r.Normalization.Method = "none"
	}
	if total == 0 {
		return r
	}
	r.Volume.TissuePercentage = float64(len(tissue)) / float64(total) * 100

	r.Intensity.GlobalMin, r.Intensity.GlobalMax = floats.Min(data), floats.Max(data)
	r.Intensity.GlobalMean, r.Intensity.GlobalStd = stat.PopMeanStdDev(data, nil)

	if len(tissue) == 0 {
		return r
	}
	sort.Float64s(tissue)
	r.Intensity.TissueMin, r.Intensity.TissueMax = tissue[0], tissue[len(tissue)-1]
	r.Intensity.TissueMean, r.Intensity.TissueStd = stat.PopMeanStdDev(tissue, nil)
	r.Intensity.Percentiles = make(map[string]float64, len(Percentiles))
	for _, p := range Percentiles {
		r.Intensity.Percentiles[percentileName(p)] = Percentile(tissue, p)
	}
	r.Histogram = histogram(tissue, HistogramBins)

	return r
}

// Percentile returns the p-th percentile (0..100) of sorted data, linearly
// interpolating between the two closest ranks.
func Percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	pos := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if hi >= len(sorted) {
		hi = len(sorted) - 1
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// histogram bins sorted data into n equal-width bins over [min, max], the
// last bin including the maximum. Constant data is binned over min-0.5 to
// max+0.5.
func histogram(sorted []float64, n int) Histogram {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if lo == hi {
		lo, hi = lo-0.5, hi+0.5
	}

	dividers := floats.Span(make([]float64, n+1), lo, hi)
	edges := make([]float64, n)
	copy(edges, dividers[:n])
	// Histogram bins are half open; nudge the top so the maximum is counted.
	dividers[n] = math.Nextafter(hi, math.Inf(1))

	weights := stat.Histogram(nil, dividers, sorted, nil)
	counts := make([]int, n)
	for i, w := range weights {
		counts[i] = int(w)
	}
	return Histogram{Bins: edges, Counts: counts}
}

func nonZero(data []float64) []float64 {
	var out []float64
	for _, v := range data {
		if v != 0 {
			out = append(out, v)
		}
	}
	return out
}

func percentileName(p float64) string {
	return "p" + strconv.Itoa(int(p))
}
