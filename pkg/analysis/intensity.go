package analysis

import (
	"sort"

	"go.trai.ch/zerr"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"volmesh/internal/models"
)

// IntensityMethod names an intensity normalization.
type IntensityMethod string

const (
	// MinMax rescales all samples to [0, 1]
	MinMax IntensityMethod = "minmax"

	// ZScore standardizes tissue samples, background stays zero
	ZScore IntensityMethod = "zscore"

	// PercentileClip clips tissue to its 1st..99th percentile, then rescales to [0, 1]
	PercentileClip IntensityMethod = "percentile"
)

// ParseIntensityMethod validates an intensity normalization name.
func ParseIntensityMethod(name string) (IntensityMethod, error) {
	switch m := IntensityMethod(name); m {
	case MinMax, ZScore, PercentileClip:
		return m, nil
	}
	return "", zerr.With(zerr.Wrap(models.ErrInvalidParameter, "unknown intensity normalization"), "method", name)
}

// NormalizeIntensity returns a normalized copy of data. The input is not
// modified.
func NormalizeIntensity(data []float64, method IntensityMethod) ([]float64, error) {
	out := make([]float64, len(data))
	if len(data) == 0 {
		return out, nil
	}

	switch method {
	case MinMax:
		rescale(out, data, floats.Min(data), floats.Max(data))
	case ZScore:
		tissue := nonZero(data)
		if len(tissue) == 0 {
			return out, nil
		}
		mean, std := stat.PopMeanStdDev(tissue, nil)
		for i, v := range data {
			if v == 0 {
				continue
			}
			if std > 0 {
				out[i] = (v - mean) / std
			}
		}
	case PercentileClip:
		tissue := nonZero(data)
		if len(tissue) == 0 {
			return out, nil
		}
		sort.Float64s(tissue)
		lo, hi := Percentile(tissue, 1), Percentile(tissue, 99)
		clipped := make([]float64, len(data))
		for i, v := range data {
			switch {
			case v == 0:
			case v < lo:
				clipped[i] = lo
			case v > hi:
				clipped[i] = hi
			default:
				clipped[i] = v
			}
		}
		rescale(out, clipped, floats.Min(clipped), floats.Max(clipped))
	default:
		return nil, zerr.With(zerr.Wrap(models.ErrInvalidParameter, "unknown intensity normalization"), "method", string(method))
	}

	return out, nil
}

func rescale(dst, src []float64, lo, hi float64) {
	span := hi - lo
	if span == 0 {
		return
	}
	for i, v := range src {
		dst[i] = (v - lo) / span
	}
}
