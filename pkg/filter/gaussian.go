// Package filter implements the volume smoothing used before iso-surface
// extraction.
package filter

import (
	"math"
	"runtime"
	"sync"
)

// truncate is the number of standard deviations the kernel extends to.
const truncate = 4.0

// GaussianSmooth convolves a volume with a separable Gaussian kernel of the
// given standard deviation (in voxels). Boundaries are handled by mirror
// reflection including the edge sample (d c b a | a b c d | d c b a).
// A zero sigma returns a copy of the input. The input is never modified.
//
// Lines along each axis are split across workers goroutines; workers <= 0
// uses all available cores.
func GaussianSmooth(data []float64, shape [3]int, sigma float64, workers int) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	if sigma <= 0 || len(data) == 0 {
		return out
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	kernel := Kernel(sigma)
	scratch := make([]float64, len(data))
	for axis := 0; axis < 3; axis++ {
		if shape[axis] == 1 {
			// Reflection of a single sample is the sample itself and the
			// kernel sums to one, so the pass is the identity.
			continue
		}
		smoothAxis(out, scratch, shape, axis, kernel, workers)
		out, scratch = scratch, out
	}

	return out
}

// Kernel returns the normalized 1D Gaussian weights for sigma, centred on
// index len/2.
func Kernel(sigma float64) []float64 {
	radius := int(truncate*sigma + 0.5)
	weights := make([]float64, 2*radius+1)
	sum := 0.0
	for x := -radius; x <= radius; x++ {
		w := math.Exp(-0.5 * float64(x*x) / (sigma * sigma))
		weights[x+radius] = w
		sum += w
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// smoothAxis writes the 1D convolution of src along axis into dst.
func smoothAxis(src, dst []float64, shape [3]int, axis int, kernel []float64, workers int) {
	nx, ny := shape[0], shape[1]
	n := shape[axis]
	stride := 1
	for a := 0; a < axis; a++ {
		stride *= shape[a]
	}
	numLines := len(src) / n
	radius := len(kernel) / 2

	// lineBase maps a line number to the offset of its first sample
	lineBase := func(l int) int {
		switch axis {
		case 0:
			return l * nx
		case 1:
			return (l/nx)*nx*ny + l%nx
		default:
			return l
		}
	}

	var wg sync.WaitGroup
	linesPerWorker := (numLines + workers - 1) / workers

	for c := 0; c < workers; c++ {
		start := c * linesPerWorker
		if start >= numLines {
			break
		}
		end := start + linesPerWorker
		if end > numLines {
			end = numLines
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()

			line := make([]float64, n)
			for l := start; l < end; l++ {
				base := lineBase(l)
				for p := 0; p < n; p++ {
					line[p] = src[base+p*stride]
				}
				for p := 0; p < n; p++ {
					acc := 0.0
					for t, w := range kernel {
						acc += w * line[reflect(p+t-radius, n)]
					}
					dst[base+p*stride] = acc
				}
			}
		}(start, end)
	}

	wg.Wait()
}

// reflect folds an out-of-range index back into [0, n).
func reflect(i, n int) int {
	if n == 1 {
		return 0
	}
	for i < 0 || i >= n {
		if i < 0 {
			i = -i - 1
		} else {
			i = 2*n - i - 1
		}
	}
	return i
}
