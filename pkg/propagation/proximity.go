package propagation

import (
	"math"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r3"
)

// Proximity summarizes how far propagated points lie from a surface.
type Proximity struct {
	Min  float64 `json:"min_distance"`
	Mean float64 `json:"mean_distance"`
	Max  float64 `json:"max_distance"`
}

// SurfaceProximity measures, for every point, the distance to the nearest
// surface vertex. It is a sanity check that companion points landed in the
// same frame as the normalized primary mesh.
func SurfaceProximity(points, surface []r3.Vec) (Proximity, bool) {
	if len(points) == 0 || len(surface) == 0 {
		return Proximity{}, false
	}

	pts := make(kdtree.Points, len(surface))
	for i, v := range surface {
		pts[i] = kdtree.Point{v.X, v.Y, v.Z}
	}
	tree := kdtree.New(pts, false)

	prox := Proximity{Min: math.Inf(1)}
	sum := 0.0
	for _, p := range points {
		_, d2 := tree.Nearest(kdtree.Point{p.X, p.Y, p.Z})
		d := math.Sqrt(d2)
		sum += d
		prox.Min = math.Min(prox.Min, d)
		prox.Max = math.Max(prox.Max, d)
	}
	prox.Mean = sum / float64(len(points))

	return prox, true
}
