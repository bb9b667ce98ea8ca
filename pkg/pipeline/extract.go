package pipeline

import (
	"context"

	"go.trai.ch/zerr"

	"volmesh/internal/models"
	"volmesh/pkg/geometry"
	"volmesh/pkg/store"
	"volmesh/pkg/surface"
	"volmesh/pkg/visualization"
)

// MeshResult is an extracted surface. Cached results are shared between
// callers and must not be modified.
type MeshResult struct {
	// Mesh is the surface in voxel-index coordinates
	Mesh *models.Mesh

	// Stats describes the extraction
	Stats surface.Stats

	// Display is the centred physical-space mesh for viewers
	Display *geometry.DisplayMesh

	// FromCache is true when the result was served from the cache
	FromCache bool
}

// SliceResult is a display-oriented slice of a volume.
type SliceResult struct {
	Plane         visualization.Plane `json:"view_type"`
	Index         int                 `json:"slice_index"`
	MaxIndex      int                 `json:"max_slices"`
	OriginalShape [3]int              `json:"original_shape"`
	Slice         visualization.Slice `json:"slice"`
	FromCache     bool                `json:"from_cache"`
}

// ExtractSurface returns the iso-surface of a volume, computing it at most
// once per content fingerprint and parameter tuple.
func (p *Pipeline) ExtractSurface(ctx context.Context, id string, params surface.Params) (*MeshResult, error) {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return nil, err
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	sp := rec.Volume.Spacing
	key := store.NewKey(rec.Fingerprint(), "mesh",
		rec.Volume.Shape, params.ThresholdLevel, params.SmoothingSigma, p.extractor.MinVoxels, sp.X, sp.Y, sp.Z)

	if v, ok := p.store.Get(key); ok {
		p.logger.DebugContext(ctx, "surface served from cache", "volume", id, "key", key.String())
		res := *v.(*MeshResult)
		res.FromCache = true
		return &res, nil
	}

	// Only the caller that runs the extraction reports a fresh result.
	// Callers that joined it in flight, or found it stored by a flight that
	// finished after their lookup, are served from the cache.
	computed := false
	v, err, _ := p.flight.Do(key.String(), func() (any, error) {
		if v, ok := p.store.Peek(key); ok {
			return v, nil
		}
		computed = true
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.logger.InfoContext(ctx, "extracting surface",
			"volume", id,
			"threshold_level", params.ThresholdLevel,
			"smoothing_sigma", params.SmoothingSigma)

		extracted, err := p.extractor.Extract(rec.Volume, rec.Samples(), params)
		if err != nil {
			return nil, err
		}

		res := &MeshResult{
			Mesh:    extracted.Mesh,
			Stats:   extracted.Stats,
			Display: geometry.PrepareDisplay(extracted.Mesh, rec.Volume.Spacing),
		}
		p.store.Put(key, res, meshSize(extracted.Mesh))

		p.logger.InfoContext(ctx, "surface extracted",
			"volume", id,
			"vertices", extracted.Stats.VertexCount,
			"faces", extracted.Stats.FaceCount,
			"threshold", extracted.Stats.ThresholdUsed)
		return res, nil
	})
	if err != nil {
		return nil, zerr.With(err, "volume", id)
	}

	res := *v.(*MeshResult)
	res.FromCache = !computed
	return &res, nil
}

// Slice returns the display-oriented slice of a volume at index.
func (p *Pipeline) Slice(ctx context.Context, id string, plane visualization.Plane, index int) (*SliceResult, error) {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return nil, err
	}

	viewer := visualization.NewViewer(rec.Samples(), rec.Volume.Shape)
	count, err := viewer.SliceCount(plane)
	if err != nil {
		return nil, err
	}

	key := store.NewKey(rec.Fingerprint(), "slice", rec.Volume.Shape, plane, index)
	if v, ok := p.store.Get(key); ok {
		p.logger.DebugContext(ctx, "slice served from cache", "volume", id, "key", key.String())
		res := *v.(*SliceResult)
		res.FromCache = true
		return &res, nil
	}

	s, err := viewer.ExtractSlice(plane, index)
	if err != nil {
		return nil, zerr.With(err, "volume", id)
	}

	res := &SliceResult{
		Plane:         plane,
		Index:         index,
		MaxIndex:      count - 1,
		OriginalShape: rec.Volume.Shape,
		Slice:         s,
	}
	p.store.Put(key, res, int64(8*len(s.Data)))

	out := *res
	return &out, nil
}

// meshSize estimates the memory held by a cached mesh result, counting the
// voxel and display vertex arrays and the shared faces.
func meshSize(m *models.Mesh) int64 {
	return int64(2*24*len(m.Vertices) + 24*len(m.Faces))
}
