package pipeline

import (
	"context"
	"errors"
	"time"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"volmesh/internal/logging"
	"volmesh/internal/models"
	"volmesh/pkg/geometry"
	"volmesh/pkg/normalization"
	"volmesh/pkg/propagation"
	"volmesh/pkg/store"
	"volmesh/pkg/surface"
)

// CompanionStatus is the outcome of propagating onto one companion.
type CompanionStatus string

const (
	StatusSuccess             CompanionStatus = "success"
	StatusNoSignificantVoxels CompanionStatus = "no_significant_voxels"
	StatusError               CompanionStatus = "error"

	// StatusSuperseded marks a result dropped because a newer
	// normalization of the primary was stored while it was computed
	StatusSuperseded CompanionStatus = "superseded"
)

// CompanionResult reports the propagation onto one companion volume.
type CompanionResult struct {
	VolumeID string          `json:"volume_id"`
	Name     string          `json:"name"`
	Status   CompanionStatus `json:"status"`
	Points   int             `json:"points"`
	Error    string          `json:"error,omitempty"`

	// Proximity compares the propagated points with the normalized mesh
	Proximity *propagation.Proximity `json:"proximity,omitempty"`

	Coordinates *propagation.CoordinateSet `json:"-"`
}

// NormalizeResult is the outcome of normalizing a primary volume.
type NormalizeResult struct {
	VolumeID   string
	Generation uint64

	// Normalized is the mesh in normalized space
	Normalized *models.Mesh

	// Normalization holds the transform record and statistics
	Normalization *normalization.Result

	Method     normalization.Method
	Extraction surface.Stats

	Companions []CompanionResult
}

// Normalize extracts the surface of a primary volume, maps it to physical
// space and normalizes it with m. The transform is stored on the primary and
// replayed on every companion volume of the same subject.
func (p *Pipeline) Normalize(ctx context.Context, primaryID string, m normalization.Method, params surface.Params) (*NormalizeResult, error) {
	rec, err := p.store.Snapshot(primaryID)
	if err != nil {
		return nil, err
	}
	if rec.Volume.Role != models.RolePrimary {
		return nil, zerr.With(zerr.Wrap(models.ErrNotPrimary, "only primary volumes can be normalized"), "volume", primaryID)
	}
	if m == nil {
		return nil, zerr.Wrap(models.ErrUnknownMethod, "no normalization method given")
	}

	// Step 1: Surface extraction
	extracted, err := p.ExtractSurface(ctx, primaryID, params)
	if err != nil {
		return nil, err
	}

	// Step 2: Physical mapping
	physical := geometry.ToPhysical(extracted.Mesh, rec.Volume.Spacing)

	// Step 3: Normalization
	normalized, result, err := normalization.NormalizeMesh(physical, m)
	if err != nil {
		return nil, zerr.With(err, "volume", primaryID)
	}

	gen, err := p.store.SetNormalization(primaryID, store.Normalization{
		Method:     m,
		Extraction: params,
		Result:     result,
		Mesh:       normalized,
		CreatedAt:  time.Now(),
	})
	if err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "surface normalized",
		"volume", primaryID,
		"method", m.Kind(),
		"generation", gen,
		"scale", result.Record.Scale.Factors())

	// Step 4: Companion propagation
	companions := p.propagateAll(ctx, rec.Volume, gen, &result.Record, normalized)

	return &NormalizeResult{
		VolumeID:      primaryID,
		Generation:    gen,
		Normalized:    normalized,
		Normalization: result,
		Method:        m,
		Extraction:    extracted.Stats,
		Companions:    companions,
	}, nil
}

// propagateAll replays record on every companion of the primary's subject,
// with at most NumCores companions in flight. Failures are reported per
// companion and never fail the normalization itself.
func (p *Pipeline) propagateAll(ctx context.Context, primary *models.Volume, gen uint64, record *normalization.TransformRecord, surfaceMesh *models.Mesh) []CompanionResult {
	companions := p.store.Companions(primary.Subject)
	results := make([]CompanionResult, len(companions))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.params.NumCores)

	for i, c := range companions {
		g.Go(func() error {
			results[i] = p.propagateOne(gctx, primary, gen, record, c, surfaceMesh)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (p *Pipeline) propagateOne(ctx context.Context, primary *models.Volume, gen uint64, record *normalization.TransformRecord, rec store.Record, surfaceMesh *models.Mesh) CompanionResult {
	companion := rec.Volume
	res := CompanionResult{VolumeID: companion.ID, Name: companion.Name}

	if err := ctx.Err(); err != nil {
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}

	set, err := propagation.Propagate(record, companion, rec.Samples(), primary.Spacing)
	switch {
	case errors.Is(err, models.ErrNoSignificantVoxels):
		p.logger.WarnContext(ctx, "companion has no significant voxels", "volume", companion.ID)
		res.Status = StatusNoSignificantVoxels
		return res
	case err != nil:
		logging.Error(ctx, p.logger, zerr.With(err, "companion", companion.ID))
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}

	stored, err := p.store.SetCoordinates(companion.ID, primary.ID, gen, set)
	if err != nil {
		logging.Error(ctx, p.logger, zerr.With(err, "companion", companion.ID))
		res.Status = StatusError
		res.Error = err.Error()
		return res
	}
	if !stored {
		p.logger.InfoContext(ctx, "propagation superseded by a newer normalization",
			"volume", companion.ID,
			"generation", gen)
		res.Status = StatusSuperseded
		return res
	}

	res.Status = StatusSuccess
	res.Points = set.Count()
	res.Coordinates = set
	if prox, ok := propagation.SurfaceProximity(set.Coordinates, surfaceMesh.Vertices); ok {
		res.Proximity = &prox
	}

	p.logger.InfoContext(ctx, "companion propagated",
		"volume", companion.ID,
		"points", res.Points,
		"generation", gen)
	return res
}

// Propagate replays the stored normalization of a primary on one companion
// and stores the coordinates on it.
func (p *Pipeline) Propagate(ctx context.Context, primaryID, companionID string) (*propagation.CoordinateSet, error) {
	primary, err := p.store.Snapshot(primaryID)
	if err != nil {
		return nil, err
	}
	if primary.Volume.Role != models.RolePrimary {
		return nil, zerr.With(zerr.Wrap(models.ErrNotPrimary, "transforms come from primary volumes"), "volume", primaryID)
	}
	if primary.Normalization == nil {
		return nil, zerr.With(zerr.Wrap(models.ErrNoTransform, "primary has not been normalized"), "volume", primaryID)
	}

	companion, err := p.store.Snapshot(companionID)
	if err != nil {
		return nil, err
	}
	if companion.Volume.Role != models.RoleCompanion {
		return nil, zerr.With(zerr.Wrap(models.ErrNotCompanion, "coordinates belong to companion volumes"), "volume", companionID)
	}

	n := primary.Normalization
	set, err := propagation.Propagate(&n.Result.Record, companion.Volume, companion.Samples(), primary.Volume.Spacing)
	if err != nil {
		return nil, zerr.With(err, "primary", primaryID)
	}

	stored, err := p.store.SetCoordinates(companionID, primaryID, n.Generation, set)
	if err != nil {
		return nil, err
	}
	if !stored {
		p.logger.InfoContext(ctx, "propagation superseded by a newer normalization", "volume", companionID)
	}
	return set, nil
}

// Coordinates returns the propagated coordinates of a companion when present,
// otherwise its significant voxels centred on their own centroid. Like every
// other operation it reads the derived samples when the companion has them.
func (p *Pipeline) Coordinates(companionID string) (*propagation.CoordinateSet, error) {
	rec, err := p.store.Snapshot(companionID)
	if err != nil {
		return nil, err
	}
	if rec.Volume.Role != models.RoleCompanion {
		return nil, zerr.With(zerr.Wrap(models.ErrNotCompanion, "coordinates belong to companion volumes"), "volume", companionID)
	}
	if rec.Coordinates != nil {
		return rec.Coordinates, nil
	}
	return propagation.Centered(rec.Volume, rec.Samples())
}

// Normalization returns the latest stored normalization of a primary.
func (p *Pipeline) Normalization(primaryID string) (*store.Normalization, error) {
	rec, err := p.store.Snapshot(primaryID)
	if err != nil {
		return nil, err
	}
	if rec.Normalization == nil {
		return nil, zerr.With(zerr.Wrap(models.ErrNoTransform, "primary has not been normalized"), "volume", primaryID)
	}
	return rec.Normalization, nil
}
