// Package pipeline ties the processing steps together behind the operations
// exposed to callers: loading volumes, extracting and normalizing surfaces,
// propagating transforms to companion volumes and slicing.
//
// The processing flow for a primary volume is:
//  1. Smoothing and iso-surface extraction (cached per content and parameters)
//  2. Mapping the mesh to physical space
//  3. Normalization, recording the transform on the primary
//  4. Replaying the transform on every companion of the same subject
package pipeline

import (
	"context"
	"log/slog"
	"runtime"

	"go.trai.ch/zerr"
	"golang.org/x/sync/singleflight"

	"volmesh/internal/models"
	"volmesh/pkg/analysis"
	"volmesh/pkg/config"
	"volmesh/pkg/nifti"
	"volmesh/pkg/store"
	"volmesh/pkg/surface"
)

// Params configures a pipeline.
type Params struct {
	// NumCores bounds smoothing parallelism and companion fan-out
	NumCores int

	// MinVoxels is the signal floor of surface extraction
	MinVoxels int

	// CacheEnabled toggles result caching
	CacheEnabled bool
}

// ParamsFromConfig extracts pipeline parameters from the application config.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		NumCores:     cfg.Processing.NumCores,
		MinVoxels:    cfg.Processing.MinVoxels,
		CacheEnabled: cfg.Cache.Enabled,
	}
}

// Pipeline is safe for concurrent use. All shared state lives in the store;
// computation happens outside its lock.
type Pipeline struct {
	// params stores the processing configuration
	params Params

	// store holds the volume registry and the result cache
	store *store.Store

	// extractor builds iso-surfaces
	extractor *surface.Extractor

	// flight collapses concurrent computations of the same cache key
	flight singleflight.Group

	logger *slog.Logger
}

// New creates a pipeline with an empty store.
func New(params Params, logger *slog.Logger) *Pipeline {
	if params.NumCores <= 0 {
		params.NumCores = runtime.NumCPU()
	}
	extractor := surface.NewExtractor(params.NumCores)
	extractor.MinVoxels = params.MinVoxels

	return &Pipeline{
		params:    params,
		store:     store.New(params.CacheEnabled),
		extractor: extractor,
		logger:    logger,
	}
}

// Load reads a NIfTI volume from disk and registers it under subject with
// the given role.
func (p *Pipeline) Load(ctx context.Context, path, subject string, role models.Role) (string, error) {
	vol, err := nifti.Load(path)
	if err != nil {
		return "", err
	}
	vol.Subject = subject
	vol.Role = role

	id, err := p.Register(vol)
	if err != nil {
		return "", err
	}
	p.logger.InfoContext(ctx, "volume loaded",
		"volume", id,
		"name", vol.Name,
		"role", vol.Role,
		"shape", vol.Shape,
		"dtype", vol.DType,
		"fingerprint", vol.Fingerprint)
	return id, nil
}

// Register adds an in-memory volume and returns its id.
func (p *Pipeline) Register(vol *models.Volume) (string, error) {
	return p.store.Register(vol)
}

// Remove unregisters a volume. Cached results stay available to any volume
// with the same content.
func (p *Pipeline) Remove(id string) error {
	if !p.store.Remove(id) {
		return zerr.With(zerr.Wrap(models.ErrVolumeNotFound, "unknown volume"), "volume", id)
	}
	return nil
}

// Volumes lists the registered volumes.
func (p *Pipeline) Volumes() []*models.Volume {
	records := p.store.Volumes()
	out := make([]*models.Volume, len(records))
	for i, rec := range records {
		out[i] = rec.Volume
	}
	return out
}

// Volume returns a registered volume.
func (p *Pipeline) Volume(id string) (*models.Volume, error) {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return nil, err
	}
	return rec.Volume, nil
}

// Info describes a volume, using derived samples when present.
func (p *Pipeline) Info(id string) (analysis.BasicInfo, error) {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return analysis.BasicInfo{}, err
	}
	return analysis.Info(rec.Volume, rec.Samples()), nil
}

// Analyze computes the full statistics report of a volume.
func (p *Pipeline) Analyze(id string) (*analysis.Report, error) {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return nil, err
	}
	report := analysis.Analyze(rec.Volume, rec.Samples(), rec.DerivedMethod)
	return &report, nil
}

// NormalizeIntensity computes the intensity-normalized variant of a volume
// from its raw samples and makes it the preferred data for later operations.
func (p *Pipeline) NormalizeIntensity(ctx context.Context, id string, method analysis.IntensityMethod) error {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return err
	}

	derived, err := analysis.NormalizeIntensity(rec.Volume.Data, method)
	if err != nil {
		return zerr.With(err, "volume", id)
	}
	if err := p.store.SetDerived(id, derived, string(method)); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "intensity normalized", "volume", id, "method", method)
	return nil
}

// ClearCache drops all cached results and returns how many were removed.
func (p *Pipeline) ClearCache(ctx context.Context) int {
	n := p.store.Clear()
	p.logger.InfoContext(ctx, "cache cleared", "entries", n)
	return n
}

// Stats reports cache and registry occupancy.
func (p *Pipeline) Stats() store.Stats {
	return p.store.Stats()
}
