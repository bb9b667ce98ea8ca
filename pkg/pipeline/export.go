package pipeline

import (
	"context"
	"io"
	"path/filepath"

	"go.trai.ch/zerr"
	"golang.org/x/sync/errgroup"

	"volmesh/internal/models"
	"volmesh/pkg/geometry"
	"volmesh/pkg/nifti"
	"volmesh/pkg/stl"
	"volmesh/pkg/surface"
	"volmesh/pkg/visualization"
)

// MeshFormat selects the STL encoding.
type MeshFormat string

const (
	MeshASCII  MeshFormat = "ascii"
	MeshBinary MeshFormat = "binary"
)

// ParseMeshFormat validates a mesh format name.
func ParseMeshFormat(name string) (MeshFormat, error) {
	switch f := MeshFormat(name); f {
	case MeshASCII, MeshBinary:
		return f, nil
	}
	return "", zerr.With(zerr.Wrap(models.ErrUnsupportedFormat, "unsupported mesh format"), "format", name)
}

// ExportMesh writes a surface of a volume as STL. With normalized set the
// stored normalized mesh of the primary is written; otherwise the surface is
// extracted with params and written in physical space.
func (p *Pipeline) ExportMesh(ctx context.Context, id string, params surface.Params, normalized bool, format MeshFormat, w io.Writer) error {
	var mesh *models.Mesh
	if normalized {
		n, err := p.Normalization(id)
		if err != nil {
			return err
		}
		mesh = n.Mesh
	} else {
		rec, err := p.store.Snapshot(id)
		if err != nil {
			return err
		}
		res, err := p.ExtractSurface(ctx, id, params)
		if err != nil {
			return err
		}
		mesh = geometry.ToPhysical(res.Mesh, rec.Volume.Spacing)
	}

	var err error
	switch format {
	case MeshASCII:
		err = stl.WriteASCII(w, id, mesh)
	case MeshBinary:
		err = stl.WriteBinary(w, stl.Triangles(mesh))
	default:
		return zerr.With(zerr.Wrap(models.ErrUnsupportedFormat, "unsupported mesh format"), "format", string(format))
	}
	if err != nil {
		return zerr.With(err, "volume", id)
	}

	p.logger.InfoContext(ctx, "mesh exported",
		"volume", id,
		"format", format,
		"normalized", normalized,
		"faces", len(mesh.Faces))
	return nil
}

// ExportVolume writes the effective samples of a volume, derived when
// present, as a NIfTI-1 file.
func (p *Pipeline) ExportVolume(ctx context.Context, id, path string) error {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return err
	}
	if err := nifti.Save(path, rec.Volume, rec.Samples()); err != nil {
		return zerr.With(err, "volume", id)
	}
	p.logger.InfoContext(ctx, "volume exported", "volume", id, "path", path)
	return nil
}

// SaveSlices renders every slice of each plane into outputDir/<plane>, one
// plane per goroutine.
func (p *Pipeline) SaveSlices(ctx context.Context, id string, planes []visualization.Plane, outputDir string, format visualization.Format) error {
	rec, err := p.store.Snapshot(id)
	if err != nil {
		return err
	}
	viewer := visualization.NewViewer(rec.Samples(), rec.Volume.Shape)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.params.NumCores)
	for _, plane := range planes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			dir := filepath.Join(outputDir, string(plane))
			if err := viewer.SaveSliceSequence(plane, dir, format); err != nil {
				return zerr.With(err, "plane", string(plane))
			}
			p.logger.InfoContext(gctx, "slices saved", "volume", id, "plane", plane, "dir", dir)
			return nil
		})
	}
	return g.Wait()
}
