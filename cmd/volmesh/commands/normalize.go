package commands

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"volmesh/internal/models"
	"volmesh/pkg/normalization"
	"volmesh/pkg/pipeline"
)

// normalizeOutput is the document written by the normalize command.
type normalizeOutput struct {
	Primary    string                        `json:"primary"`
	Generation uint64                        `json:"generation"`
	Mesh       pipeline.MeshPayload          `json:"normalized_mesh"`
	Transform  normalization.TransformRecord `json:"transform"`
	Statistics normalization.Stats           `json:"normalization_stats"`
	Companions []companionOutput             `json:"companions"`
}

type companionOutput struct {
	pipeline.CompanionResult
	File        string                      `json:"file"`
	Coordinates *pipeline.CoordinatePayload `json:"coordinates,omitempty"`
}

func (c *CLI) newNormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize <primary>",
		Short: "Normalize the surface of a primary volume and carry it over to companions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			method, err := normalizationMethod(cmd, s)
			if err != nil {
				return err
			}

			const subject = "cli"
			primaryID, err := s.pipeline.Load(ctx, args[0], subject, models.RolePrimary)
			if err != nil {
				return err
			}
			if err := c.applyIntensity(cmd, s, primaryID); err != nil {
				return err
			}

			files := map[string]string{}
			companions, _ := cmd.Flags().GetStringSlice("companion")
			for _, path := range companions {
				id, err := s.pipeline.Load(ctx, path, subject, models.RoleCompanion)
				if err != nil {
					return err
				}
				files[id] = path
			}

			res, err := s.pipeline.Normalize(ctx, primaryID, method, extractionParams(cmd, s))
			if err != nil {
				return err
			}

			primary, err := s.pipeline.Volume(primaryID)
			if err != nil {
				return err
			}

			out := normalizeOutput{
				Primary:    filepath.Base(args[0]),
				Generation: res.Generation,
				Mesh:       pipeline.NormalizedPayload(res, primary.Spacing),
				Transform:  res.Normalization.Record,
				Statistics: res.Normalization.Stats,
			}
			for _, cr := range res.Companions {
				co := companionOutput{CompanionResult: cr, File: files[cr.VolumeID]}
				if cr.Coordinates != nil {
					payload := pipeline.CoordinatesPayload(cr.Coordinates)
					co.Coordinates = &payload
				}
				out.Companions = append(out.Companions, co)
			}

			if meshPath, _ := cmd.Flags().GetString("mesh"); meshPath != "" {
				if err := exportNormalized(cmd, s, primaryID, meshPath); err != nil {
					return err
				}
			}

			output, _ := cmd.Flags().GetString("output")
			if output == "" || output == "-" {
				return writeJSON(cmd.OutOrStdout(), out)
			}
			f, err := os.Create(output)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create output file"), "path", output)
			}
			defer f.Close()
			if err := writeJSON(f, out); err != nil {
				return err
			}
			return f.Close()
		},
	}

	addExtractionFlags(cmd)
	addIntensityFlag(cmd)
	cmd.Flags().StringSlice("companion", nil, "Companion volume carried into the normalized frame (repeatable)")
	cmd.Flags().String("method", "", "Normalization method (cartesian or spherical), defaults to the config")
	cmd.Flags().StringToString("param", nil, "Method parameter as key=value, e.g. target_size=120")
	cmd.Flags().StringP("output", "o", "-", "Output JSON file, - for stdout")
	cmd.Flags().String("mesh", "", "Also write the normalized mesh as STL to this file")
	cmd.Flags().String("format", "", "STL encoding (ascii or binary), defaults to the config")

	return cmd
}

// normalizationMethod takes the configured method unless --method or
// --param override it.
func normalizationMethod(cmd *cobra.Command, s *session) (normalization.Method, error) {
	name, _ := cmd.Flags().GetString("method")
	raw, _ := cmd.Flags().GetStringToString("param")
	if name == "" && len(raw) == 0 {
		return s.cfg.Method()
	}
	if name == "" {
		name = s.cfg.Normalization.Method
	}

	params := make(map[string]any, len(raw))
	for k, v := range raw {
		params[k] = parseParam(v)
	}
	return normalization.ParseMethod(name, params)
}

func parseParam(v string) any {
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
		return b
	}
	return v
}

func exportNormalized(cmd *cobra.Command, s *session, id, path string) error {
	format, err := meshFormat(cmd, s)
	if err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create mesh file"), "path", path)
	}
	defer f.Close()

	if err := s.pipeline.ExportMesh(cmd.Context(), id, extractionParams(cmd, s), true, format, f); err != nil {
		return zerr.With(err, "path", path)
	}
	return f.Close()
}
