package commands

import (
	"os"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"volmesh/internal/models"
	"volmesh/pkg/pipeline"
	"volmesh/pkg/surface"
)

func (c *CLI) newMeshCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mesh <volume>",
		Short: "Extract the iso-surface of a volume and write it as STL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			id, err := s.pipeline.Load(ctx, args[0], "", models.RolePrimary)
			if err != nil {
				return err
			}
			if err := c.applyIntensity(cmd, s, id); err != nil {
				return err
			}

			format, err := meshFormat(cmd, s)
			if err != nil {
				return err
			}
			output, _ := cmd.Flags().GetString("output")

			f, err := os.Create(output)
			if err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create mesh file"), "path", output)
			}
			defer f.Close()

			if err := s.pipeline.ExportMesh(ctx, id, extractionParams(cmd, s), false, format, f); err != nil {
				return err
			}
			return f.Close()
		},
	}

	addExtractionFlags(cmd)
	addIntensityFlag(cmd)
	cmd.Flags().StringP("output", "o", "output.stl", "Output STL filename")
	cmd.Flags().String("format", "", "STL encoding (ascii or binary), defaults to the config")

	return cmd
}

func addExtractionFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("threshold", 0, "Iso level as a fraction of the smoothed intensity range")
	cmd.Flags().Float64("sigma", 0, "Gaussian smoothing sigma in voxels")
}

// extractionParams starts from the configured defaults and applies the flags
// that were set explicitly.
func extractionParams(cmd *cobra.Command, s *session) surface.Params {
	params := s.cfg.Extraction
	if cmd.Flags().Changed("threshold") {
		params.ThresholdLevel, _ = cmd.Flags().GetFloat64("threshold")
	}
	if cmd.Flags().Changed("sigma") {
		params.SmoothingSigma, _ = cmd.Flags().GetFloat64("sigma")
	}
	return params
}

func meshFormat(cmd *cobra.Command, s *session) (pipeline.MeshFormat, error) {
	name, _ := cmd.Flags().GetString("format")
	if name == "" {
		name = s.cfg.Output.MeshFormat
	}
	return pipeline.ParseMeshFormat(name)
}
