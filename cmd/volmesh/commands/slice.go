package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.trai.ch/zerr"

	"volmesh/internal/models"
	"volmesh/pkg/visualization"
)

func (c *CLI) newSliceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slice <volume>",
		Short: "Export display-oriented slices of a volume as images",
		Long: "Writes one slice when --index is given, otherwise every slice of the " +
			"selected planes into <output>/<plane>/.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			formatName, _ := cmd.Flags().GetString("format")
			if formatName == "" {
				formatName = s.cfg.Output.SliceFormat
			}
			format, err := visualization.ParseFormat(formatName)
			if err != nil {
				return err
			}

			planeName, _ := cmd.Flags().GetString("plane")
			planes := visualization.Planes
			if planeName != "all" {
				plane, err := visualization.ParsePlane(planeName)
				if err != nil {
					return err
				}
				planes = []visualization.Plane{plane}
			}

			id, err := s.pipeline.Load(ctx, args[0], "", models.RolePrimary)
			if err != nil {
				return err
			}
			if err := c.applyIntensity(cmd, s, id); err != nil {
				return err
			}

			outputDir, _ := cmd.Flags().GetString("output")
			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return zerr.With(zerr.Wrap(err, "failed to create output directory"), "path", outputDir)
			}

			if cmd.Flags().Changed("index") {
				index, _ := cmd.Flags().GetInt("index")
				for _, plane := range planes {
					res, err := s.pipeline.Slice(ctx, id, plane, index)
					if err != nil {
						return err
					}
					name := filepath.Join(outputDir, fmt.Sprintf("%s_%04d.%s", plane, index, format.Extension()))
					if err := visualization.SaveImage(visualization.ToGray16(res.Slice), name, format); err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			}

			return s.pipeline.SaveSlices(ctx, id, planes, outputDir, format)
		},
	}

	addIntensityFlag(cmd)
	cmd.Flags().String("plane", "all", "Plane to export (axial, coronal, sagittal or all)")
	cmd.Flags().Int("index", 0, "Export only the slice at this index")
	cmd.Flags().StringP("output", "o", "slices", "Output directory")
	cmd.Flags().String("format", "", "Image format (jpeg or tiff), defaults to the config")

	return cmd
}
