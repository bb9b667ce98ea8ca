package commands

import (
	"github.com/spf13/cobra"

	"volmesh/internal/models"
	"volmesh/pkg/analysis"
)

func (c *CLI) newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <volume>",
		Short: "Print shape, spacing and intensity summary of a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			id, err := s.pipeline.Load(cmd.Context(), args[0], "", models.RolePrimary)
			if err != nil {
				return err
			}
			info, err := s.pipeline.Info(id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), info)
		},
	}
}

func (c *CLI) newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <volume>",
		Short: "Print volume, intensity and histogram statistics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := c.session(cmd)
			if err != nil {
				return err
			}
			id, err := s.pipeline.Load(cmd.Context(), args[0], "", models.RolePrimary)
			if err != nil {
				return err
			}
			if err := c.applyIntensity(cmd, s, id); err != nil {
				return err
			}
			report, err := s.pipeline.Analyze(id)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	addIntensityFlag(cmd)
	return cmd
}

func addIntensityFlag(cmd *cobra.Command) {
	cmd.Flags().String("intensity", "", "Intensity normalization applied first (minmax, zscore, percentile)")
}

// applyIntensity derives the intensity-normalized variant when the flag or
// the config asks for one.
func (c *CLI) applyIntensity(cmd *cobra.Command, s *session, id string) error {
	name, _ := cmd.Flags().GetString("intensity")
	if name == "" {
		name = s.cfg.Intensity.Method
	}
	if name == "" {
		return nil
	}
	method, err := analysis.ParseIntensityMethod(name)
	if err != nil {
		return err
	}
	return s.pipeline.NormalizeIntensity(cmd.Context(), id, method)
}
