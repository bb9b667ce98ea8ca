package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"volmesh/pkg/config"
)

func (c *CLI) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a configuration file with default values",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.CreateDefaultConfigFile(c.configPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created default configuration at %s\n", c.configPath)
			return nil
		},
	})

	return cmd
}
