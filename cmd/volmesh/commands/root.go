// Package commands implements the CLI commands for volmesh.
package commands

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"volmesh/internal/logging"
	"volmesh/pkg/config"
	"volmesh/pkg/pipeline"
)

// CLI represents the command line interface for volmesh.
type CLI struct {
	rootCmd *cobra.Command

	configPath string
	verbose    bool
	jsonLogs   bool
}

// session is the per-invocation state built from the config and the global
// flags.
type session struct {
	cfg      *config.Config
	logger   *slog.Logger
	pipeline *pipeline.Pipeline
}

// New creates a new CLI instance.
func New() *CLI {
	rootCmd := &cobra.Command{
		Use:           "volmesh",
		Short:         "Surface extraction and normalization for volumetric scans",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	c := &CLI{rootCmd: rootCmd}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&c.configPath, "config", "c", "volmesh.yaml", "Path to the configuration file")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")
	flags.BoolVar(&c.jsonLogs, "json", false, "Write logs as JSON lines")

	rootCmd.AddCommand(c.newInfoCmd())
	rootCmd.AddCommand(c.newAnalyzeCmd())
	rootCmd.AddCommand(c.newMeshCmd())
	rootCmd.AddCommand(c.newNormalizeCmd())
	rootCmd.AddCommand(c.newSliceCmd())
	rootCmd.AddCommand(c.newConfigCmd())

	return c
}

// Execute runs the root command with the given context.
func (c *CLI) Execute(ctx context.Context) error {
	c.rootCmd.SetContext(ctx)
	return c.rootCmd.Execute()
}

// SetArgs sets the arguments for the root command. Used for testing.
func (c *CLI) SetArgs(args []string) {
	c.rootCmd.SetArgs(args)
}

// SetOutput sets the output and error streams for the root command. Used for testing.
func (c *CLI) SetOutput(out, err io.Writer) {
	c.rootCmd.SetOut(out)
	c.rootCmd.SetErr(err)
}

func (c *CLI) session(cmd *cobra.Command) (*session, error) {
	cfg, err := config.LoadConfig(c.configPath)
	if err != nil {
		return nil, err
	}
	if c.verbose {
		cfg.Output.Verbose = true
	}
	if c.jsonLogs {
		cfg.Output.JSONLogs = true
	}

	logger := logging.New(cmd.ErrOrStderr(), logging.Options{
		Verbose: cfg.Output.Verbose,
		JSON:    cfg.Output.JSONLogs,
	})

	return &session{
		cfg:      cfg,
		logger:   logger,
		pipeline: pipeline.New(pipeline.ParamsFromConfig(cfg), logger),
	}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
