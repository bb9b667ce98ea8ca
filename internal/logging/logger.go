// Package logging builds the structured logger shared by the CLI and the
// processing pipeline.
package logging

import (
	"context"
	"io"
	"log/slog"

	"go.trai.ch/zerr"
)

// Options selects the log format and level.
type Options struct {
	// Verbose enables debug records
	Verbose bool

	// JSON switches from the human-readable text format to JSON lines
	JSON bool
}

// New creates a slog logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(w, handlerOpts))
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Error logs err together with the metadata attached through zerr.With.
func Error(ctx context.Context, logger *slog.Logger, err error) {
	zerr.Log(ctx, logger, err)
}
