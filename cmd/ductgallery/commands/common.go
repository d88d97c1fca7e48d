package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"git.home.luguber.info/inful/ductgallery/internal/config"
	"git.home.luguber.info/inful/ductgallery/internal/document"
	ferrors "git.home.luguber.info/inful/ductgallery/internal/foundation/errors"
	"git.home.luguber.info/inful/ductgallery/internal/pipeline"
	"git.home.luguber.info/inful/ductgallery/internal/watch"
)

// Global carries process-wide dependencies into subcommands.
type Global struct {
	Logger *slog.Logger
	Stdout io.Writer
}

func (g *Global) logger() *slog.Logger {
	if g == nil || g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

func (g *Global) stdout() io.Writer {
	if g == nil || g.Stdout == nil {
		return os.Stdout
	}
	return g.Stdout
}

// CLI definition & global flags.
type CLI struct {
	Config  string `short:"c" help:"Registry file (YAML or TOML)" default:"con-duct-gallery.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Generate GenerateCmd `cmd:"" default:"withargs" help:"Fetch logs, build plots and write the gallery (default)"`
	Watch    WatchCmd    `cmd:"" help:"Regenerate the gallery when the registry changes or on an interval"`
	History  HistoryCmd  `cmd:"" help:"List recorded gallery runs"`
	Init     InitCmd     `cmd:"" help:"Write a sample registry file"`
	Version  VersionCmd  `cmd:"" help:"Show version and exit"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return nil
}

// classify maps domain errors onto the categories that decide the exit code.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := ferrors.AsClassified(err); ok {
		return err
	}
	switch {
	case errors.Is(err, context.Canceled):
		return ferrors.WrapError(err, ferrors.CategoryInterrupted, "interrupted").Warning().Build()
	case errors.Is(err, pipeline.ErrAllExamplesFailed):
		return ferrors.WrapError(err, ferrors.CategoryFetch, "no example could be fetched").Retryable().Build()
	case errors.Is(err, document.ErrWrite):
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write gallery").Fatal().Build()
	case errors.Is(err, config.ErrRegistryNotFound),
		errors.Is(err, config.ErrInvalidRegistry),
		errors.Is(err, config.ErrInvalidSettings),
		errors.Is(err, config.ErrExists),
		errors.Is(err, watch.ErrNothingToWatch):
		return ferrors.WrapError(err, ferrors.CategoryConfig, "configuration error").Fatal().UserAction().Build()
	default:
		return err
	}
}
