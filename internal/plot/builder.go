// Package plot derives an SVG resource-usage plot from an example's usage data
// by invoking the external con-duct tool.
//
// The builder is unconditional: callers decide with the cache gate whether an
// existing image is fresh enough to keep.
package plot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/logfields"
	"git.home.luguber.info/inful/ductgallery/internal/metrics"
)

// DefaultTool is the executable invoked when none is configured.
const DefaultTool = "con-duct"

// ImageExt is the suffix of every generated plot.
const ImageExt = ".svg"

// InstallHint is logged alongside tool-missing failures.
const InstallHint = "pip install con-duct"

// Builder invokes `<tool> plot --output <image> [options...] <usage>`.
type Builder struct {
	tool     string
	runner   Runner
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithRunner replaces process execution.
func WithRunner(r Runner) Option {
	return func(b *Builder) {
		if r != nil {
			b.runner = r
		}
	}
}

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(b *Builder) { b.recorder = metrics.OrNoop(r) } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// New returns a Builder for tool (DefaultTool when empty).
func New(tool string, opts ...Option) *Builder {
	if strings.TrimSpace(tool) == "" {
		tool = DefaultTool
	}
	b := &Builder{tool: tool, runner: ExecRunner{}, recorder: metrics.NoopRecorder{}, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Tool returns the configured executable name.
func (b *Builder) Tool() string { return b.tool }

// Args returns the argument list passed to the tool. Options are appended
// verbatim between the output flag and the positional usage path.
func Args(usage, image string, options []string) []string {
	args := make([]string, 0, len(options)+4)
	args = append(args, "plot", "--output", image)
	args = append(args, options...)
	return append(args, usage)
}

// ImagePath returns the plot location for slug inside imageDir.
func ImagePath(imageDir, slug string) string {
	return filepath.Join(imageDir, slug+ImageExt)
}

// Build renders usage into image and returns image. Failures are *Error.
func (b *Builder) Build(ctx context.Context, usage, image string, options []string) (string, error) {
	path, err := b.runner.LookPath(b.tool)
	if err != nil {
		b.recorder.IncPlotResult(metrics.ResultToolMissing)
		return "", &Error{Kind: KindToolMissing, Tool: b.tool, Image: image, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(image), 0o750); err != nil {
		b.recorder.IncPlotResult(metrics.ResultToolFailed)
		return "", &Error{Kind: KindOutputDir, Tool: b.tool, Image: image, Err: err}
	}

	args := Args(usage, image, options)
	b.logger.Debug("Invoking plot tool", logfields.Tool(path), slog.String("args", strings.Join(args, " ")))

	start := time.Now()
	stdout, stderr, err := b.runner.Run(ctx, path, args)
	b.recorder.ObservePlotDuration(time.Since(start))

	if len(stderr) > 0 && err == nil {
		b.logger.Debug("plot tool stderr", slog.String("output", strings.TrimSpace(string(stderr))))
	}
	if err != nil {
		b.recorder.IncPlotResult(metrics.ResultToolFailed)
		output := strings.TrimSpace(string(stderr))
		if output == "" {
			output = strings.TrimSpace(string(stdout))
		}
		return "", &Error{Kind: KindToolFailed, Tool: b.tool, Image: image, Output: output, Err: fmt.Errorf("run %s: %w", b.tool, err)}
	}
	b.recorder.IncPlotResult(metrics.ResultSuccess)
	return image, nil
}
