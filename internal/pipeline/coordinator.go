// Package pipeline runs the fetch, cache and build steps for every example in
// a registry and aggregates the per-example outcomes.
//
// Examples are processed sequentially in registry order. A fetch failure drops
// only that example; a build failure keeps the example without an image. The
// run fails as a whole only when no example could be fetched.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/ductgallery/internal/cache"
	"git.home.luguber.info/inful/ductgallery/internal/fetch"
	"git.home.luguber.info/inful/ductgallery/internal/gallery"
	"git.home.luguber.info/inful/ductgallery/internal/logfields"
	"git.home.luguber.info/inful/ductgallery/internal/metrics"
	"git.home.luguber.info/inful/ductgallery/internal/plot"
	"git.home.luguber.info/inful/ductgallery/internal/source"
)

// Fetcher obtains an example's artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, ex gallery.Example, force bool) (fetch.ArtifactSet, error)
	Plan(ex gallery.Example, force bool) fetch.Plan
}

// Builder derives a plot image from usage data.
type Builder interface {
	Build(ctx context.Context, usage, image string, options []string) (string, error)
}

// Coordinator drives one run over a registry.
type Coordinator struct {
	fetcher  Fetcher
	builder  Builder
	gate     cache.Gate
	imageDir string
	force    bool
	dryRun   bool
	bus      *Bus
	recorder metrics.Recorder
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithForce bypasses every cache decision.
func WithForce(force bool) Option { return func(c *Coordinator) { c.force = force } }

// WithDryRun makes Run report its decisions without fetching, plotting or writing.
func WithDryRun(dryRun bool) Option { return func(c *Coordinator) { c.dryRun = dryRun } }

// WithGate replaces the cache gate used for plot decisions.
func WithGate(g cache.Gate) Option { return func(c *Coordinator) { c.gate = g } }

// WithBus publishes progress events on b.
func WithBus(b *Bus) Option { return func(c *Coordinator) { c.bus = b } }

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(c *Coordinator) { c.recorder = metrics.OrNoop(r) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock overrides time and run ID generation.
func WithClock(now func() time.Time, newID func() string) Option {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewCoordinator returns a Coordinator writing images into imageDir.
func NewCoordinator(f Fetcher, b Builder, imageDir string, opts ...Option) *Coordinator {
	c := &Coordinator{
		fetcher:  f,
		builder:  b,
		gate:     cache.NewGate(0),
		imageDir: imageDir,
		recorder: metrics.NoopRecorder{},
		logger:   slog.Default(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run processes examples in order. The outcome is always returned; the error
// is ErrAllExamplesFailed when nothing could be fetched, or the context error
// when the run was interrupted between examples.
func (c *Coordinator) Run(ctx context.Context, examples []gallery.Example) (*RunOutcome, error) {
	out := &RunOutcome{RunID: c.newID(), Total: len(examples), DryRun: c.dryRun, StartedAt: c.now()}
	log := c.logger.With(logfields.RunID(out.RunID))
	log.Info("Starting gallery run", slog.Int("examples", len(examples)), slog.Bool("force", c.force), slog.Bool("dry_run", c.dryRun))

	var runErr error
	for _, ex := range examples {
		if err := ctx.Err(); err != nil {
			out.Cancelled = true
			runErr = fmt.Errorf("run interrupted: %w", err)
			break
		}
		exLog := log.With(logfields.Example(ex.Title), logfields.Slug(ex.Slug()))
		if c.dryRun {
			c.plan(ex, out, exLog)
			continue
		}
		c.runExample(ctx, ex, out, exLog)
	}
	out.FinishedAt = c.now()

	if runErr == nil && out.AllFailed() {
		runErr = fmt.Errorf("%w (%d of %d)", ErrAllExamplesFailed, out.FetchFailures(), out.Total)
	}
	c.finish(out, log)
	return out, runErr
}

func (c *Coordinator) runExample(ctx context.Context, ex gallery.Example, out *RunOutcome, log *slog.Logger) {
	set, err := c.fetcher.Fetch(ctx, ex, c.force)
	if err != nil {
		log.Warn("Failed to fetch logs", logfields.Error(err))
		out.FetchErrs = append(out.FetchErrs, Failure{Title: ex.Title, Err: err})
		c.publish(FetchFailed{RunID: out.RunID, Title: ex.Title, Err: err}, log)
		return
	}

	result := ExampleResult{Example: ex, Artifacts: set, ImagePath: plot.ImagePath(c.imageDir, ex.Slug())}
	c.buildPlot(ctx, &result, out, log)
	result.ImageExists = fileExists(result.ImagePath)

	out.Fetched = append(out.Fetched, result)
	c.publish(ExampleFetched{RunID: out.RunID, Result: result}, log)
}

func (c *Coordinator) buildPlot(ctx context.Context, result *ExampleResult, out *RunOutcome, log *slog.Logger) {
	decision := c.gate.CheckDerived(result.ImagePath, result.Artifacts.Usage, c.force)
	c.recorder.IncCacheDecision("plot", string(decision.Reason))
	if !decision.Needed {
		log.Debug("Plot is up to date", logfields.Path(result.ImagePath), logfields.Reason(string(decision.Reason)))
		return
	}
	if !result.Artifacts.Available(source.KindUsage) {
		err := fmt.Errorf("%w: usage data unavailable", plot.ErrToolFailed)
		log.Warn("Cannot build plot without usage data", logfields.Path(result.Artifacts.Usage))
		result.PlotErr = err
		out.BuildErrs = append(out.BuildErrs, Failure{Title: result.Example.Title, Err: err})
		c.publish(PlotFailed{RunID: out.RunID, Title: result.Example.Title, Err: err}, log)
		return
	}

	log.Info("Generating plot", logfields.Reason(string(decision.Reason)), logfields.Path(result.ImagePath))
	start := c.now()
	_, err := c.builder.Build(ctx, result.Artifacts.Usage, result.ImagePath, result.Example.PlotOptions)
	if err != nil {
		if errors.Is(err, plot.ErrToolMissing) {
			log.Error("Plot tool not found; install it to generate images", logfields.Error(err), slog.String("hint", plot.InstallHint))
		} else {
			log.Warn("Failed to generate plot", logfields.Error(err))
		}
		result.PlotErr = err
		out.BuildErrs = append(out.BuildErrs, Failure{Title: result.Example.Title, Err: err})
		c.publish(PlotFailed{RunID: out.RunID, Title: result.Example.Title, Err: err}, log)
		return
	}
	result.Regenerated = true
	c.publish(PlotBuilt{RunID: out.RunID, Title: result.Example.Title, Image: result.ImagePath, Duration: c.now().Sub(start)}, log)
}

// plan records what a real run would do for ex. Examples are always counted
// as fetched so the summary reflects the whole registry.
func (c *Coordinator) plan(ex gallery.Example, out *RunOutcome, log *slog.Logger) {
	p := c.fetcher.Plan(ex, c.force)
	result := ExampleResult{Example: ex, Artifacts: p.Artifacts, ImagePath: plot.ImagePath(c.imageDir, ex.Slug())}
	result.ImageExists = fileExists(result.ImagePath)

	if p.Download {
		log.Info("Would fetch logs", logfields.Locality(p.Locality.String()), logfields.Reason(string(p.Reason)))
	} else {
		log.Info("Would reuse logs", logfields.Locality(p.Locality.String()))
	}
	decision := c.gate.CheckDerived(result.ImagePath, result.Artifacts.Usage, c.force || p.Download)
	if decision.Needed {
		log.Info("Would generate plot", logfields.Path(result.ImagePath), logfields.Reason(string(decision.Reason)))
	}
	out.Fetched = append(out.Fetched, result)
}

func (c *Coordinator) finish(out *RunOutcome, log *slog.Logger) {
	c.recorder.ObserveRunDuration(out.Duration())
	c.recorder.IncRunOutcome(out.Status())
	attrs := []any{
		slog.Int("fetched", len(out.Fetched)),
		slog.Int("fetch_failures", out.FetchFailures()),
		slog.Int("build_failures", out.BuildFailures()),
		logfields.DurationMS(float64(out.Duration().Milliseconds())),
		slog.String("outcome", string(out.Status())),
	}
	if out.AllFailed() {
		log.Error("All examples failed to fetch", attrs...)
	} else {
		log.Info("Gallery run finished", attrs...)
	}
	c.publish(RunCompleted{Outcome: out}, log)
}

func (c *Coordinator) publish(e Event, log *slog.Logger) {
	if err := c.bus.Publish(e); err != nil {
		log.Warn("Event handler failed", slog.String("event", e.Name()), logfields.Error(err))
	}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
