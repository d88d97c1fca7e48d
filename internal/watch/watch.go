// Package watch reruns the gallery pipeline when the registry file changes
// and, optionally, on a fixed interval.
//
// Triggers are coalesced: while a run is in progress at most one further run
// is queued, and runs never overlap.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-co-op/gocron/v2"
	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/ductgallery/internal/logfields"
)

// DefaultDebounce absorbs the burst of events editors emit when saving.
const DefaultDebounce = 2 * time.Second

// ErrNothingToWatch is returned when neither file watching nor an interval is enabled.
var ErrNothingToWatch = errors.New("watch: enable registry watching or set an interval")

// RunFunc performs one pipeline run. Errors are logged and do not stop watching.
type RunFunc func(ctx context.Context, reason string) error

// Options configures Run.
type Options struct {
	RegistryPath  string
	WatchRegistry bool
	Interval      time.Duration
	Debounce      time.Duration
	RunOnStart    bool
	Logger        *slog.Logger
}

// Run blocks until ctx is cancelled, invoking run for every trigger. It
// returns nil on cancellation.
func Run(ctx context.Context, opts Options, run RunFunc) error {
	if !opts.WatchRegistry && opts.Interval <= 0 {
		return ErrNothingToWatch
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	triggers := make(chan string, 1)
	trigger := func(reason string) {
		select {
		case triggers <- reason:
		default:
			logger.Debug("Run already pending", logfields.Reason(reason))
		}
	}

	var w *registryWatcher
	if opts.WatchRegistry {
		var err error
		if w, err = newRegistryWatcher(opts.RegistryPath, opts.Debounce, logger); err != nil {
			return err
		}
	}
	var s gocron.Scheduler
	if opts.Interval > 0 {
		var err error
		if s, err = newScheduler(opts.Interval, trigger); err != nil {
			if w != nil {
				_ = w.watcher.Close()
			}
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	if w != nil {
		g.Go(func() error { return w.loop(gctx, trigger) })
	}
	if s != nil {
		logger.Info("Starting scheduler", slog.Duration("interval", opts.Interval))
		s.Start()
		g.Go(func() error {
			<-gctx.Done()
			logger.Info("Stopping scheduler")
			if err := s.Shutdown(); err != nil {
				return fmt.Errorf("stop scheduler: %w", err)
			}
			return gctx.Err()
		})
	}
	g.Go(func() error { return runLoop(gctx, triggers, run, logger) })

	if opts.RunOnStart {
		trigger("startup")
	}

	err := g.Wait()
	if ctx.Err() != nil && errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func runLoop(ctx context.Context, triggers <-chan string, run RunFunc, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case reason := <-triggers:
			logger.Info("Triggered gallery run", logfields.Reason(reason))
			if err := run(ctx, reason); err != nil {
				logger.Error("Gallery run failed", logfields.Reason(reason), logfields.Error(err))
			}
		}
	}
}

func newScheduler(interval time.Duration, trigger func(string)) (gocron.Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() { trigger("interval") }),
		gocron.WithName("gallery-rebuild"),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, fmt.Errorf("failed to create periodic rebuild job: %w", err)
	}
	return s, nil
}

// registryWatcher watches the directory holding the registry, which survives
// editors that replace the file on save.
type registryWatcher struct {
	watcher  *fsnotify.Watcher
	file     string
	debounce time.Duration
	logger   *slog.Logger
}

func newRegistryWatcher(path string, debounce time.Duration, logger *slog.Logger) (*registryWatcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve registry path: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch registry directory %s: %w", filepath.Dir(abs), err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	logger.Info("Watching registry", logfields.Path(abs))
	return &registryWatcher{watcher: watcher, file: filepath.Base(abs), debounce: debounce, logger: logger}, nil
}

func (w *registryWatcher) loop(ctx context.Context, trigger func(string)) error {
	defer func() { _ = w.watcher.Close() }()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != w.file {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				w.logger.Debug("Registry change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				timer.Reset(w.debounce)
				fire = timer.C
			case event.Has(fsnotify.Remove):
				w.logger.Warn("Registry file removed", logfields.Path(event.Name))
			}
		case <-fire:
			fire = nil
			trigger("registry changed")
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Registry watcher error", logfields.Error(err))
		}
	}
}
