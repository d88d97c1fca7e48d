package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/ductgallery/internal/config"
	"git.home.luguber.info/inful/ductgallery/internal/document"
	"git.home.luguber.info/inful/ductgallery/internal/fetch"
	"git.home.luguber.info/inful/ductgallery/internal/history"
	"git.home.luguber.info/inful/ductgallery/internal/logfields"
	"git.home.luguber.info/inful/ductgallery/internal/metrics"
	"git.home.luguber.info/inful/ductgallery/internal/notify"
	"git.home.luguber.info/inful/ductgallery/internal/pipeline"
	"git.home.luguber.info/inful/ductgallery/internal/plot"
	"git.home.luguber.info/inful/ductgallery/internal/repo"
)

// runOnce loads the registry, runs the pipeline and writes the gallery.
func runOnce(ctx context.Context, global *Global, registryPath string, ov config.Overrides) error {
	log := global.logger()

	file, err := config.Load(registryPath)
	if err != nil {
		return err
	}
	settings, err := config.Resolve(file.Settings, ov)
	if err != nil {
		return err
	}

	registryDir := filepath.Dir(registryPath)
	info, repoErr := repo.Discover(registryDir)
	if repoErr != nil {
		log.Debug("Registry is not inside a git repository", logfields.Path(registryDir), logfields.Error(repoErr))
	}
	repoRoot := settings.RepoRoot
	if repoRoot == "" {
		if repoErr == nil {
			repoRoot = info.Root
		} else {
			repoRoot = repo.Root(registryDir)
		}
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	var promRecorder *metrics.PrometheusRecorder
	if settings.MetricsFile != "" && !settings.DryRun {
		promRecorder = metrics.NewPrometheusRecorder(nil)
		recorder = promRecorder
	}

	var store *history.SQLiteStore
	if settings.HistoryDB != "" && !settings.DryRun {
		store, err = history.NewSQLiteStore(settings.HistoryDB)
		if err != nil {
			return fmt.Errorf("open run history %s: %w", settings.HistoryDB, err)
		}
		defer func() { _ = store.Close() }()
	}

	bus := pipeline.NewBus()
	bus.Subscribe(pipeline.EventPlotBuilt, func(e pipeline.Event) error {
		if built, ok := e.(pipeline.PlotBuilt); ok {
			log.Info("Plot generated", logfields.Example(built.Title), logfields.Path(built.Image),
				logfields.DurationMS(float64(built.Duration.Milliseconds())))
		}
		return nil
	})

	notifier := newNotifier(settings, log)
	defer func() { _ = notifier.Close() }()

	fetcher := fetch.New(settings.LogDir, repoRoot,
		fetch.WithTimeout(settings.HTTPTimeout),
		fetch.WithRetryPolicy(settings.Retry),
		fetch.WithRecorder(recorder),
		fetch.WithLogger(log),
	)
	builder := plot.New(settings.Tool, plot.WithRecorder(recorder), plot.WithLogger(log))
	coordinator := pipeline.NewCoordinator(fetcher, builder, settings.ImageDir,
		pipeline.WithForce(settings.Force),
		pipeline.WithDryRun(settings.DryRun),
		pipeline.WithBus(bus),
		pipeline.WithRecorder(recorder),
		pipeline.WithLogger(log),
	)

	outcome, runErr := coordinator.Run(ctx, file.Examples)

	var (
		doc      document.Document
		written  bool
		writeErr error
	)
	if runErr == nil {
		doc, written, writeErr = writeGallery(outcome, settings, filepath.Base(registryPath), log)
		if writeErr == nil {
			printSummary(global.stdout(), outcome, doc, settings.DryRun)
		}
	}
	reportFailures(outcome, log)

	if store != nil {
		run := history.FromOutcome(outcome, info.Commit)
		if writeErr != nil {
			run.MarkWriteFailed(settings.Output, writeErr)
		}
		if err := store.Record(context.WithoutCancel(ctx), run); err != nil {
			log.Warn("Failed to record run history", logfields.Path(settings.HistoryDB), logfields.Error(err))
		}
	}
	if promRecorder != nil {
		if err := promRecorder.WriteTextfile(settings.MetricsFile); err != nil {
			log.Warn("Failed to write metrics textfile", logfields.Path(settings.MetricsFile), logfields.Error(err))
		}
	}
	if err := notifier.Notify(context.WithoutCancel(ctx), notify.NewSummary(outcome, settings.Output, written)); err != nil {
		log.Warn("Failed to publish run summary", logfields.Error(err))
	}

	if writeErr != nil {
		return writeErr
	}
	return runErr
}

func newNotifier(settings config.Settings, log *slog.Logger) notify.Notifier {
	if settings.NATSURL == "" || settings.DryRun {
		return notify.Noop{}
	}
	n, err := notify.NewNATSNotifier(notify.NATSOptions{
		URL:     settings.NATSURL,
		Subject: settings.NATSSubject,
		Logger:  log,
	})
	if err != nil {
		log.Warn("Run notifications disabled", logfields.URL(settings.NATSURL), logfields.Error(err))
		return notify.Noop{}
	}
	return n
}

// writeGallery renders the gallery and writes it when its content changed.
// A dry run only reports whether it would change.
func writeGallery(outcome *pipeline.RunOutcome, settings config.Settings, registryName string, log *slog.Logger) (document.Document, bool, error) {
	doc := document.Render(outcome.Fetched, document.Options{
		OutputPath:   settings.Output,
		RegistryName: registryName,
	})

	if settings.DryRun {
		changed := true
		if existing, err := os.ReadFile(settings.Output); err == nil {
			if fp, ok := document.EmbeddedFingerprint(existing); ok && fp == doc.Fingerprint {
				changed = false
			}
		}
		log.Info("Dry run: gallery not written", logfields.Path(settings.Output), slog.Bool("would_change", changed))
		return doc, false, nil
	}

	written, err := document.Write(settings.Output, doc)
	if err != nil {
		return doc, false, err
	}
	if written {
		log.Info("Gallery written", logfields.Path(settings.Output), slog.String("fingerprint", doc.Fingerprint))
	} else {
		log.Info("Gallery unchanged", logfields.Path(settings.Output))
	}

	for _, target := range document.MissingTargets([]byte(doc.Markdown), filepath.Dir(settings.Output)) {
		log.Warn("Gallery links to a missing file", logfields.Path(target))
	}

	if settings.HTMLOutput != "" {
		if err := writeHTML(doc, settings.HTMLOutput, log); err != nil {
			return doc, written, err
		}
	}
	return doc, written, nil
}

func writeHTML(doc document.Document, path string, log *slog.Logger) error {
	page, err := document.RenderHTML([]byte(doc.Markdown))
	if err != nil {
		return fmt.Errorf("render html: %w", err)
	}
	broken, err := document.BrokenAnchors(bytes.NewReader(page))
	if err != nil {
		return fmt.Errorf("check html anchors: %w", err)
	}
	for _, anchor := range broken {
		log.Warn("HTML gallery has a broken anchor", slog.String("anchor", anchor))
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("%w: %w", document.ErrWrite, err)
	}
	if err := os.WriteFile(path, page, 0o644); err != nil { // #nosec G306 -- published page
		return fmt.Errorf("%w: %w", document.ErrWrite, err)
	}
	log.Info("HTML gallery written", logfields.Path(path))
	return nil
}

func printSummary(out io.Writer, outcome *pipeline.RunOutcome, doc document.Document, dryRun bool) {
	prefix := ""
	if dryRun {
		prefix = "[dry run] "
	}
	_, _ = fmt.Fprintf(out, "%sGenerated gallery with %d examples, %d tags\n", prefix, doc.Examples, doc.Tags)
	if n := outcome.FetchFailures(); n > 0 {
		_, _ = fmt.Fprintf(out, "%d of %d examples failed to fetch\n", n, outcome.Total)
	}
	if n := outcome.BuildFailures(); n > 0 {
		_, _ = fmt.Fprintf(out, "%d plots could not be generated\n", n)
	}
	if outcome.ToolMissing() {
		_, _ = fmt.Fprintf(out, "Plot tool not found; install it with: %s\n", plot.InstallHint)
	}
}

func reportFailures(outcome *pipeline.RunOutcome, log *slog.Logger) {
	for _, f := range outcome.FetchErrs {
		log.Warn("Example skipped", logfields.Example(f.Title), logfields.Error(f.Err))
	}
	for _, f := range outcome.BuildErrs {
		if errors.Is(f.Err, plot.ErrToolMissing) {
			continue
		}
		log.Warn("Plot not generated", logfields.Example(f.Title), logfields.Error(f.Err))
	}
}
