// Package fetch obtains the four artifacts of an example: the manifest, usage
// data, captured stdout and captured stderr.
//
// Local examples are used in place. Remote examples are downloaded into
// <cacheRoot>/<slug>/ under fixed filenames and reused on later runs as long
// as all four files are present.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/cache"
	"git.home.luguber.info/inful/ductgallery/internal/gallery"
	"git.home.luguber.info/inful/ductgallery/internal/logfields"
	"git.home.luguber.info/inful/ductgallery/internal/metrics"
	"git.home.luguber.info/inful/ductgallery/internal/retry"
	"git.home.luguber.info/inful/ductgallery/internal/source"
)

// DefaultTimeout bounds every individual download.
const DefaultTimeout = 30 * time.Second

// Fetcher resolves and obtains example artifacts.
type Fetcher struct {
	cacheRoot string
	resolver  source.Resolver
	gate      cache.Gate
	client    *http.Client
	policy    retry.Policy
	recorder  metrics.Recorder
	logger    *slog.Logger
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient replaces the HTTP client (its Timeout bounds each download).
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		if c != nil {
			f.client = c
		}
	}
}

// WithTimeout sets the per-download timeout on the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithRetryPolicy enables retries of transient download failures.
func WithRetryPolicy(p retry.Policy) Option { return func(f *Fetcher) { f.policy = p } }

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option { return func(f *Fetcher) { f.recorder = metrics.OrNoop(r) } }

// WithLogger sets the logger used for fetch progress.
func WithLogger(l *slog.Logger) Option {
	return func(f *Fetcher) {
		if l != nil {
			f.logger = l
		}
	}
}

// WithGate replaces the cache gate.
func WithGate(g cache.Gate) Option { return func(f *Fetcher) { f.gate = g } }

// New returns a Fetcher caching remote artifacts under cacheRoot and resolving
// local manifests against repoRoot.
func New(cacheRoot, repoRoot string, opts ...Option) *Fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	f := &Fetcher{
		cacheRoot: cacheRoot,
		resolver:  source.NewResolver(repoRoot),
		gate:      cache.NewGate(0),
		client:    &http.Client{Timeout: DefaultTimeout, Transport: transport},
		policy:    retry.DefaultPolicy(),
		recorder:  metrics.NoopRecorder{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CacheDir returns the cache directory used for a remote example.
func (f *Fetcher) CacheDir(ex gallery.Example) string {
	return filepath.Join(f.cacheRoot, ex.Slug())
}

// Fetch returns the artifact set for ex. Failures are returned as *Error.
func (f *Fetcher) Fetch(ctx context.Context, ex gallery.Example, force bool) (ArtifactSet, error) {
	locality, manifestLoc := f.resolver.ManifestLocation(ex.InfoFile)
	log := f.logger.With(logfields.Example(ex.Title), logfields.Locality(locality.String()))

	var (
		set ArtifactSet
		err error
	)
	if locality == source.Local {
		set, err = f.fetchLocal(ex, manifestLoc, log)
	} else {
		set, err = f.fetchRemote(ctx, ex, manifestLoc, force, log)
	}
	f.recorder.IncFetchResult(locality.String(), resultLabel(set, err))
	return set, err
}

func resultLabel(set ArtifactSet, err error) metrics.ResultLabel {
	var fe *Error
	switch {
	case err == nil && set.Cached:
		return metrics.ResultCached
	case err == nil:
		return metrics.ResultSuccess
	case errors.As(err, &fe) && fe.Kind == KindNotFound:
		return metrics.ResultNotFound
	case errors.As(err, &fe) && fe.Kind == KindTransport:
		return metrics.ResultTransport
	default:
		return metrics.ResultInvalid
	}
}

func (f *Fetcher) fetchLocal(ex gallery.Example, manifestPath string, log *slog.Logger) (ArtifactSet, error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindNotFound, Artifact: source.KindInfo, Location: manifestPath, Err: err}
	}
	manifest, err := source.ParseManifest(data)
	if err != nil {
		return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindInvalidManifest, Artifact: source.KindInfo, Location: manifestPath, Err: err}
	}
	siblings, err := source.ResolveSiblings(manifest, manifestPath, source.Local)
	if err != nil {
		return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindInvalidManifest, Err: err}
	}

	set := ArtifactSet{Locality: source.Local, Info: manifestPath}
	for _, kind := range dataKinds {
		p, ok := siblings[kind]
		if !ok {
			log.Debug("Artifact not declared by manifest", logfields.Artifact(string(kind)))
			continue
		}
		if _, err := os.Stat(p); err != nil {
			return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindNotFound, Artifact: kind, Location: p, Err: err}
		}
		switch kind {
		case source.KindUsage:
			set.Usage = p
		case source.KindStdout:
			set.Stdout = p
		case source.KindStderr:
			set.Stderr = p
		}
	}
	log.Info("Using local logs", logfields.Path(filepath.Dir(manifestPath)))
	return set, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, ex gallery.Example, manifestURL string, force bool, log *slog.Logger) (ArtifactSet, error) {
	dir := f.CacheDir(ex)
	targets := cacheTargets(dir)

	decision := f.gate.CheckSet(targets.all(), force)
	f.recorder.IncCacheDecision("logs", string(decision.Reason))
	if !decision.Needed {
		log.Info("Using cached logs", logfields.Path(dir))
		targets.Cached = true
		return targets, nil
	}
	log.Info("Fetching logs", logfields.Reason(string(decision.Reason)), logfields.URL(manifestURL))

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindCache, Location: dir, Err: err}
	}

	if err := f.download(ctx, manifestURL, targets.Info); err != nil {
		return ArtifactSet{}, f.downloadError(ex, source.KindInfo, manifestURL, err)
	}
	data, err := os.ReadFile(targets.Info)
	if err != nil {
		return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindCache, Artifact: source.KindInfo, Location: targets.Info, Err: err}
	}
	manifest, err := source.ParseManifest(data)
	if err != nil {
		return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindInvalidManifest, Artifact: source.KindInfo, Location: manifestURL, Err: err}
	}
	siblings, err := source.ResolveSiblings(manifest, manifestURL, source.Remote)
	if err != nil {
		return ArtifactSet{}, &Error{Title: ex.Title, Kind: KindInvalidManifest, Err: err}
	}

	set := targets
	for _, kind := range dataKinds {
		u, ok := siblings[kind]
		if !ok {
			log.Warn("Artifact not declared by manifest", logfields.Artifact(string(kind)))
			set = set.without(kind)
			continue
		}
		if err := f.download(ctx, u, targets.Path(kind)); err != nil {
			return ArtifactSet{}, f.downloadError(ex, kind, u, err)
		}
		log.Debug("Downloaded artifact", logfields.Artifact(string(kind)), logfields.URL(u))
	}
	return set, nil
}

func (f *Fetcher) downloadError(ex gallery.Example, kind source.ArtifactKind, u string, err error) error {
	var se *statusError
	if errors.As(err, &se) || isTransportError(err) {
		return &Error{Title: ex.Title, Kind: KindTransport, Artifact: kind, Location: u, Err: err}
	}
	return &Error{Title: ex.Title, Kind: KindCache, Artifact: kind, Location: u, Err: err}
}

// statusError reports a non-success HTTP status.
type statusError struct {
	URL  string
	Code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.Code, http.StatusText(e.Code))
}

// transportError marks failures raised by the HTTP client itself.
type transportError struct{ err error }

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func isTransportError(err error) bool {
	var te *transportError
	return errors.As(err, &te)
}

// retryable reports whether a download failure is worth another attempt:
// network errors, 429 and 5xx responses.
func retryable(err error) bool {
	var se *statusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	var ne net.Error
	return isTransportError(err) || errors.As(err, &ne)
}

// download fetches u into dest. The body is written to a temporary file in
// the destination directory and renamed into place, so an interrupted
// transfer never leaves a truncated file at dest.
func (f *Fetcher) download(ctx context.Context, u, dest string) error {
	return f.policy.Do(ctx, func() error {
		start := time.Now()
		err := f.downloadOnce(ctx, u, dest)
		f.recorder.ObserveDownload(time.Since(start), err == nil)
		return err
	}, retryable, func(attempt int, delay time.Duration, err error) {
		f.recorder.IncDownloadRetry()
		f.logger.Warn("Retrying download", logfields.URL(u), slog.Int("attempt", attempt),
			slog.Duration("delay", delay), logfields.Error(err))
	})
}

func (f *Fetcher) downloadOnce(ctx context.Context, u, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return &transportError{err: err}
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return &statusError{URL: u, Code: resp.StatusCode}
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return &transportError{err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return nil
}
