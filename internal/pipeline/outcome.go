package pipeline

import (
	"errors"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/fetch"
	"git.home.luguber.info/inful/ductgallery/internal/gallery"
	"git.home.luguber.info/inful/ductgallery/internal/metrics"
	"git.home.luguber.info/inful/ductgallery/internal/plot"
)

// ErrAllExamplesFailed is returned by Run when every example failed to fetch.
var ErrAllExamplesFailed = errors.New("all examples failed to fetch")

// ExampleResult is one example that produced an artifact set.
type ExampleResult struct {
	Example   gallery.Example
	Artifacts fetch.ArtifactSet
	// ImagePath is where the plot lives (or would live).
	ImagePath string
	// ImageExists reports whether ImagePath is on disk after the run.
	ImageExists bool
	// Regenerated is true when the plot tool ran for this example.
	Regenerated bool
	// PlotErr is the build failure, if any. The example is still part of the gallery.
	PlotErr error
}

// Failure names an example and the error that affected it.
type Failure struct {
	Title string
	Err   error
}

// RunOutcome aggregates the per-example results of one run.
type RunOutcome struct {
	RunID      string
	Total      int
	Fetched    []ExampleResult
	FetchErrs  []Failure
	BuildErrs  []Failure
	DryRun     bool
	Cancelled  bool
	StartedAt  time.Time
	FinishedAt time.Time
}

// FetchFailures is the number of examples dropped because their fetch failed.
func (o *RunOutcome) FetchFailures() int { return len(o.FetchErrs) }

// BuildFailures is the number of fetched examples left without a fresh image.
func (o *RunOutcome) BuildFailures() int { return len(o.BuildErrs) }

// AllFailed reports the hard-failure condition.
func (o *RunOutcome) AllFailed() bool { return o.FetchFailures() == o.Total }

// ToolMissing reports whether any build failed because the plot tool is absent.
func (o *RunOutcome) ToolMissing() bool {
	for _, f := range o.BuildErrs {
		if errors.Is(f.Err, plot.ErrToolMissing) {
			return true
		}
	}
	return false
}

// Duration returns the wall time of the run.
func (o *RunOutcome) Duration() time.Duration { return o.FinishedAt.Sub(o.StartedAt) }

// Status summarizes the outcome for metrics and history.
func (o *RunOutcome) Status() metrics.RunOutcomeLabel {
	switch {
	case o.Cancelled:
		return metrics.RunCancelled
	case o.AllFailed():
		return metrics.RunFailed
	case o.FetchFailures() > 0 || o.BuildFailures() > 0:
		return metrics.RunPartial
	default:
		return metrics.RunSuccess
	}
}
