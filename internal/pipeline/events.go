package pipeline

import "time"

// Event is published on the Bus as the coordinator progresses.
type Event interface{ Name() string }

// Event names.
const (
	EventExampleFetched = "ExampleFetched"
	EventFetchFailed    = "FetchFailed"
	EventPlotBuilt      = "PlotBuilt"
	EventPlotFailed     = "PlotFailed"
	EventRunCompleted   = "RunCompleted"
)

// ExampleFetched reports an example whose artifacts are available.
type ExampleFetched struct {
	RunID  string
	Result ExampleResult
}

func (ExampleFetched) Name() string { return EventExampleFetched }

// FetchFailed reports an example dropped from the run.
type FetchFailed struct {
	RunID string
	Title string
	Err   error
}

func (FetchFailed) Name() string { return EventFetchFailed }

// PlotBuilt reports a freshly generated image.
type PlotBuilt struct {
	RunID    string
	Title    string
	Image    string
	Duration time.Duration
}

func (PlotBuilt) Name() string { return EventPlotBuilt }

// PlotFailed reports an example kept without an image.
type PlotFailed struct {
	RunID string
	Title string
	Err   error
}

func (PlotFailed) Name() string { return EventPlotFailed }

// RunCompleted carries the final outcome, including for hard failures.
type RunCompleted struct {
	Outcome *RunOutcome
}

func (RunCompleted) Name() string { return EventRunCompleted }
