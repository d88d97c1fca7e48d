package metrics

import "time"

// ResultLabel enumerates per-example result categories for counters.
type ResultLabel string

const (
	ResultSuccess     ResultLabel = "success"
	ResultCached      ResultLabel = "cached"
	ResultNotFound    ResultLabel = "not_found"
	ResultTransport   ResultLabel = "transport_error"
	ResultInvalid     ResultLabel = "invalid"
	ResultToolMissing ResultLabel = "tool_missing"
	ResultToolFailed  ResultLabel = "tool_failed"
)

// RunOutcomeLabel enumerates run-level outcomes.
type RunOutcomeLabel string

const (
	RunSuccess   RunOutcomeLabel = "success"
	RunPartial   RunOutcomeLabel = "partial"
	RunFailed    RunOutcomeLabel = "failed"
	RunCancelled RunOutcomeLabel = "cancelled"
)

// Recorder defines observability hooks for the fetch/cache/build pipeline.
type Recorder interface {
	IncFetchResult(locality string, result ResultLabel)
	IncCacheDecision(artifact, reason string)
	ObserveDownload(d time.Duration, success bool)
	IncDownloadRetry()
	IncPlotResult(result ResultLabel)
	ObservePlotDuration(d time.Duration)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome RunOutcomeLabel)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFetchResult(string, ResultLabel)  {}
func (NoopRecorder) IncCacheDecision(string, string)     {}
func (NoopRecorder) ObserveDownload(time.Duration, bool) {}
func (NoopRecorder) IncDownloadRetry()                   {}
func (NoopRecorder) IncPlotResult(ResultLabel)           {}
func (NoopRecorder) ObservePlotDuration(time.Duration)   {}
func (NoopRecorder) ObserveRunDuration(time.Duration)    {}
func (NoopRecorder) IncRunOutcome(RunOutcomeLabel)       {}

// OrNoop returns r, or NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
