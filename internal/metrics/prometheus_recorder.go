package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "ductgallery"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg              *prom.Registry
	fetchResults     *prom.CounterVec
	cacheDecisions   *prom.CounterVec
	downloadDuration *prom.HistogramVec
	downloadRetries  prom.Counter
	plotResults      *prom.CounterVec
	plotDuration     prom.Histogram
	runDuration      prom.Histogram
	runOutcomes      *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		fetchResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_results_total",
			Help:      "Per-example artifact fetch results by locality",
		}, []string{"locality", "result"}),
		cacheDecisions: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "cache_decisions_total",
			Help:      "Cache gate decisions by artifact and reason",
		}, []string{"artifact", "reason"}),
		downloadDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "download_duration_seconds",
			Help:      "Duration of individual artifact downloads",
			Buckets:   prom.DefBuckets,
		}, []string{"result"}),
		downloadRetries: prom.NewCounter(prom.CounterOpts{
			Namespace: namespace,
			Name:      "download_retries_total",
			Help:      "Download retries after transient failures",
		}),
		plotResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "plot_results_total",
			Help:      "Plot tool invocations by result",
		}, []string{"result"}),
		plotDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "plot_duration_seconds",
			Help:      "Duration of plot tool invocations",
			Buckets:   prom.DefBuckets,
		}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.ExponentialBuckets(0.5, 2, 10),
		}),
		runOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Pipeline runs by final outcome",
		}, []string{"outcome"}),
	}
	reg.MustRegister(pr.fetchResults, pr.cacheDecisions, pr.downloadDuration, pr.downloadRetries,
		pr.plotResults, pr.plotDuration, pr.runDuration, pr.runOutcomes)
	return pr
}

// Registry returns the registry the recorder's collectors live on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) IncFetchResult(locality string, result ResultLabel) {
	p.fetchResults.WithLabelValues(locality, string(result)).Inc()
}

func (p *PrometheusRecorder) IncCacheDecision(artifact, reason string) {
	p.cacheDecisions.WithLabelValues(artifact, reason).Inc()
}

func (p *PrometheusRecorder) ObserveDownload(d time.Duration, success bool) {
	res := "failed"
	if success {
		res = "success"
	}
	p.downloadDuration.WithLabelValues(res).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDownloadRetry() { p.downloadRetries.Inc() }

func (p *PrometheusRecorder) IncPlotResult(result ResultLabel) {
	p.plotResults.WithLabelValues(string(result)).Inc()
}

func (p *PrometheusRecorder) ObservePlotDuration(d time.Duration) { p.plotDuration.Observe(d.Seconds()) }

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) { p.runDuration.Observe(d.Seconds()) }

func (p *PrometheusRecorder) IncRunOutcome(outcome RunOutcomeLabel) {
	p.runOutcomes.WithLabelValues(string(outcome)).Inc()
}

// WriteTextfile writes every metric gathered from the recorder's registry to
// path in the Prometheus text exposition format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	return prom.WriteToTextfile(path, p.reg)
}
