// Package metrics provides observability hooks for gallery runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	fetcher := fetch.New(cacheRoot, repoRoot, fetch.WithRecorder(recorder))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry.
// A one-shot CLI run has no scrape endpoint, so the registry can be written in
// the node_exporter textfile format with WriteTextfile after the run.
package metrics
