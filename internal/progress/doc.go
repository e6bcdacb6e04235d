// Package progress provides the event primitives, non-blocking hub, and emitter
// interfaces the scan pipeline uses to report per-ID outcomes and run lifecycle
// changes. It batches events on a background goroutine and fans them out to
// pluggable sinks such as Prometheus collectors or the run repository.
package progress
