// Package metrics registers the CORE's internal Prometheus counters
// and histograms (placement latency, capability mint rate, commit
// failures, engine cycle duration, raft applied index) and a Collector
// that periodically refreshes the gauges derived from the cluster
// view's current snapshot.
//
// These are registered with the default registry so tests and
// internal debug tooling can read them, but nothing in this package
// serves them over HTTP: monitoring exporters are out of scope.
package metrics
