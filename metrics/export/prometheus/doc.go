// Package prometheus exposes engine metrics as a client_golang Collector.
//
// Register a [Collector] with any prometheus.Registerer, or mount
// [Collector.Handler] directly. Counter names are prefixed gosession_ and end
// in _total; the single histogram is gosession_verify_latency_seconds.
//
// The collector never registers itself in the default registry.
package prometheus
