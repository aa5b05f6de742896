// Package monitoring provides Prometheus metrics for the orchestration
// core: action throughput and latency, live realm counts, routing and
// hook dispatch outcomes, plus a point-in-time snapshot for the JSON API.
package monitoring
