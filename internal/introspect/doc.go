// Package introspect serves the read-only HTTP surface of the
// orchestrator: per-realm tree snapshots, lifecycle statistics and
// Prometheus metrics. It observes the instance tree through the model's
// snapshot API and never holds a whole-tree lock.
package introspect
