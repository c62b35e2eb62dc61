// Package metric provides Prometheus metrics for shardmesh.
//
//   - prometheus.go: registry, cluster counters and the /metrics handler
//   - collector.go: scrape-time collector reading live master state
//
// Metrics are exposed at /metrics on the master's admin listener.
package metric
