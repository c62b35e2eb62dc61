// Package httpserver serves the master's admin HTTP API:
//
//   - Health endpoints: /health, /ready
//   - Cluster endpoints: /admin/v1/status, /admin/v1/nodes/{id},
//     /admin/v1/messages, /admin/v1/requests
//   - Prometheus metrics: /metrics
//
// Every route runs behind Recover, RequestID, AccessLog and, when
// configured, NetworkACL and a per-IP RateLimit.
package httpserver
