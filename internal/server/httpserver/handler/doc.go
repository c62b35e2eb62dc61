// Package handler implements the master's admin HTTP API.
//
//   - health.go: liveness and readiness
//   - cluster.go: status, node lookup, send and request
//   - types.go: request/response bodies and the response envelope
//
// Every JSON response uses the Response envelope. Errors carry an
// SM-<AREA>-<NNNN> code in the body and the X-Error-Code header.
package handler
