// Package domain defines the error taxonomy of the cluster.
//
// Errors fall into six groups:
//
//   - CLUS: operational errors returned synchronously to callers (no nodes,
//     timeout, lifecycle misuse)
//   - AUTH: handshake rejection, distinguishing local, remote and both
//   - CONN: transport level failures
//   - DISC: gossip discovery
//   - WIRE: protocol violations in the framed stream
//   - SYS: admin API errors
//
// Every error is an *Error compared by code, so wrapped or detailed copies
// match their sentinel with errors.Is. Each sentinel also carries the HTTP
// status the admin API answers with.
package domain
