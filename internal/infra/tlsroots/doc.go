// Package tlsroots builds the TLS configuration for cluster connections.
//
//   - roots.go: trusted CA pools (system roots plus custom CA files)
//   - watcher.go: certificate hot reload via fsnotify
//   - cluster.go: listener and dialer configs for the master and nodes
//
// The master serves its certificate through a Watcher so rotated files
// are picked up without a restart. When a CA file is configured the
// master requires node certificates signed by it, and those certificates
// reach the handshake verifier as peer certificates.
package tlsroots
