// Package main provides the entry point for shardmesh-master.
//
// shardmesh-master accepts node connections, authenticates them and
// routes messages and requests to nodes by shard key. It also serves the
// admin HTTP API used by shardmesh-cli and, when enabled, advertises its
// cluster address over gossip.
//
// Usage:
//
//	shardmesh-master -config /etc/shardmesh/master.yaml
//	shardmesh-master -hash-secret s3cret
package main
