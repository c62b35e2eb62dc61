// Package clusterserver implements the cluster master.
//
// The master accepts node connections, authenticates each one with the
// mutual welcome/verdict handshake, places authenticated nodes on a
// consistent hash ring, and routes named messages to the node owning a
// shard key (or to every node for an empty key).
//
// Request fans a message out and correlates the replies. A request
// completes exactly once: when every addressed node has replied, or when
// its deadline fires with whatever replies arrived. Nodes leaving the
// cluster do not fail pending requests; the deadline covers them.
//
// Each connection is served by one goroutine that reads frames in order,
// runs the handshake, and dispatches replies and named messages. Writes
// from other goroutines go through a per-connection write lock.
package clusterserver
