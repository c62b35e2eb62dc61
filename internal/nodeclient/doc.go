// Package nodeclient implements the worker side of the cluster.
//
// A Client dials the master, runs the mutual handshake, and dispatches
// every authenticated inbound message to the Handler registered under its
// name. Handlers answer requests through Request.Reply, which writes a
// reply frame carrying the request's correlation ID.
//
// Messages are dispatched in arrival order on the connection's reader
// goroutine; a handler that blocks delays every later message.
package nodeclient
