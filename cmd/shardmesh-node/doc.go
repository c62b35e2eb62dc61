// Package main provides the entry point for shardmesh-node.
//
// shardmesh-node connects to a master, authenticates and serves the
// built-in ping, echo and info handlers. It reconnects after the master
// goes away. With discovery enabled it finds the master through gossip
// instead of node.host and node.port.
package main
