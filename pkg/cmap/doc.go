// Package cmap provides a sharded concurrent map keyed by strings.
//
// The master keeps its live connections here, keyed by connection ID.
// Each shard has its own RWMutex, so accept, teardown and status reads on
// different connections rarely contend. Range visits shards one at a
// time; its view is not an atomic snapshot of the whole map.
package cmap
