// Package main provides the entry point for shardmesh-cli.
//
// shardmesh-cli talks to the master's admin HTTP API:
//
//	shardmesh-cli status
//	shardmesh-cli node 01J0ABCDEF
//	shardmesh-cli send --key user-42 reload '{"force":true}'
//	shardmesh-cli -o json request --timeout 2s ping
//	shardmesh-cli health
package main
