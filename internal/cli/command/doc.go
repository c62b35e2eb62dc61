// Package command defines the shardmesh-cli commands on urfave/cli/v2.
//
//   - root.go: App, global flags, client construction
//   - cluster.go: status, node, send, request and health
//
// Every command calls the master's admin API and renders the envelope's
// data with the formatter chosen by --output.
package command
