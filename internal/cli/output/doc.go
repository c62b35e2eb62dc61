// Package output renders shardmesh-cli results.
//
//   - formatter.go: Formatter interface and factory
//   - table.go: aligned column tables, JSON fallback for other results
//   - json.go, yaml.go: machine-readable output
//   - spinner.go: progress animation while a request waits for replies
package output
