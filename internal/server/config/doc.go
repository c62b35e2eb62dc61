// Package config defines the master and node daemon configuration.
//
//   - spec.go: MasterConfig and NodeConfig
//   - default.go: default values
//   - verify.go: validation
//   - sanitize.go: masking secrets for logging
//   - options.go: mapping to clusterserver.Config and nodeclient.Config
//
// Configuration is loaded via internal/infra/confloader from a YAML file,
// SHARDMESH_* environment variables and command-line flags.
package config
