// Package confloader loads layered configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Defaults already present in the target struct
//  2. A YAML configuration file
//  3. Environment variables (SHARDMESH_SECTION_KEY)
//  4. Explicit overrides from LoadMap, typically command-line flags
//
// Duration fields accept "5s" style strings or bare milliseconds.
//
// A Watcher reports changes to the configuration file, one callback per
// burst of writes, so callers can re-load and apply the settings that may
// change at runtime.
package confloader
