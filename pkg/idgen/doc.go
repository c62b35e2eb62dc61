// Package idgen generates identifiers for connections and correlated
// requests.
//
// IDs are lowercase ULIDs: 26 characters, lexicographically sortable by
// creation time, and monotonic within a millisecond for one Generator.
package idgen
