// Package ring implements the consistent hash ring used to pick the worker
// that owns a shard key.
//
// Each physical node contributes ReplicaCount virtual points placed at
// hash(nodeID + ":" + i). Point placement is a pure function of the node
// identifier, so two rings built from the same identifier set are identical.
package ring

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strconv"
	"strings"

	"github.com/spaolacci/murmur3"
)

// DefaultReplicaCount is the default number of virtual points per node.
const DefaultReplicaCount = 128

// Hasher maps a key to a signed 32-bit ring position.
type Hasher func(key string) int32

// CRC32 hashes with the IEEE CRC-32 checksum reinterpreted as a signed
// 32-bit integer: checksums above MaxInt32 land in the negative range
// (checksum - 2^32). This is the wire-compatible default.
func CRC32(key string) int32 {
	return int32(crc32.ChecksumIEEE([]byte(key)))
}

// Murmur3 hashes with MurmurHash3 (32-bit), reinterpreted as signed.
func Murmur3(key string) int32 {
	return int32(murmur3.Sum32([]byte(key)))
}

// HasherByName resolves a configured hasher name.
func HasherByName(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", "crc32":
		return CRC32, nil
	case "murmur3":
		return Murmur3, nil
	default:
		return nil, fmt.Errorf("ring: unknown hash function %q", name)
	}
}

// Point is one virtual node on the ring.
type Point struct {
	Hash   int32
	NodeID string
}

// Ring is a consistent hash ring over virtual replica points.
//
// A Ring is not safe for concurrent mutation. Owners that share a ring
// across goroutines build a fresh one on every membership change and
// publish it whole (see the selector package).
type Ring struct {
	replicas int
	hasher   Hasher
	nodes    []string
	members  map[string]struct{}
	points   []Point
	owners   map[int32]string
}

// New creates an empty ring. A non-positive replica count selects
// DefaultReplicaCount and a nil hasher selects CRC32.
func New(replicas int, hasher Hasher) *Ring {
	if replicas <= 0 {
		replicas = DefaultReplicaCount
	}
	if hasher == nil {
		hasher = CRC32
	}
	return &Ring{
		replicas: replicas,
		hasher:   hasher,
		members:  make(map[string]struct{}),
		owners:   make(map[int32]string),
	}
}

// Build creates a ring holding the given node identifiers. Identifiers are
// added in sorted order so the result does not depend on caller ordering.
func Build(replicas int, hasher Hasher, nodeIDs []string) *Ring {
	ids := make([]string, len(nodeIDs))
	copy(ids, nodeIDs)
	sort.Strings(ids)

	r := New(replicas, hasher)
	for _, id := range ids {
		r.AddNode(id)
	}
	return r
}

// AddNode places ReplicaCount points for nodeID and keeps the point list
// sorted ascending by hash. Points sharing a hash are all kept; the owner
// recorded for that hash is the first node that claimed it. Adding a node
// that is already on the ring is a no-op.
func (r *Ring) AddNode(nodeID string) {
	if _, ok := r.members[nodeID]; ok {
		return
	}
	r.members[nodeID] = struct{}{}
	r.nodes = append(r.nodes, nodeID)

	for i := 0; i < r.replicas; i++ {
		h := r.hasher(nodeID + ":" + strconv.Itoa(i))
		if _, taken := r.owners[h]; !taken {
			r.owners[h] = nodeID
		}
		r.points = append(r.points, Point{Hash: h, NodeID: nodeID})
	}

	sort.SliceStable(r.points, func(i, j int) bool {
		if r.points[i].Hash != r.points[j].Hash {
			return r.points[i].Hash < r.points[j].Hash
		}
		return r.points[i].NodeID < r.points[j].NodeID
	})
}

// Lookup returns the node owning key: the owner of the first point whose
// hash is strictly greater than hash(key).
//
// A key hashing at or past the last point is clamped to the last point
// instead of wrapping to the first one. This keeps placement compatible
// with existing deployments; it differs from textbook consistent hashing,
// which would wrap to the smallest point.
func (r *Ring) Lookup(key string) (string, bool) {
	if len(r.points) == 0 {
		return "", false
	}

	h := r.hasher(key)
	idx := sort.Search(len(r.points), func(i int) bool {
		return r.points[i].Hash > h
	})
	if idx >= len(r.points) {
		idx = len(r.points) - 1
	}

	return r.owners[r.points[idx].Hash], true
}

// Points returns a copy of the sorted point list.
func (r *Ring) Points() []Point {
	out := make([]Point, len(r.points))
	copy(out, r.points)
	return out
}

// Nodes returns the node identifiers in insertion order.
func (r *Ring) Nodes() []string {
	out := make([]string, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Len returns the number of points on the ring.
func (r *Ring) Len() int {
	return len(r.points)
}

// ReplicaCount returns the configured virtual points per node.
func (r *Ring) ReplicaCount() int {
	return r.replicas
}
