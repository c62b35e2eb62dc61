// Package selector maps shard keys to registered node handles.
//
// A Selector pairs a registry (node ID -> handle) with a consistent hash
// ring. Every membership change builds a new immutable snapshot holding
// both, then publishes it atomically. Readers always work against one
// complete snapshot and never observe a half-rebuilt ring.
package selector

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/yndnr/shardmesh-go/internal/core/ring"
)

// Config configures a Selector.
type Config struct {
	// ReplicaCount is the number of virtual points per node (default 128).
	ReplicaCount int

	// Hasher places points and keys on the ring (default ring.CRC32).
	Hasher ring.Hasher
}

// snapshot is an immutable view of the membership.
type snapshot[H any] struct {
	ring  *ring.Ring
	nodes map[string]H
	ids   []string // sorted
}

// Selector resolves shard keys to node handles.
type Selector[H any] struct {
	cfg Config

	// mu serializes writers; readers only load the current snapshot.
	mu      sync.Mutex
	current atomic.Pointer[snapshot[H]]
}

// New creates an empty selector.
func New[H any](cfg Config) *Selector[H] {
	if cfg.ReplicaCount <= 0 {
		cfg.ReplicaCount = ring.DefaultReplicaCount
	}
	if cfg.Hasher == nil {
		cfg.Hasher = ring.CRC32
	}

	s := &Selector[H]{cfg: cfg}
	s.current.Store(&snapshot[H]{
		ring:  ring.New(cfg.ReplicaCount, cfg.Hasher),
		nodes: make(map[string]H),
	})
	return s
}

// AddNode registers handle under id and rebuilds the ring. Registering an
// existing id replaces its handle.
func (s *Selector[H]) AddNode(id string, handle H) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	nodes := make(map[string]H, len(prev.nodes)+1)
	for k, v := range prev.nodes {
		nodes[k] = v
	}
	nodes[id] = handle

	s.current.Store(s.build(nodes))
}

// RemoveNode deregisters id and rebuilds the ring from the survivors.
// It reports whether id was registered; unknown ids are a no-op.
func (s *Selector[H]) RemoveNode(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.current.Load()
	if _, ok := prev.nodes[id]; !ok {
		return false
	}

	nodes := make(map[string]H, len(prev.nodes))
	for k, v := range prev.nodes {
		if k != id {
			nodes[k] = v
		}
	}

	s.current.Store(s.build(nodes))
	return true
}

// build creates a snapshot. Survivors are placed in sorted order so the
// ring does not depend on map iteration order.
func (s *Selector[H]) build(nodes map[string]H) *snapshot[H] {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	return &snapshot[H]{
		ring:  ring.Build(s.cfg.ReplicaCount, s.cfg.Hasher, ids),
		nodes: nodes,
		ids:   ids,
	}
}

// Get returns the handle registered under id.
func (s *Selector[H]) Get(id string) (H, bool) {
	h, ok := s.current.Load().nodes[id]
	return h, ok
}

// Has reports whether id is registered.
func (s *Selector[H]) Has(id string) bool {
	_, ok := s.current.Load().nodes[id]
	return ok
}

// Len returns the number of registered nodes.
func (s *Selector[H]) Len() int {
	return len(s.current.Load().nodes)
}

// Resolve returns the handles addressed by key. An empty key addresses
// every registered node (broadcast); otherwise the single ring owner is
// returned, or nothing when the ring is empty.
func (s *Selector[H]) Resolve(key string) []H {
	snap := s.current.Load()
	ids := snap.resolve(key)

	out := make([]H, 0, len(ids))
	for _, id := range ids {
		out = append(out, snap.nodes[id])
	}
	return out
}

// ResolveIDs is Resolve returning node identifiers.
func (s *Selector[H]) ResolveIDs(key string) []string {
	return s.current.Load().resolve(key)
}

func (snap *snapshot[H]) resolve(key string) []string {
	if key == "" {
		out := make([]string, len(snap.ids))
		copy(out, snap.ids)
		return out
	}

	id, ok := snap.ring.Lookup(key)
	if !ok {
		return nil
	}
	return []string{id}
}

// IDs returns the registered node identifiers, sorted.
func (s *Selector[H]) IDs() []string {
	snap := s.current.Load()
	out := make([]string, len(snap.ids))
	copy(out, snap.ids)
	return out
}

// Ring returns the ring of the current snapshot. Callers must treat it as
// read-only.
func (s *Selector[H]) Ring() *ring.Ring {
	return s.current.Load().ring
}
