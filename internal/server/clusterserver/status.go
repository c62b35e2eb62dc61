package clusterserver

import (
	"encoding/json"
	"sort"
	"time"
)

// NodeInfo describes a connected node.
type NodeInfo struct {
	ID            string
	Name          string
	RemoteAddress string
	UpSince       time.Time
	UpTime        time.Duration
}

type nodeInfoJSON struct {
	Name          string    `json:"name"`
	UpTime        int64     `json:"upTime"`
	UpSince       time.Time `json:"upSince"`
	RemoteAddress string    `json:"remoteAddress"`
	ID            string    `json:"id"`
}

// MarshalJSON renders durations in milliseconds.
func (n NodeInfo) MarshalJSON() ([]byte, error) {
	return json.Marshal(nodeInfoJSON{
		Name:          n.Name,
		UpTime:        n.UpTime.Milliseconds(),
		UpSince:       n.UpSince,
		RemoteAddress: n.RemoteAddress,
		ID:            n.ID,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (n *NodeInfo) UnmarshalJSON(b []byte) error {
	var v nodeInfoJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = NodeInfo{
		ID:            v.ID,
		Name:          v.Name,
		RemoteAddress: v.RemoteAddress,
		UpSince:       v.UpSince,
		UpTime:        time.Duration(v.UpTime) * time.Millisecond,
	}
	return nil
}

// Status is a snapshot of the master. UpTime is zero and Running false
// when the master is stopped.
type Status struct {
	Running bool
	UpTime  time.Duration
	Nodes   []NodeInfo
}

type statusJSON struct {
	UpTime *int64     `json:"upTime"`
	Nodes  []NodeInfo `json:"nodes"`
}

// MarshalJSON renders {upTime, nodes} with upTime in milliseconds, null
// when stopped.
func (s Status) MarshalJSON() ([]byte, error) {
	v := statusJSON{Nodes: s.Nodes}
	if v.Nodes == nil {
		v.Nodes = []NodeInfo{}
	}
	if s.Running {
		ms := s.UpTime.Milliseconds()
		v.UpTime = &ms
	}
	return json.Marshal(v)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *Status) UnmarshalJSON(b []byte) error {
	var v statusJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Status{Nodes: v.Nodes}
	if v.UpTime != nil {
		s.Running = true
		s.UpTime = time.Duration(*v.UpTime) * time.Millisecond
	}
	return nil
}

// Status returns the authenticated nodes and the master uptime.
func (m *Master) Status() Status {
	st := Status{Nodes: m.nodes()}

	m.mu.Lock()
	if m.running {
		st.Running = true
		st.UpTime = time.Since(m.upSince)
	}
	m.mu.Unlock()

	return st
}

func (m *Master) nodes() []NodeInfo {
	ids := m.selector.IDs()
	out := make([]NodeInfo, 0, len(ids))
	for _, id := range ids {
		if c, ok := m.selector.Get(id); ok {
			out = append(out, c.info())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpSince.Before(out[j].UpSince)
	})
	return out
}

// Node returns one authenticated node.
func (m *Master) Node(id string) (NodeInfo, bool) {
	c, ok := m.selector.Get(id)
	if !ok {
		return NodeInfo{}, false
	}
	return c.info(), true
}

// Uptime returns the time since Start, zero when stopped.
func (m *Master) Uptime() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return 0
	}
	return time.Since(m.upSince)
}

// NodeCount returns the number of authenticated nodes.
func (m *Master) NodeCount() int {
	return m.selector.Len()
}

// ConnectionCount returns the number of open connections, including
// those still in the handshake.
func (m *Master) ConnectionCount() int {
	return m.conns.Count()
}

// RingPoints returns the number of virtual points on the ring.
func (m *Master) RingPoints() int {
	return m.selector.Ring().Len()
}

// PendingRequests returns the number of requests awaiting replies.
func (m *Master) PendingRequests() int {
	return m.pending.Len()
}

// ResolveNode returns the ID of the node owning shardKey.
func (m *Master) ResolveNode(shardKey string) (string, bool) {
	ids := m.selector.ResolveIDs(shardKey)
	if shardKey == "" || len(ids) != 1 {
		return "", false
	}
	return ids[0], true
}
