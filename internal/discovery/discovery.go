// Package discovery lets nodes find the master through gossip.
//
// The master joins (or starts) a memberlist cluster advertising its
// cluster address in node metadata. A node joins the same gossip cluster
// and reads the address back, so only the seed list has to be configured.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/memberlist"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/telemetry/logger"
	"github.com/yndnr/shardmesh-go/pkg/idgen"
)

// Roles advertised in gossip metadata.
const (
	RoleMaster = "master"
	RoleNode   = "node"
)

// DefaultPollInterval is how often WaitMaster re-reads the member list.
const DefaultPollInterval = 200 * time.Millisecond

// Meta is the metadata each member advertises.
type Meta struct {
	Role string `json:"role"`
	// Addr is the cluster address ("host:port") of a master.
	Addr string `json:"addr,omitempty"`
}

// Member is one gossip member.
type Member struct {
	Name       string
	GossipAddr string
	Meta       Meta
}

// Config configures an Agent.
type Config struct {
	// Name must be unique in the gossip cluster. Empty picks a random one.
	Name string

	// BindAddr and BindPort are the gossip listen address. Port 0 picks
	// a free port.
	BindAddr string
	BindPort int

	// Seeds are gossip addresses to join. Empty starts a new cluster.
	Seeds []string

	// Meta is advertised to the other members.
	Meta Meta

	Logger *slog.Logger
}

// Agent is a gossip member.
type Agent struct {
	ml     *memberlist.Memberlist
	logger *slog.Logger

	mu       sync.RWMutex
	onJoin   func(Member)
	onLeave  func(Member)
	shutdown bool
}

// New creates the memberlist and joins the seeds.
func New(cfg Config) (*Agent, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "shardmesh-" + idgen.New()
	}
	if cfg.BindAddr == "" {
		cfg.BindAddr = "0.0.0.0"
	}

	meta, err := json.Marshal(cfg.Meta)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	a := &Agent{
		logger: cfg.Logger.With("component", "discovery", "member", cfg.Name),
	}

	mlConfig := memberlist.DefaultLANConfig()
	mlConfig.Name = cfg.Name
	mlConfig.BindAddr = cfg.BindAddr
	mlConfig.BindPort = cfg.BindPort
	mlConfig.Delegate = &metadataDelegate{meta: meta}
	mlConfig.Events = &eventDelegate{agent: a}
	mlConfig.LogOutput = nil
	mlConfig.Logger = logger.HCLog(a.logger).StandardLogger(&hclog.StandardLoggerOptions{
		InferLevels: true,
	})

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	a.ml = ml

	if len(cfg.Seeds) > 0 {
		n, err := ml.Join(cfg.Seeds)
		if err != nil {
			_ = ml.Shutdown()
			return nil, fmt.Errorf("join seeds: %w", err)
		}
		a.logger.Info("joined gossip cluster", "seeds", cfg.Seeds, "joined_count", n)
	} else {
		a.logger.Info("started gossip cluster (bootstrap mode)")
	}

	return a, nil
}

// LocalAddr returns the gossip address of this member.
func (a *Agent) LocalAddr() string {
	n := a.ml.LocalNode()
	return net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port)))
}

// Members returns the live members, this one included.
func (a *Agent) Members() []Member {
	nodes := a.ml.Members()
	out := make([]Member, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, toMember(n))
	}
	return out
}

// MasterAddr returns the cluster address advertised by a live master.
func (a *Agent) MasterAddr() (string, bool) {
	for _, m := range a.Members() {
		if m.Meta.Role == RoleMaster && m.Meta.Addr != "" {
			return m.Meta.Addr, true
		}
	}
	return "", false
}

// WaitMaster polls the member list until a master appears or ctx ends.
func (a *Agent) WaitMaster(ctx context.Context) (string, error) {
	if addr, ok := a.MasterAddr(); ok {
		return addr, nil
	}

	ticker := time.NewTicker(DefaultPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", domain.ErrNoMaster.Wrap(ctx.Err())
		case <-ticker.C:
			if addr, ok := a.MasterAddr(); ok {
				return addr, nil
			}
		}
	}
}

// OnJoin registers fn for members joining.
func (a *Agent) OnJoin(fn func(Member)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onJoin = fn
}

// OnLeave registers fn for members leaving or failing.
func (a *Agent) OnLeave(fn func(Member)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onLeave = fn
}

// Leave broadcasts our departure and waits up to timeout for it to
// propagate.
func (a *Agent) Leave(timeout time.Duration) error {
	if err := a.ml.Leave(timeout); err != nil {
		a.logger.Error("failed to leave gossip cluster", "error", err)
		return err
	}
	a.logger.Info("left gossip cluster")
	return nil
}

// Shutdown stops gossiping. It is idempotent.
func (a *Agent) Shutdown() error {
	a.mu.Lock()
	if a.shutdown {
		a.mu.Unlock()
		return nil
	}
	a.shutdown = true
	a.mu.Unlock()

	if err := a.ml.Shutdown(); err != nil {
		return fmt.Errorf("shutdown memberlist: %w", err)
	}
	a.logger.Info("discovery shutdown complete")
	return nil
}

func toMember(n *memberlist.Node) Member {
	m := Member{
		Name:       n.Name,
		GossipAddr: net.JoinHostPort(n.Addr.String(), strconv.Itoa(int(n.Port))),
	}
	// Members without valid metadata are listed with an empty role.
	_ = json.Unmarshal(n.Meta, &m.Meta)
	return m
}

// eventDelegate implements memberlist.EventDelegate.
type eventDelegate struct {
	agent *Agent
}

func (e *eventDelegate) NotifyJoin(n *memberlist.Node) {
	m := toMember(n)
	e.agent.logger.Info("member joined", "name", m.Name, "gossip_addr", m.GossipAddr, "role", m.Meta.Role)

	e.agent.mu.RLock()
	fn := e.agent.onJoin
	e.agent.mu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

func (e *eventDelegate) NotifyLeave(n *memberlist.Node) {
	m := toMember(n)
	e.agent.logger.Info("member left", "name", m.Name, "role", m.Meta.Role)

	e.agent.mu.RLock()
	fn := e.agent.onLeave
	e.agent.mu.RUnlock()
	if fn != nil {
		fn(m)
	}
}

func (e *eventDelegate) NotifyUpdate(n *memberlist.Node) {
	e.agent.logger.Debug("member updated", "name", n.Name)
}

// metadataDelegate serves our metadata to memberlist.
type metadataDelegate struct {
	meta []byte
}

// NodeMeta returns the encoded metadata. memberlist caps it at limit
// bytes (512); truncated JSON would be unreadable, so it is dropped.
func (d *metadataDelegate) NodeMeta(limit int) []byte {
	if len(d.meta) > limit {
		return nil
	}
	return d.meta
}

func (d *metadataDelegate) NotifyMsg([]byte)                           {}
func (d *metadataDelegate) GetBroadcasts(overhead, limit int) [][]byte { return nil }
func (d *metadataDelegate) LocalState(join bool) []byte                { return nil }
func (d *metadataDelegate) MergeRemoteState(buf []byte, join bool)     {}
