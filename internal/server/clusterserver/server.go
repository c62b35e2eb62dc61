package clusterserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/core/ring"
	"github.com/yndnr/shardmesh-go/internal/core/selector"
	"github.com/yndnr/shardmesh-go/internal/handshake"
	"github.com/yndnr/shardmesh-go/internal/telemetry/metric"
	"github.com/yndnr/shardmesh-go/internal/wire"
	"github.com/yndnr/shardmesh-go/pkg/cmap"
	"github.com/yndnr/shardmesh-go/pkg/idgen"
)

// Defaults.
const (
	DefaultPort           = 5134
	DefaultHost           = "0.0.0.0"
	DefaultRequestTimeout = 5 * time.Second
	DefaultWriteTimeout   = 10 * time.Second

	// NoTimeout disables the request deadline.
	NoTimeout time.Duration = -1
)

// MessageHandler handles a named message sent by a node.
type MessageHandler func(ctx context.Context, msg *NodeMessage)

// NodeMessage is an application message received from a node.
type NodeMessage struct {
	Node    NodeInfo
	ID      string
	Name    string
	Content any
}

// Hooks observe connection lifecycle events. All hooks are optional and
// are called from the connection's goroutine.
type Hooks struct {
	OnConnect       func(NodeInfo)
	OnAuthenticated func(NodeInfo)
	OnAuthFailed    func(NodeInfo, error)
	OnDisconnect    func(NodeInfo, error)
}

// Config holds the master configuration.
type Config struct {
	// Host and Port form the listen address. Port 0 picks a free port.
	Host string
	Port int

	// Name and Auth are announced in our handshake welcome.
	Name string
	Auth any

	// Verify judges each node's welcome (default: accept all).
	Verify handshake.Verifier

	// RequestTimeout is the default Request deadline. Zero means
	// DefaultRequestTimeout, a negative value means no deadline.
	RequestTimeout time.Duration

	// ReplicaCount and Hasher configure the hash ring.
	ReplicaCount int
	Hasher       ring.Hasher

	// MaxFrameSize bounds a single inbound frame (default 16 MiB).
	MaxFrameSize int

	// MessageRateLimit caps inbound frames per second per authenticated
	// connection. Zero disables the limit.
	MessageRateLimit float64

	// WriteTimeout bounds a single frame write (default 10s).
	WriteTimeout time.Duration

	// KeepMalformed keeps a connection open after a malformed frame.
	// By default the connection is closed.
	KeepMalformed bool

	// TLSConfig enables TLS on the listener when set.
	TLSConfig *tls.Config

	// Handlers are registered as if by On before Start.
	Handlers map[string]MessageHandler

	Hooks   Hooks
	Metrics *metric.Registry
	Logger  *slog.Logger
}

func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.ReplicaCount <= 0 {
		c.ReplicaCount = ring.DefaultReplicaCount
	}
	if c.Hasher == nil {
		c.Hasher = ring.CRC32
	}
	if c.MaxFrameSize <= 0 {
		c.MaxFrameSize = wire.DefaultMaxFrameSize
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.Verify == nil {
		c.Verify = handshake.AcceptAll
	}
	if c.Metrics == nil {
		c.Metrics = metric.NewRegistry()
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Master is the cluster master.
type Master struct {
	cfg    Config
	logger *slog.Logger
	ids    *idgen.Generator

	// mu guards the lifecycle fields below.
	mu      sync.Mutex
	running bool
	ln      net.Listener
	upSince time.Time
	ctx     context.Context
	cancel  context.CancelFunc

	conns    *cmap.Map[string, *nodeConn]
	selector *selector.Selector[*nodeConn]
	pending  *pendingTable

	handlersMu sync.RWMutex
	handlers   map[string]MessageHandler

	wg sync.WaitGroup
}

// New creates a master. It does not listen until Start.
func New(cfg Config) *Master {
	cfg.applyDefaults()

	m := &Master{
		cfg:    cfg,
		logger: cfg.Logger.With("component", "master"),
		ids:    idgen.NewGenerator(nil),
		conns:  cmap.New[string, *nodeConn](),
		selector: selector.New[*nodeConn](selector.Config{
			ReplicaCount: cfg.ReplicaCount,
			Hasher:       cfg.Hasher,
		}),
		handlers: make(map[string]MessageHandler, len(cfg.Handlers)),
	}
	m.pending = newPendingTable(cfg.Metrics)

	for name, h := range cfg.Handlers {
		m.handlers[name] = h
	}
	return m
}

// On registers h for named messages sent by nodes. Messages that do not
// complete a pending request are dispatched here.
func (m *Master) On(name string, h MessageHandler) {
	m.handlersMu.Lock()
	defer m.handlersMu.Unlock()
	m.handlers[name] = h
}

func (m *Master) handler(name string) (MessageHandler, bool) {
	m.handlersMu.RLock()
	defer m.handlersMu.RUnlock()
	h, ok := m.handlers[name]
	return h, ok
}

// Start binds the listener and begins accepting nodes. Cancelling ctx
// stops the master.
func (m *Master) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return domain.ErrAlreadyStarted
	}

	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))

	var (
		ln  net.Listener
		err error
	)
	if m.cfg.TLSConfig != nil {
		ln, err = tls.Listen("tcp", addr, m.cfg.TLSConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}

	m.ln = ln
	m.running = true
	m.upSince = time.Now()
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.logger.Info("master started",
		"address", ln.Addr().String(),
		"tls", m.cfg.TLSConfig != nil,
		"replica_count", m.cfg.ReplicaCount,
	)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		if err := m.acceptLoop(m.ctx, ln); err != nil {
			m.logger.Error("accept loop failed", "error", err)
		}
	}()

	runCtx := m.ctx
	go func() {
		<-runCtx.Done()
		m.mu.Lock()
		current := m.running && m.ctx == runCtx
		m.mu.Unlock()
		if current {
			_ = m.Stop()
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil when stopped.
func (m *Master) Addr() net.Addr {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ln == nil {
		return nil
	}
	return m.ln.Addr()
}

// Running reports whether the master is listening.
func (m *Master) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Stop closes every connection and the listener. It is idempotent.
func (m *Master) Stop() error {
	return m.Shutdown(context.Background())
}

// Shutdown is Stop bounded by ctx while waiting for connection
// goroutines to exit.
func (m *Master) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = false
	ln := m.ln
	m.ln = nil
	m.upSince = time.Time{}
	cancel := m.cancel
	m.mu.Unlock()

	cancel()

	var firstErr error
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		firstErr = err
	}

	m.conns.Range(func(_ string, c *nodeConn) bool {
		_ = c.Close()
		return true
	})

	m.pending.failAll(domain.ErrMasterStopped)

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	m.logger.Info("master stopped")
	return firstErr
}

func (m *Master) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || !m.Running() {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(5 * time.Millisecond)
				continue
			}
			return err
		}

		nc, connCtx := m.newNodeConn(ctx, c)

		// Shutdown clears running under mu before sweeping conns, so a
		// connection accepted during shutdown is swept or never registered.
		m.mu.Lock()
		if !m.running {
			m.mu.Unlock()
			_ = nc.Close()
			return nil
		}
		m.conns.Set(nc.id, nc)
		m.wg.Add(1)
		m.mu.Unlock()

		go func() {
			defer m.wg.Done()
			m.serveConn(connCtx, nc)
		}()
	}
}
