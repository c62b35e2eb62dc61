package clusterserver

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/handshake"
	"github.com/yndnr/shardmesh-go/internal/telemetry/logger"
	"github.com/yndnr/shardmesh-go/internal/wire"
)

// nodeConn is the master's state for one accepted connection.
type nodeConn struct {
	id         string
	netConn    net.Conn
	remoteAddr string
	upSince    time.Time

	reader  *wire.Reader
	auth    *handshake.Authenticator
	limiter *rate.Limiter
	logger  *slog.Logger

	writeTimeout time.Duration
	writeMu      sync.Mutex

	closed atomic.Bool
}

// newNodeConn allocates the connection state and returns the context its
// read loop and handlers run under, tagged with the connection's node ID.
func (m *Master) newNodeConn(ctx context.Context, c net.Conn) (*nodeConn, context.Context) {
	nc := &nodeConn{
		id:           m.ids.MustNew(),
		netConn:      c,
		remoteAddr:   c.RemoteAddr().String(),
		upSince:      time.Now(),
		reader:       wire.NewReader(c, m.cfg.MaxFrameSize),
		writeTimeout: m.cfg.WriteTimeout,
	}
	ctx = logger.WithNodeID(ctx, nc.id)
	ctx = logger.WithLogger(ctx, logger.FromSlog(m.logger).With("remote_addr", nc.remoteAddr))
	nc.logger = logger.L(ctx).Slog()

	if m.cfg.MessageRateLimit > 0 {
		burst := int(m.cfg.MessageRateLimit)
		if burst < 1 {
			burst = 1
		}
		nc.limiter = rate.NewLimiter(rate.Limit(m.cfg.MessageRateLimit), burst)
	}

	nc.auth = handshake.New(handshake.Config{
		Name:             m.cfg.Name,
		Auth:             m.cfg.Auth,
		Verify:           m.cfg.Verify,
		RemoteAddr:       nc.remoteAddr,
		PeerCertificates: nc.peerCertificates,
	}, nc.writeMessage)

	return nc, ctx
}

func (c *nodeConn) peerCertificates() []*x509.Certificate {
	if tc, ok := c.netConn.(*tls.Conn); ok {
		return tc.ConnectionState().PeerCertificates
	}
	return nil
}

// info snapshots the node's public description.
func (c *nodeConn) info() NodeInfo {
	return NodeInfo{
		ID:            c.id,
		Name:          c.auth.PeerName(),
		RemoteAddress: c.remoteAddr,
		UpSince:       c.upSince,
		UpTime:        time.Since(c.upSince),
	}
}

func (c *nodeConn) writeMessage(msg *wire.Message) error {
	frame, err := wire.Encode(msg)
	if err != nil {
		return err
	}
	return c.writeFrame(frame)
}

func (c *nodeConn) writeFrame(frame []byte) error {
	if c.closed.Load() {
		return domain.ErrConnectionClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.netConn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	_, err := c.netConn.Write(frame)
	return err
}

// Close closes the connection once.
func (c *nodeConn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.netConn.Close()
}

func (m *Master) serveConn(ctx context.Context, c *nodeConn) {
	m.cfg.Metrics.ConnectionsTotal.Inc()
	m.cfg.Metrics.ConnectionsActive.Inc()
	c.logger.Debug("node connected")
	if m.cfg.Hooks.OnConnect != nil {
		m.cfg.Hooks.OnConnect(c.info())
	}

	err := m.readLoop(ctx, c)
	m.dropConn(c, err)
}

// readLoop runs until the connection fails, is rejected, or is closed.
// It returns the reason, nil for an orderly close.
func (m *Master) readLoop(ctx context.Context, c *nodeConn) error {
	if tc, ok := c.netConn.(*tls.Conn); ok {
		if err := tc.HandshakeContext(ctx); err != nil {
			return err
		}
	}

	if err := c.auth.Start(); err != nil {
		return err
	}

	for {
		msg, err := c.reader.ReadMessage()
		if err != nil {
			switch {
			case errors.Is(err, domain.ErrMalformedFrame):
				m.cfg.Metrics.FramesDropped.WithLabelValues("malformed").Inc()
				c.logger.Warn("malformed frame", "error", err)
				if !m.cfg.KeepMalformed {
					return err
				}
				continue
			case errors.Is(err, domain.ErrFrameTooLarge):
				m.cfg.Metrics.FramesDropped.WithLabelValues("too_large").Inc()
				c.logger.Warn("frame too large", "error", err)
				return err
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed), c.closed.Load():
				return nil
			default:
				return err
			}
		}

		if !c.auth.Authenticated() {
			m.cfg.Metrics.MessagesReceived.WithLabelValues("handshake").Inc()
			st, err := c.auth.Process(msg)
			switch st {
			case handshake.StateAuthenticated:
				m.register(c)
			case handshake.StateRejected:
				side := c.auth.RejectedSide()
				m.cfg.Metrics.AuthFailures.WithLabelValues(side.String()).Inc()
				c.logger.Warn("node rejected", "auth_side", side.String(), "name", c.auth.PeerName())
				if m.cfg.Hooks.OnAuthFailed != nil {
					m.cfg.Hooks.OnAuthFailed(c.info(), err)
				}
				return err
			default:
				if err != nil {
					return err
				}
			}
			continue
		}

		if c.limiter != nil && !c.limiter.Allow() {
			m.cfg.Metrics.FramesDropped.WithLabelValues("rate_limited").Inc()
			c.logger.Debug("frame rate limited")
			continue
		}

		m.dispatch(ctx, c, msg)
	}
}

// register places an authenticated node on the ring.
func (m *Master) register(c *nodeConn) {
	m.selector.AddNode(c.id, c)
	info := c.info()
	c.logger.Info("node authenticated", "name", info.Name)
	if m.cfg.Hooks.OnAuthenticated != nil {
		m.cfg.Hooks.OnAuthenticated(info)
	}
}

// dispatch routes one post-handshake message: replies to a pending
// request first, everything else to the named handlers.
func (m *Master) dispatch(ctx context.Context, c *nodeConn, msg *wire.Message) {
	if msg.ID != "" && m.pending.deliver(msg.ID, c.id, c.info(), msg.Reply) {
		m.cfg.Metrics.MessagesReceived.WithLabelValues("reply").Inc()
		return
	}

	m.cfg.Metrics.MessagesReceived.WithLabelValues("application").Inc()

	h, ok := m.handler(msg.Name)
	if !ok {
		c.logger.Debug("unhandled message", "name", msg.Name, "correlation_id", msg.ID)
		return
	}
	h(ctx, &NodeMessage{
		Node:    c.info(),
		ID:      msg.ID,
		Name:    msg.Name,
		Content: msg.Content,
	})
}

// dropConn evicts a connection from the registry and the ring. Pending
// requests waiting on it are left to their deadline.
func (m *Master) dropConn(c *nodeConn, reason error) {
	_ = c.Close()
	m.conns.Delete(c.id)
	m.selector.RemoveNode(c.id)
	m.cfg.Metrics.ConnectionsActive.Dec()

	if reason != nil {
		c.logger.Info("node disconnected", "error", reason)
	} else {
		c.logger.Info("node disconnected")
	}
	if m.cfg.Hooks.OnDisconnect != nil {
		m.cfg.Hooks.OnDisconnect(c.info(), reason)
	}
}
