package nodeclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/handshake"
	"github.com/yndnr/shardmesh-go/internal/wire"
	"github.com/yndnr/shardmesh-go/pkg/idgen"
)

// Defaults.
const (
	DefaultHost        = "127.0.0.1"
	DefaultPort        = 5134
	DefaultDialTimeout = 5 * time.Second
)

// Handler handles one named message from the master.
type Handler interface {
	ServeMessage(ctx context.Context, req *Request)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req *Request)

// ServeMessage calls f(ctx, req).
func (f HandlerFunc) ServeMessage(ctx context.Context, req *Request) {
	f(ctx, req)
}

// Request is an inbound application message.
type Request struct {
	ID      string
	Name    string
	Content any

	client *Client
}

// Reply answers the request. The master only records the first reply per
// node; replying to a plain Send is ignored by the master.
func (r *Request) Reply(payload any) error {
	return r.client.write(wire.NewReply(r.ID, payload))
}

// Config holds the client configuration.
type Config struct {
	// Host and Port address the master.
	Host string
	Port int

	// Resolve, when set, returns the master address ("host:port") and
	// overrides Host and Port.
	Resolve func(ctx context.Context) (string, error)

	// Name and Auth are announced in our handshake welcome.
	Name string
	Auth any

	// Verify judges the master's welcome (default: accept all).
	Verify handshake.Verifier

	DialTimeout  time.Duration
	MaxFrameSize int

	// TLSConfig enables TLS when set.
	TLSConfig *tls.Config

	// Handlers are registered as if by On before Connect.
	Handlers map[string]Handler

	Logger *slog.Logger
}

// Client is a cluster node connection.
type Client struct {
	cfg    Config
	logger *slog.Logger
	ids    *idgen.Generator

	handlersMu sync.RWMutex
	handlers   map[string]Handler

	mu     sync.Mutex
	conn   net.Conn
	writer *wire.Writer
	auth   *handshake.Authenticator
	done   chan struct{}
	err    error
	cancel context.CancelFunc
}

// New creates a client. It does not dial until Connect.
func New(cfg Config) *Client {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.MaxFrameSize <= 0 {
		cfg.MaxFrameSize = wire.DefaultMaxFrameSize
	}
	if cfg.Verify == nil {
		cfg.Verify = handshake.AcceptAll
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	c := &Client{
		cfg:      cfg,
		logger:   cfg.Logger.With("component", "node", "name", cfg.Name),
		ids:      idgen.NewGenerator(nil),
		handlers: make(map[string]Handler, len(cfg.Handlers)),
	}
	for name, h := range cfg.Handlers {
		c.handlers[name] = h
	}
	return c
}

// On registers h for messages named name, replacing any previous handler.
func (c *Client) On(name string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[name] = h
}

// OnFunc registers a handler function.
func (c *Client) OnFunc(name string, fn func(ctx context.Context, req *Request)) {
	c.On(name, HandlerFunc(fn))
}

func (c *Client) handler(name string) (Handler, bool) {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	h, ok := c.handlers[name]
	return h, ok
}

func (c *Client) address(ctx context.Context) (string, error) {
	if c.cfg.Resolve != nil {
		addr, err := c.cfg.Resolve(ctx)
		if err != nil {
			return "", fmt.Errorf("resolve master: %w", err)
		}
		return addr, nil
	}
	return net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port)), nil
}

// Connect dials the master and blocks until the handshake concludes. It
// returns nil once both sides accepted each other, a handshake error
// (domain.ErrAuthLocal, ErrAuthRemote, ErrAuthBoth), a transport error, or
// domain.ErrConnectionClosed if the master hung up first. Handlers run
// with a context that ends when the connection does.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return domain.ErrAlreadyConnected
	}
	c.mu.Unlock()

	addr, err := c.address(ctx)
	if err != nil {
		return err
	}

	conn, err := c.dial(ctx, addr)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ready := make(chan error, 1)

	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		cancel()
		_ = conn.Close()
		return domain.ErrAlreadyConnected
	}
	c.conn = conn
	c.writer = wire.NewWriter(conn)
	c.done = make(chan struct{})
	c.err = nil
	c.cancel = cancel
	c.auth = handshake.New(handshake.Config{
		Name:       c.cfg.Name,
		Auth:       c.cfg.Auth,
		Verify:     c.cfg.Verify,
		RemoteAddr: conn.RemoteAddr().String(),
		PeerCertificates: func() []*x509.Certificate {
			if tc, ok := conn.(*tls.Conn); ok {
				return tc.ConnectionState().PeerCertificates
			}
			return nil
		},
	}, c.writer.WriteMessage)
	auth, done := c.auth, c.done
	c.mu.Unlock()

	if err := auth.Start(); err != nil {
		c.finish(conn, err)
		close(done)
		return err
	}

	go c.readLoop(runCtx, conn, auth, done, ready)

	select {
	case err := <-ready:
		return err
	case <-ctx.Done():
		c.finish(conn, ctx.Err())
		return ctx.Err()
	}
}

func (c *Client) dial(ctx context.Context, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.cfg.DialTimeout}
	if c.cfg.TLSConfig != nil {
		td := &tls.Dialer{NetDialer: dialer, Config: c.cfg.TLSConfig}
		return td.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

func (c *Client) readLoop(ctx context.Context, conn net.Conn, auth *handshake.Authenticator, done chan struct{}, ready chan<- error) {
	var once sync.Once
	signal := func(err error) {
		once.Do(func() { ready <- err })
	}

	reason := c.serve(ctx, conn, auth, signal)

	c.finish(conn, reason)
	signal(reason)
	close(done)
}

// serve reads until the connection ends and returns the reason.
func (c *Client) serve(ctx context.Context, conn net.Conn, auth *handshake.Authenticator, signal func(error)) error {
	reader := wire.NewReader(conn, c.cfg.MaxFrameSize)

	for {
		msg, err := reader.ReadMessage()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				return domain.ErrConnectionClosed
			}
			if errors.Is(err, domain.ErrMalformedFrame) {
				c.logger.Warn("malformed frame from master", "error", err)
			}
			return err
		}

		if auth.Authenticated() {
			c.dispatch(ctx, msg)
			continue
		}

		st, err := auth.Process(msg)
		switch st {
		case handshake.StateAuthenticated:
			c.logger.Info("connected to master",
				"master", auth.PeerName(),
				"address", conn.RemoteAddr().String(),
			)
			signal(nil)
		case handshake.StateRejected:
			c.logger.Warn("handshake rejected", "auth_side", auth.RejectedSide().String())
			return err
		default:
			if err != nil {
				return err
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, msg *wire.Message) {
	h, ok := c.handler(msg.Name)
	if !ok {
		c.logger.Debug("unhandled message", "name", msg.Name, "correlation_id", msg.ID)
		return
	}
	h.ServeMessage(ctx, &Request{
		ID:      msg.ID,
		Name:    msg.Name,
		Content: msg.Content,
		client:  c,
	})
}

// finish tears down conn once and records why.
func (c *Client) finish(conn net.Conn, reason error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.writer = nil
	c.err = reason
	cancel := c.cancel
	c.mu.Unlock()

	cancel()
	_ = conn.Close()
	c.logger.Debug("disconnected", "reason", reason)
}

func (c *Client) write(msg *wire.Message) error {
	c.mu.Lock()
	w, auth := c.writer, c.auth
	c.mu.Unlock()

	if w == nil {
		return domain.ErrNotConnected
	}
	if !auth.Authenticated() {
		return domain.ErrNotAuthenticated
	}
	return w.WriteMessage(msg)
}

// Emit sends a named message to the master and returns its ID.
func (c *Client) Emit(name string, content any) (string, error) {
	id := c.ids.MustNew()
	if err := c.write(wire.NewApplication(id, name, content)); err != nil {
		return "", err
	}
	return id, nil
}

// Connected reports whether the handshake completed on a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && c.auth.Authenticated()
}

// Done is closed when the current connection ends. It returns nil before
// the first Connect.
func (c *Client) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Err returns why the last connection ended.
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Disconnect closes the connection. It is idempotent.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	c.finish(conn, nil)
	return nil
}
