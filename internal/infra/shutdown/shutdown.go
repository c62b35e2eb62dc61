package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler runs named shutdown hooks, last registered first, once a signal,
// Trigger or context cancellation arrives. All hooks share one deadline.
type Handler struct {
	timeout time.Duration
	logger  *slog.Logger

	mu     sync.Mutex
	hooks  []hook
	reason string

	trigger     chan struct{}
	triggerOnce sync.Once
	runOnce     sync.Once
	runErr      error
	done        chan struct{}
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for shutdown progress.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = l
	}
}

// NewHandler creates a handler whose hooks must finish within timeout.
func NewHandler(timeout time.Duration, opts ...Option) *Handler {
	h := &Handler{
		timeout: timeout,
		logger:  slog.Default(),
		trigger: make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OnShutdown registers fn under name. Hooks run in reverse order of
// registration so later components stop before what they depend on.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
	h.mu.Unlock()
}

// Trigger starts the shutdown as if a signal had arrived.
func (h *Handler) Trigger() {
	h.triggerOnce.Do(func() { close(h.trigger) })
}

// Wait blocks until SIGINT, SIGTERM or Trigger, then runs the hooks.
func (h *Handler) Wait() error {
	return h.WaitContext(context.Background())
}

// WaitContext is Wait that also shuts down when ctx ends. The hooks run
// once; later calls return the first result.
func (h *Handler) WaitContext(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var reason string
	select {
	case sig := <-sigCh:
		reason = "signal " + sig.String()
	case <-h.trigger:
		reason = "triggered"
	case <-ctx.Done():
		reason = "context " + ctx.Err().Error()
	case <-h.done:
		return h.runErr
	}

	h.runOnce.Do(func() { h.run(reason) })
	return h.runErr
}

// Reason reports what started the shutdown, or "" before it starts.
func (h *Handler) Reason() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}

// Done returns a channel that closes when every hook has returned.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}

func (h *Handler) run(reason string) {
	h.mu.Lock()
	h.reason = reason
	hooks := append([]hook(nil), h.hooks...)
	h.mu.Unlock()

	h.logger.Info("shutting down", "reason", reason, "hooks", len(hooks), "timeout", h.timeout)

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		hk := hooks[i]
		start := time.Now()
		err := hk.fn(ctx)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", hk.name, err))
			h.logger.Error("shutdown step failed", "step", hk.name, "error", err, "elapsed", time.Since(start))
			continue
		}
		h.logger.Debug("shutdown step done", "step", hk.name, "elapsed", time.Since(start))
	}

	h.runErr = errors.Join(errs...)
	close(h.done)
}
