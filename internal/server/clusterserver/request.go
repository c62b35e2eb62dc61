package clusterserver

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/telemetry/metric"
	"github.com/yndnr/shardmesh-go/internal/wire"
)

// Reply is one node's answer to a request. ResponseTime is the delay
// between sending the request and receiving this reply.
type Reply struct {
	Node         NodeInfo
	Reply        any
	ReceivedAt   time.Time
	ResponseTime time.Duration
}

type replyJSON struct {
	Node         NodeInfo  `json:"node"`
	Reply        any       `json:"reply"`
	ReceivedAt   time.Time `json:"receivedAt"`
	ResponseTime int64     `json:"responseTime"`
}

// MarshalJSON renders ResponseTime in milliseconds.
func (r Reply) MarshalJSON() ([]byte, error) {
	return json.Marshal(replyJSON{
		Node:         r.Node,
		Reply:        r.Reply,
		ReceivedAt:   r.ReceivedAt,
		ResponseTime: r.ResponseTime.Milliseconds(),
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Reply) UnmarshalJSON(b []byte) error {
	var v replyJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Reply{
		Node:         v.Node,
		Reply:        v.Reply,
		ReceivedAt:   v.ReceivedAt,
		ResponseTime: time.Duration(v.ResponseTime) * time.Millisecond,
	}
	return nil
}

// Response aggregates the replies collected for a request.
type Response struct {
	ID           string
	ResponseTime time.Duration
	Replies      []Reply
}

type responseJSON struct {
	ID           string  `json:"id"`
	ResponseTime int64   `json:"responseTime"`
	Replies      []Reply `json:"replies"`
}

// MarshalJSON renders ResponseTime in milliseconds.
func (r Response) MarshalJSON() ([]byte, error) {
	replies := r.Replies
	if replies == nil {
		replies = []Reply{}
	}
	return json.Marshal(responseJSON{
		ID:           r.ID,
		ResponseTime: r.ResponseTime.Milliseconds(),
		Replies:      replies,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Response) UnmarshalJSON(b []byte) error {
	var v responseJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*r = Response{
		ID:           v.ID,
		ResponseTime: time.Duration(v.ResponseTime) * time.Millisecond,
		Replies:      v.Replies,
	}
	return nil
}

// Call is the pending result of a Request. It completes exactly once.
type Call struct {
	// ID is the correlation ID written on the wire.
	ID string
	// Sent is when the request was written.
	Sent time.Time

	done     chan struct{}
	once     sync.Once
	resp     *Response
	err      error
	callback func(*Response, error)
}

func newCall(id string, sent time.Time, cb func(*Response, error)) *Call {
	return &Call{ID: id, Sent: sent, done: make(chan struct{}), callback: cb}
}

func (c *Call) complete(resp *Response, err error) {
	c.once.Do(func() {
		c.resp, c.err = resp, err
		close(c.done)
		if c.callback != nil {
			c.callback(resp, err)
		}
	})
}

// Done is closed when the call completes.
func (c *Call) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the call completes or ctx ends. On a deadline the
// error is domain.ErrRequestTimeout and the response holds the partial
// replies.
func (c *Call) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a completed call. Before completion it
// returns (nil, nil).
func (c *Call) Result() (*Response, error) {
	select {
	case <-c.done:
		return c.resp, c.err
	default:
		return nil, nil
	}
}

type requestOptions struct {
	timeout  time.Duration
	callback func(*Response, error)
}

// RequestOption customizes a single Request.
type RequestOption func(*requestOptions)

// WithTimeout overrides the configured request deadline. NoTimeout
// disables it.
func WithTimeout(d time.Duration) RequestOption {
	return func(o *requestOptions) {
		o.timeout = d
	}
}

// WithCallback registers fn to run once when the call completes. It runs
// on the goroutine that completes the call and must not block.
func WithCallback(fn func(*Response, error)) RequestOption {
	return func(o *requestOptions) {
		o.callback = fn
	}
}

// Send writes a named message to the nodes addressed by shardKey (all
// nodes when empty) and returns its correlation ID. Nodes that are not
// authenticated are skipped.
func (m *Master) Send(shardKey, name string, content any) (string, error) {
	id, _, err := m.send(shardKey, name, content, nil)
	return id, err
}

// Request sends like Send and collects a reply from every addressed node.
func (m *Master) Request(shardKey, name string, content any, opts ...RequestOption) (*Call, error) {
	o := requestOptions{timeout: m.cfg.RequestTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	var call *Call
	_, _, err := m.send(shardKey, name, content, func(id string, targets []*nodeConn) {
		call = newCall(id, time.Now(), o.callback)
		m.pending.add(call, targets, o.timeout)
	})
	if err != nil {
		return nil, err
	}

	m.cfg.Metrics.MessagesSent.WithLabelValues("request").Inc()
	return call, nil
}

// send resolves targets and writes the frame. register, when set, runs
// before any write so fast replies always find their pending request.
func (m *Master) send(shardKey, name string, content any, register func(string, []*nodeConn)) (string, int, error) {
	if !m.Running() {
		return "", 0, domain.ErrNotStarted
	}
	if m.selector.Len() == 0 {
		return "", 0, domain.ErrNoNodes
	}

	id := m.ids.MustNew()
	frame, err := wire.Encode(wire.NewApplication(id, name, content))
	if err != nil {
		return "", 0, domain.ErrBadRequest.Wrap(err)
	}

	targets := make([]*nodeConn, 0)
	for _, c := range m.selector.Resolve(shardKey) {
		if c.auth.Authenticated() {
			targets = append(targets, c)
		}
	}

	if register != nil {
		register(id, targets)
	}

	delivered := 0
	for _, c := range targets {
		if err := c.writeFrame(frame); err != nil {
			c.logger.Warn("write failed", "correlation_id", id, "error", err)
			_ = c.Close()
			continue
		}
		delivered++
	}

	if register == nil {
		m.cfg.Metrics.MessagesSent.WithLabelValues("send").Inc()
	}
	m.logger.Debug("message sent",
		"correlation_id", id,
		"name", name,
		"shard_key", shardKey,
		"targets", len(targets),
		"delivered", delivered,
	)
	return id, delivered, nil
}

// SendCount is Send that also reports how many nodes the frame was
// written to.
func (m *Master) SendCount(shardKey, name string, content any) (string, int, error) {
	return m.send(shardKey, name, content, nil)
}

type replySlot struct {
	received bool
	at       time.Time
	node     NodeInfo
	reply    any
}

type pendingRequest struct {
	call      *Call
	slots     map[string]*replySlot
	order     []string
	remaining int
	timer     *time.Timer
}

// pendingTable is the correlation table. Completion and expiry both
// remove the entry under mu, so each call completes once.
type pendingTable struct {
	mu      sync.Mutex
	m       map[string]*pendingRequest
	metrics *metric.Registry
}

func newPendingTable(metrics *metric.Registry) *pendingTable {
	return &pendingTable{m: make(map[string]*pendingRequest), metrics: metrics}
}

func (t *pendingTable) add(call *Call, targets []*nodeConn, timeout time.Duration) {
	p := &pendingRequest{
		call:      call,
		slots:     make(map[string]*replySlot, len(targets)),
		remaining: len(targets),
	}
	for _, c := range targets {
		p.slots[c.id] = &replySlot{}
		p.order = append(p.order, c.id)
	}
	sort.Strings(p.order)

	if p.remaining == 0 {
		t.finish(p, "complete", nil)
		return
	}

	t.mu.Lock()
	t.m[call.ID] = p
	if timeout > 0 {
		p.timer = time.AfterFunc(timeout, func() { t.expire(call.ID) })
	}
	t.mu.Unlock()

	t.metrics.RequestsPending.Inc()
}

// deliver records a reply. It reports whether id named a pending request
// that expected a reply from nodeID. The first reply from a node is kept;
// repeats while the request is pending are consumed and dropped.
func (t *pendingTable) deliver(id, nodeID string, node NodeInfo, reply any) bool {
	t.mu.Lock()
	p, ok := t.m[id]
	if !ok {
		t.mu.Unlock()
		return false
	}
	slot, ok := p.slots[nodeID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if slot.received {
		t.mu.Unlock()
		return true
	}

	slot.received = true
	slot.at = time.Now()
	slot.node = node
	slot.reply = reply
	p.remaining--

	if p.remaining > 0 {
		t.mu.Unlock()
		return true
	}

	delete(t.m, id)
	if p.timer != nil {
		p.timer.Stop()
	}
	t.mu.Unlock()

	t.metrics.RequestsPending.Dec()
	t.finish(p, "complete", nil)
	return true
}

func (t *pendingTable) expire(id string) {
	t.mu.Lock()
	p, ok := t.m[id]
	if ok {
		delete(t.m, id)
	}
	t.mu.Unlock()

	if !ok {
		return
	}
	t.metrics.RequestsPending.Dec()
	t.finish(p, "timeout", domain.ErrRequestTimeout)
}

// failAll completes every pending request with err.
func (t *pendingTable) failAll(err error) {
	t.mu.Lock()
	all := t.m
	t.m = make(map[string]*pendingRequest)
	for _, p := range all {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	t.mu.Unlock()

	for _, p := range all {
		t.metrics.RequestsPending.Dec()
		t.finish(p, "aborted", err)
	}
}

// Len returns the number of pending requests.
func (t *pendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// finish builds the response from the slots filled so far. Slots are
// only written under mu before the entry is removed, so reading them
// after removal is safe.
func (t *pendingTable) finish(p *pendingRequest, outcome string, err error) {
	now := time.Now()
	resp := &Response{
		ID:           p.call.ID,
		ResponseTime: now.Sub(p.call.Sent),
		Replies:      make([]Reply, 0, len(p.order)),
	}
	for _, nodeID := range p.order {
		s := p.slots[nodeID]
		if !s.received {
			continue
		}
		resp.Replies = append(resp.Replies, Reply{
			Node:         s.node,
			Reply:        s.reply,
			ReceivedAt:   s.at,
			ResponseTime: s.at.Sub(p.call.Sent),
		})
	}

	t.metrics.RequestsCompleted.WithLabelValues(outcome).Inc()
	t.metrics.RequestDuration.WithLabelValues(outcome).Observe(resp.ResponseTime.Seconds())
	p.call.complete(resp, err)
}
