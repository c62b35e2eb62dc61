// Package handshake implements the mutual welcome/verdict authentication
// that gates a cluster connection.
//
// Each side sends a welcome {isWelcome, name, auth} as soon as the stream
// is up. On receiving the peer's welcome a side runs its Verifier and
// answers with a verdict {isWelcome, authenticated}. The connection is live
// once both verdicts are known and both are true; any false verdict
// rejects it.
package handshake

import (
	"crypto/x509"
	"sync"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/wire"
)

// State is the handshake progress of one connection.
type State int

const (
	StateAwaiting State = iota
	StateAuthenticated
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateAwaiting:
		return "awaiting"
	case StateAuthenticated:
		return "authenticated"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Side names which verdict rejected a connection.
type Side int

const (
	SideNone Side = iota
	SideLocal
	SideRemote
	SideBoth
)

func (s Side) String() string {
	switch s {
	case SideLocal:
		return "local"
	case SideRemote:
		return "remote"
	case SideBoth:
		return "both"
	default:
		return "none"
	}
}

// Err returns the error reported for a rejection on this side.
func (s Side) Err() error {
	switch s {
	case SideLocal:
		return domain.ErrAuthLocal
	case SideRemote:
		return domain.ErrAuthRemote
	case SideBoth:
		return domain.ErrAuthBoth
	default:
		return nil
	}
}

// PeerInfo describes the peer being verified.
type PeerInfo struct {
	Name             string
	Auth             any
	RemoteAddr       string
	PeerCertificates []*x509.Certificate
}

// Verifier decides whether a peer is accepted.
type Verifier func(PeerInfo) bool

// AcceptAll is the default Verifier.
func AcceptAll(PeerInfo) bool { return true }

// Config configures an Authenticator.
type Config struct {
	// Name is the identity announced in our welcome.
	Name string

	// Auth is the opaque payload offered in our welcome.
	Auth any

	// Verify judges the peer's welcome (default AcceptAll).
	Verify Verifier

	// RemoteAddr and PeerCertificates are copied into PeerInfo.
	RemoteAddr       string
	PeerCertificates func() []*x509.Certificate
}

// Sender writes one message to the peer.
type Sender func(*wire.Message) error

// Authenticator runs the handshake for one connection. Process is called
// from the connection's reader; state accessors may be called from any
// goroutine.
type Authenticator struct {
	cfg  Config
	send Sender

	mu       sync.Mutex
	local    *bool
	remote   *bool
	state    State
	side     Side
	peerName string
}

// New creates an Authenticator that writes through send.
func New(cfg Config, send Sender) *Authenticator {
	if cfg.Verify == nil {
		cfg.Verify = AcceptAll
	}
	return &Authenticator{cfg: cfg, send: send}
}

// Start sends our welcome.
func (a *Authenticator) Start() error {
	return a.send(wire.NewWelcome(a.cfg.Name, a.cfg.Auth))
}

// Process handles one inbound handshake message and returns the resulting
// state. When the handshake concludes with a rejection the returned error
// is one of domain.ErrAuthLocal, domain.ErrAuthRemote or domain.ErrAuthBoth;
// the caller is expected to close the connection. Messages arriving after
// the handshake concluded are ignored.
func (a *Authenticator) Process(msg *wire.Message) (State, error) {
	a.mu.Lock()
	if a.state != StateAwaiting {
		st := a.state
		a.mu.Unlock()
		return st, nil
	}

	if msg.IsVerdict() {
		if a.remote == nil {
			v := msg.Accepted()
			a.remote = &v
		}
		st, err := a.conclude()
		a.mu.Unlock()
		return st, err
	}

	if a.local != nil {
		a.mu.Unlock()
		return StateAwaiting, nil
	}

	info := PeerInfo{
		Name:       msg.Name,
		Auth:       msg.Auth,
		RemoteAddr: a.cfg.RemoteAddr,
	}
	if a.cfg.PeerCertificates != nil {
		info.PeerCertificates = a.cfg.PeerCertificates()
	}
	a.peerName = msg.Name
	accepted := a.cfg.Verify(info)
	a.local = &accepted
	a.mu.Unlock()

	if err := a.send(wire.NewVerdict(accepted)); err != nil {
		return StateAwaiting, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conclude()
}

// conclude settles the state once both verdicts are known. a.mu is held.
func (a *Authenticator) conclude() (State, error) {
	if a.state != StateAwaiting {
		return a.state, nil
	}
	if a.local == nil || a.remote == nil {
		return StateAwaiting, nil
	}

	switch local, remote := *a.local, *a.remote; {
	case local && remote:
		a.state = StateAuthenticated
		return a.state, nil
	case !local && remote:
		a.side = SideLocal
	case local && !remote:
		a.side = SideRemote
	default:
		a.side = SideBoth
	}
	a.state = StateRejected
	return a.state, a.side.Err()
}

// State returns the current handshake state.
func (a *Authenticator) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Authenticated reports whether both sides accepted each other.
func (a *Authenticator) Authenticated() bool {
	return a.State() == StateAuthenticated
}

// RejectedSide returns the failing side of a rejected handshake.
func (a *Authenticator) RejectedSide() Side {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.side
}

// PeerName returns the name the peer announced in its welcome.
func (a *Authenticator) PeerName() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.peerName
}
