package handshake

import (
	"errors"
	"testing"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/wire"
)

// outbox records what an Authenticator sends.
type outbox struct {
	msgs []*wire.Message
}

func (o *outbox) send(m *wire.Message) error {
	o.msgs = append(o.msgs, m)
	return nil
}

func (o *outbox) drain() []*wire.Message {
	out := o.msgs
	o.msgs = nil
	return out
}

type result struct {
	state State
	err   error
}

// runPair drives two authenticators against each other until both settle.
func runPair(t *testing.T, a, b Config) (result, result) {
	t.Helper()

	var aOut, bOut outbox
	authA := New(a, aOut.send)
	authB := New(b, bOut.send)

	if err := authA.Start(); err != nil {
		t.Fatalf("A.Start() error = %v", err)
	}
	if err := authB.Start(); err != nil {
		t.Fatalf("B.Start() error = %v", err)
	}

	var ra, rb result
	for i := 0; i < 4; i++ {
		for _, m := range aOut.drain() {
			st, err := authB.Process(m)
			rb = result{st, err}
		}
		for _, m := range bOut.drain() {
			st, err := authA.Process(m)
			ra = result{st, err}
		}
	}
	return ra, rb
}

func TestHandshake_Outcomes(t *testing.T) {
	reject := func(PeerInfo) bool { return false }

	tests := []struct {
		name      string
		verifyA   Verifier
		verifyB   Verifier
		wantState State
		wantErrA  error
		wantErrB  error
	}{
		{
			name:      "both accept",
			wantState: StateAuthenticated,
		},
		{
			name:      "A rejects B",
			verifyA:   reject,
			wantState: StateRejected,
			wantErrA:  domain.ErrAuthLocal,
			wantErrB:  domain.ErrAuthRemote,
		},
		{
			name:      "B rejects A",
			verifyB:   reject,
			wantState: StateRejected,
			wantErrA:  domain.ErrAuthRemote,
			wantErrB:  domain.ErrAuthLocal,
		},
		{
			name:      "both reject",
			verifyA:   reject,
			verifyB:   reject,
			wantState: StateRejected,
			wantErrA:  domain.ErrAuthBoth,
			wantErrB:  domain.ErrAuthBoth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ra, rb := runPair(t,
				Config{Name: "master", Verify: tt.verifyA},
				Config{Name: "node", Verify: tt.verifyB},
			)

			if ra.state != tt.wantState || rb.state != tt.wantState {
				t.Errorf("states = %v/%v, want %v", ra.state, rb.state, tt.wantState)
			}
			if !errors.Is(ra.err, tt.wantErrA) || (tt.wantErrA == nil && ra.err != nil) {
				t.Errorf("A error = %v, want %v", ra.err, tt.wantErrA)
			}
			if !errors.Is(rb.err, tt.wantErrB) || (tt.wantErrB == nil && rb.err != nil) {
				t.Errorf("B error = %v, want %v", rb.err, tt.wantErrB)
			}
		})
	}
}

func TestHandshake_ErrorMessages(t *testing.T) {
	tests := []struct {
		side Side
		want string
	}{
		{SideLocal, "Local authentication failed"},
		{SideRemote, "Remote authentication failed"},
		{SideBoth, "Local & remote authentication failed"},
	}

	for _, tt := range tests {
		t.Run(tt.side.String(), func(t *testing.T) {
			var de *domain.Error
			if !errors.As(tt.side.Err(), &de) {
				t.Fatalf("Err() = %v, not a *domain.Error", tt.side.Err())
			}
			if de.Message != tt.want {
				t.Errorf("Message = %q, want %q", de.Message, tt.want)
			}
		})
	}
	if SideNone.Err() != nil {
		t.Errorf("SideNone.Err() = %v, want nil", SideNone.Err())
	}
}

func TestAuthenticator_VerdictBeforeWelcome(t *testing.T) {
	var out outbox
	a := New(Config{Name: "master"}, out.send)

	st, err := a.Process(wire.NewVerdict(true))
	if st != StateAwaiting || err != nil {
		t.Fatalf("after verdict: (%v, %v), want (awaiting, nil)", st, err)
	}

	st, err = a.Process(wire.NewWelcome("node-7", nil))
	if st != StateAuthenticated || err != nil {
		t.Fatalf("after welcome: (%v, %v), want (authenticated, nil)", st, err)
	}
	if a.PeerName() != "node-7" {
		t.Errorf("PeerName() = %q, want node-7", a.PeerName())
	}

	sent := out.drain()
	if len(sent) != 1 || !sent[0].IsVerdict() || !sent[0].Accepted() {
		t.Errorf("sent = %+v, want one accepting verdict", sent)
	}
}

func TestAuthenticator_VerifierReceivesPeerInfo(t *testing.T) {
	var got PeerInfo
	var out outbox
	a := New(Config{
		RemoteAddr: "10.0.0.5:4000",
		Verify: func(p PeerInfo) bool {
			got = p
			return true
		},
	}, out.send)

	_, _ = a.Process(wire.NewWelcome("indexer", map[string]any{"token": "t"}))

	if got.Name != "indexer" || got.RemoteAddr != "10.0.0.5:4000" {
		t.Errorf("PeerInfo = %+v", got)
	}
	if m, ok := got.Auth.(map[string]any); !ok || m["token"] != "t" {
		t.Errorf("PeerInfo.Auth = %v", got.Auth)
	}
}

func TestAuthenticator_IgnoresAfterConclusion(t *testing.T) {
	var out outbox
	a := New(Config{}, out.send)
	_, _ = a.Process(wire.NewWelcome("n", nil))
	_, _ = a.Process(wire.NewVerdict(true))

	st, err := a.Process(wire.NewVerdict(false))
	if st != StateAuthenticated || err != nil {
		t.Errorf("late verdict changed outcome: (%v, %v)", st, err)
	}
	if !a.Authenticated() {
		t.Error("Authenticated() = false, want true")
	}
}

func TestAuthenticator_SendFailure(t *testing.T) {
	boom := errors.New("broken pipe")
	a := New(Config{}, func(*wire.Message) error { return boom })

	if err := a.Start(); !errors.Is(err, boom) {
		t.Errorf("Start() error = %v, want %v", err, boom)
	}
	if _, err := a.Process(wire.NewWelcome("n", nil)); !errors.Is(err, boom) {
		t.Errorf("Process() error = %v, want %v", err, boom)
	}
}
