package discovery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAgent(t *testing.T, name string, meta Meta, seeds ...string) *Agent {
	t.Helper()
	a, err := New(Config{
		Name:     name,
		BindAddr: "127.0.0.1",
		BindPort: 0,
		Seeds:    seeds,
		Meta:     meta,
		Logger:   quietLogger(),
	})
	if err != nil {
		t.Fatalf("New(%s) error = %v", name, err)
	}
	t.Cleanup(func() { _ = a.Shutdown() })
	return a
}

func TestNew(t *testing.T) {
	a := newAgent(t, "solo", Meta{Role: RoleNode})

	members := a.Members()
	if len(members) != 1 {
		t.Fatalf("len(Members()) = %d, want 1", len(members))
	}
	if members[0].Name != "solo" || members[0].Meta.Role != RoleNode {
		t.Errorf("Members()[0] = %+v", members[0])
	}
	if members[0].GossipAddr != a.LocalAddr() {
		t.Errorf("GossipAddr = %s, want %s", members[0].GossipAddr, a.LocalAddr())
	}

	if _, ok := a.MasterAddr(); ok {
		t.Error("MasterAddr() found a master in a node-only cluster")
	}
}

func TestNew_RandomName(t *testing.T) {
	a, err := New(Config{BindAddr: "127.0.0.1", Logger: quietLogger()})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown()

	if name := a.Members()[0].Name; len(name) <= len("shardmesh-") {
		t.Errorf("generated name = %q", name)
	}
}

func TestNew_BadSeed(t *testing.T) {
	_, err := New(Config{
		Name:     "lonely",
		BindAddr: "127.0.0.1",
		Seeds:    []string{"127.0.0.1:1"},
		Logger:   quietLogger(),
	})
	if err == nil {
		t.Fatal("New() with unreachable seed succeeded")
	}
}

func TestAgent_NodeFindsMaster(t *testing.T) {
	master := newAgent(t, "master", Meta{Role: RoleMaster, Addr: "10.0.0.1:5134"})

	joined := make(chan Member, 4)
	master.OnJoin(func(m Member) { joined <- m })

	node := newAgent(t, "node-1", Meta{Role: RoleNode}, master.LocalAddr())

	addr, ok := node.MasterAddr()
	if !ok {
		t.Fatal("MasterAddr() found no master after join")
	}
	if addr != "10.0.0.1:5134" {
		t.Errorf("MasterAddr() = %s, want 10.0.0.1:5134", addr)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := node.WaitMaster(ctx)
	if err != nil || got != addr {
		t.Errorf("WaitMaster() = %s, %v", got, err)
	}

	deadline := time.After(2 * time.Second)
	for {
		select {
		case m := <-joined:
			if m.Name == "node-1" {
				if m.Meta.Role != RoleNode {
					t.Errorf("joined role = %q, want %q", m.Meta.Role, RoleNode)
				}
				return
			}
		case <-deadline:
			t.Fatal("master did not see node-1 join")
		}
	}
}

func TestAgent_WaitMasterTimeout(t *testing.T) {
	a := newAgent(t, "node-1", Meta{Role: RoleNode})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := a.WaitMaster(ctx)
	if !errors.Is(err, domain.ErrNoMaster) {
		t.Errorf("WaitMaster() error = %v, want %v", err, domain.ErrNoMaster)
	}
}

func TestAgent_Leave(t *testing.T) {
	master := newAgent(t, "master", Meta{Role: RoleMaster, Addr: "127.0.0.1:5134"})

	left := make(chan Member, 1)
	master.OnLeave(func(m Member) { left <- m })

	node := newAgent(t, "node-1", Meta{Role: RoleNode}, master.LocalAddr())
	if err := node.Leave(time.Second); err != nil {
		t.Fatalf("Leave() error = %v", err)
	}

	select {
	case m := <-left:
		if m.Name != "node-1" {
			t.Errorf("left = %s, want node-1", m.Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("master did not see node-1 leave")
	}
}

func TestAgent_ShutdownIdempotent(t *testing.T) {
	a := newAgent(t, "node-1", Meta{Role: RoleNode})
	if err := a.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := a.Shutdown(); err != nil {
		t.Errorf("second Shutdown() error = %v", err)
	}
}

func TestMetadataDelegate_NodeMeta(t *testing.T) {
	d := &metadataDelegate{meta: []byte(`{"role":"master"}`)}
	if got := d.NodeMeta(512); string(got) != `{"role":"master"}` {
		t.Errorf("NodeMeta(512) = %s", got)
	}
	if got := d.NodeMeta(4); got != nil {
		t.Errorf("NodeMeta(4) = %s, want nil", got)
	}
}
