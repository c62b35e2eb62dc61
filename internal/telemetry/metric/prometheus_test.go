package metric

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func scrape(t *testing.T, r *Registry) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r.registry == nil {
		t.Fatal("registry field is nil")
	}
	if r.ConnectionsActive == nil || r.RequestsCompleted == nil || r.HTTPRequests == nil {
		t.Error("metrics not initialized")
	}
}

func TestGlobal(t *testing.T) {
	if Global() != Global() {
		t.Error("Global() should return the same instance")
	}
	if Handler() == nil {
		t.Error("Handler() returned nil")
	}
}

func TestHandler_RuntimeMetrics(t *testing.T) {
	body := scrape(t, NewRegistry())

	if !strings.Contains(body, "go_goroutines") {
		t.Error("missing go_goroutines")
	}
}

func TestClusterMetrics(t *testing.T) {
	r := NewRegistry()

	r.ConnectionsTotal.Inc()
	r.ConnectionsActive.Inc()
	r.AuthFailures.WithLabelValues("remote").Inc()
	r.MessagesSent.WithLabelValues("send").Add(3)
	r.FramesDropped.WithLabelValues("malformed").Inc()
	r.RequestsCompleted.WithLabelValues("timeout").Inc()
	r.RequestDuration.WithLabelValues("complete").Observe(0.02)

	body := scrape(t, r)
	for _, want := range []string{
		`shardmesh_connections_total 1`,
		`shardmesh_messages_sent_total{kind="send"} 3`,
		`shardmesh_auth_failures_total{side="remote"} 1`,
		`shardmesh_frames_dropped_total{reason="malformed"} 1`,
		`shardmesh_requests_completed_total{outcome="timeout"} 1`,
		`shardmesh_request_duration_seconds_count{outcome="complete"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

type fakeSource struct{}

func (fakeSource) Uptime() time.Duration { return 90 * time.Second }
func (fakeSource) NodeCount() int        { return 3 }
func (fakeSource) RingPoints() int       { return 384 }

func TestCollector(t *testing.T) {
	r := NewRegistry()
	r.MustRegister(NewCollector(fakeSource{}))

	body := scrape(t, r)
	for _, want := range []string{
		"shardmesh_master_uptime_seconds 90",
		"shardmesh_master_nodes_authenticated 3",
		"shardmesh_ring_points 384",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}

func TestConcurrentMetricUpdates(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r.ConnectionsActive.Inc()
				r.MessagesReceived.WithLabelValues("reply").Inc()
				r.ConnectionsActive.Dec()
			}
		}()
	}
	wg.Wait()

	body := scrape(t, r)
	for _, want := range []string{
		`shardmesh_messages_received_total{kind="reply"} 1000`,
		`shardmesh_connections_active 0`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("scrape missing %q", want)
		}
	}
}
