package command

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/shardmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
	"github.com/yndnr/shardmesh-go/internal/server/httpserver/handler"
)

func TestStatus(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/status", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			errorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		jsonResponse(w, http.StatusOK, clusterserver.Status{
			Running: true,
			UpTime:  2 * time.Minute,
			Nodes:   []clusterserver.NodeInfo{sampleNode()},
		})
	})

	tests := []struct {
		name   string
		args   []string
		want   []string
		absent []string
	}{
		{"Table", []string{"status"}, []string{"Master: up 2m0s, 1 node(s)", "NAME", "UP_SINCE", "node-1", "127.0.0.1:40000", "2026-01-02T03:04:05Z", "1m30s"}, nil},
		{"NoHeaders", []string{"--no-headers", "status"}, []string{"node-1", "127.0.0.1:40000"}, []string{"NAME", "UP_SINCE"}},
		{"JSON", []string{"-o", "json", "status"}, []string{`"upTime": 120000`, `"name": "node-1"`}, nil},
		{"YAML", []string{"-o", "yaml", "status"}, []string{"upTime: 120000", "name: node-1"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := run(server, tt.args...)
			if err != nil {
				t.Fatalf("status error = %v", err)
			}
			for _, want := range tt.want {
				if !strings.Contains(out, want) {
					t.Errorf("output missing %q:\n%s", want, out)
				}
			}
			for _, absent := range tt.absent {
				if strings.Contains(out, absent) {
					t.Errorf("output contains %q:\n%s", absent, out)
				}
			}
		})
	}
}

func TestStatus_Stopped(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/status", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, clusterserver.Status{})
	})

	out, _, err := run(server, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.HasPrefix(out, "Master: stopped") {
		t.Errorf("output = %q", out)
	}
}

func TestStatus_BadOutput(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/status", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, clusterserver.Status{})
	})

	if _, _, err := run(server, "-o", "xml", "status"); err == nil {
		t.Error("status -o xml should fail")
	}
}

func TestNode(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/nodes/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/admin/v1/nodes/01jabcde" {
			errorResponse(w, http.StatusNotFound, "SM-SYS-4040", "resource not found")
			return
		}
		jsonResponse(w, http.StatusOK, sampleNode())
	})

	t.Run("Found", func(t *testing.T) {
		out, _, err := run(server, "node", "01jabcde")
		if err != nil {
			t.Fatalf("node error = %v", err)
		}
		if !strings.Contains(out, "node-1") || !strings.Contains(out, "01jabcde") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		_, _, err := run(server, "node", "missing")
		if err == nil || !strings.Contains(err.Error(), "SM-SYS-4040") {
			t.Errorf("node error = %v, want SM-SYS-4040", err)
		}
	})

	t.Run("MissingID", func(t *testing.T) {
		if _, _, err := run(server, "node"); err == nil {
			t.Error("node without ID should fail")
		}
	})
}

func TestSend(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	var rec bodyRecorder
	server.handle("/admin/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			errorResponse(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
			return
		}
		if _, err := rec.decode(r); err != nil {
			errorResponse(w, http.StatusBadRequest, "SM-SYS-4000", "bad request")
			return
		}
		jsonResponse(w, http.StatusAccepted, handler.SendResponse{ID: "msg-1", Delivered: 1})
	})

	t.Run("WithKey", func(t *testing.T) {
		out, _, err := run(server, "send", "--key", "user-42", "reload", `{"force":true}`)
		if err != nil {
			t.Fatalf("send error = %v", err)
		}
		got := rec.last()
		if got.ShardKey != "user-42" || got.Name != "reload" {
			t.Errorf("body = %+v", got)
		}
		if content, ok := got.Content.(map[string]any); !ok || content["force"] != true {
			t.Errorf("Content = %#v, want {force:true}", got.Content)
		}
		if !strings.Contains(out, "msg-1") || !strings.Contains(out, "DELIVERED") {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("Broadcast", func(t *testing.T) {
		if _, _, err := run(server, "send", "note", "hello there"); err != nil {
			t.Fatalf("send error = %v", err)
		}
		got := rec.last()
		if got.ShardKey != "" || got.Content != "hello there" {
			t.Errorf("body = %+v", got)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		if _, _, err := run(server, "send"); err == nil {
			t.Error("send without NAME should fail")
		}
	})
}

func TestSend_NoNodes(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/admin/v1/messages", func(w http.ResponseWriter, r *http.Request) {
		errorResponse(w, http.StatusServiceUnavailable, "SM-CLUS-4040", "There are no nodes currently connected.")
	})

	_, _, err := run(server, "send", "note")
	if err == nil || !strings.Contains(err.Error(), "There are no nodes currently connected.") {
		t.Errorf("send error = %v", err)
	}
}

func TestRequest(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	var rec bodyRecorder
	server.handle("/admin/v1/requests", func(w http.ResponseWriter, r *http.Request) {
		got, err := rec.decode(r)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, "SM-SYS-4000", "bad request")
			return
		}
		res := handler.RequestResult{
			ID:           "req-1",
			ResponseTime: 12,
			Replies: []clusterserver.Reply{{
				Node:         sampleNode(),
				Reply:        float64(42),
				ResponseTime: 12 * time.Millisecond,
			}},
		}
		if got.Name == "slow" {
			res.Error = "Timeout Expired"
		}
		jsonResponse(w, http.StatusOK, res)
	})

	t.Run("Table", func(t *testing.T) {
		out, errOut, err := run(server, "request", "--key", "k", "--timeout", "250ms", "double", "21")
		if err != nil {
			t.Fatalf("request error = %v", err)
		}
		got := rec.last()
		if got.ShardKey != "k" || got.Name != "double" || got.Content != float64(21) || got.TimeoutMS != 250 {
			t.Errorf("body = %+v", got)
		}
		for _, want := range []string{"NODE", "RESPONSE_TIME", "node-1", "42", "12ms"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
		if errOut != "" {
			t.Errorf("stderr = %q, want empty", errOut)
		}
	})

	t.Run("JSON", func(t *testing.T) {
		out, _, err := run(server, "-o", "json", "request", "double", "21")
		if err != nil {
			t.Fatalf("request error = %v", err)
		}
		if got := rec.last(); got.TimeoutMS != 0 {
			t.Errorf("TimeoutMS = %d, want 0 without --timeout", got.TimeoutMS)
		}

		var res handler.RequestResult
		if err := json.Unmarshal([]byte(out), &res); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, out)
		}
		if res.ID != "req-1" || len(res.Replies) != 1 || res.Replies[0].Reply != float64(42) {
			t.Errorf("result = %+v", res)
		}
	})

	t.Run("Partial", func(t *testing.T) {
		out, errOut, err := run(server, "request", "slow")
		if err != nil {
			t.Fatalf("request error = %v", err)
		}
		if !strings.Contains(out, "node-1") {
			t.Errorf("output = %q, want partial replies", out)
		}
		if !strings.Contains(errOut, "Timeout Expired after 12ms: 1 reply(ies) collected") {
			t.Errorf("stderr = %q", errOut)
		}
	})

	t.Run("NegativeTimeout", func(t *testing.T) {
		if _, _, err := run(server, "request", "--timeout", "-1s", "double"); err == nil {
			t.Error("negative --timeout should fail")
		}
	})
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name    string
		ready   bool
		build   *buildinfo.Info
		want    string
		version string
	}{
		{"Ready", true, &buildinfo.Info{Version: "v1.2.0", Commit: "abc1234"}, "✓ Cluster is running", "  Version: v1.2.0 (abc1234)"},
		{"NotReady", false, nil, "✗ Cluster is not started", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := newMockServer()
			defer server.Close()

			server.handle("/health", func(w http.ResponseWriter, r *http.Request) {
				jsonResponse(w, http.StatusOK, handler.HealthResponse{Status: "ok", Time: "2026-01-02T03:04:05Z", Build: tt.build})
			})
			server.handle("/ready", func(w http.ResponseWriter, r *http.Request) {
				if !tt.ready {
					errorResponse(w, http.StatusServiceUnavailable, "SM-CLUS-5030", "master not started")
					return
				}
				jsonResponse(w, http.StatusOK, handler.HealthResponse{Status: "ok"})
			})

			out, _, err := run(server, "health")
			if err != nil {
				t.Fatalf("health error = %v", err)
			}
			if !strings.Contains(out, "✓ Master is ok") || !strings.Contains(out, tt.want) {
				t.Errorf("output = %q, want %q", out, tt.want)
			}
			if got := strings.Contains(out, "Version:"); got != (tt.version != "") || !strings.Contains(out, tt.version) {
				t.Errorf("output = %q, want version line %q", out, tt.version)
			}
		})
	}
}

func TestHealth_JSON(t *testing.T) {
	server := newMockServer()
	defer server.Close()

	server.handle("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, handler.HealthResponse{Status: "ok"})
	})
	server.handle("/ready", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, handler.HealthResponse{Status: "ok"})
	})

	out, _, err := run(server, "-o", "json", "health")
	if err != nil {
		t.Fatalf("health error = %v", err)
	}
	if !strings.Contains(out, `"ready": true`) {
		t.Errorf("output = %q", out)
	}
}

func TestHealth_Unreachable(t *testing.T) {
	server := newMockServer()
	server.Close()

	if _, _, err := run(server, "health"); err == nil {
		t.Error("health against a closed server should fail")
	}
}
