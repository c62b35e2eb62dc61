package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
	"github.com/yndnr/shardmesh-go/internal/server/httpserver/handler"
)

// mockServer creates a test HTTP server with custom handlers.
type mockServer struct {
	*httptest.Server
	handlers map[string]http.HandlerFunc
}

// newMockServer creates a new mock server.
func newMockServer() *mockServer {
	m := &mockServer{
		handlers: make(map[string]http.HandlerFunc),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for pattern, handler := range m.handlers {
			if strings.HasPrefix(r.URL.Path, pattern) {
				handler(w, r)
				return
			}
		}
		errorResponse(w, http.StatusNotFound, "SM-SYS-4040", "resource not found")
	}))
	return m
}

// handle registers a handler for a path prefix.
func (m *mockServer) handle(pattern string, handler http.HandlerFunc) {
	m.handlers[pattern] = handler
}

// jsonResponse writes data inside a success envelope.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"code":    "OK",
		"message": "Success",
		"data":    data,
	})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":    code,
		"message": message,
	})
}

// run executes the CLI against server and returns what it printed.
func run(server *mockServer, args ...string) (stdout, stderr string, err error) {
	var out, errOut bytes.Buffer
	app := App()
	app.Writer = &out
	app.ErrWriter = &errOut

	full := append([]string{"shardmesh-cli", "--server", server.URL}, args...)
	err = app.Run(full)
	return out.String(), errOut.String(), err
}

func sampleNode() clusterserver.NodeInfo {
	return clusterserver.NodeInfo{
		ID:            "01jabcde",
		Name:          "node-1",
		RemoteAddress: "127.0.0.1:40000",
		UpSince:       time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		UpTime:        90 * time.Second,
	}
}

// bodyRecorder keeps the last message body a mock handler decoded.
type bodyRecorder struct {
	mu   sync.Mutex
	body handler.MessageRequest
}

func (b *bodyRecorder) decode(r *http.Request) (handler.MessageRequest, error) {
	var body handler.MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return body, err
	}
	b.mu.Lock()
	b.body = body
	b.mu.Unlock()
	return body, nil
}

func (b *bodyRecorder) last() handler.MessageRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.body
}
