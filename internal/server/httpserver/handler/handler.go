package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
	"github.com/yndnr/shardmesh-go/internal/telemetry/logger"
)

// ClusterAPI is the part of the master the admin API drives.
type ClusterAPI interface {
	Running() bool
	Status() clusterserver.Status
	Node(id string) (clusterserver.NodeInfo, bool)
	SendCount(shardKey, name string, content any) (string, int, error)
	Request(shardKey, name string, content any, opts ...clusterserver.RequestOption) (*clusterserver.Call, error)
}

// Handler routes admin API requests.
type Handler struct {
	cluster ClusterAPI
	logger  *slog.Logger
	mux     *http.ServeMux
}

// New creates a Handler for cluster.
func New(cluster ClusterAPI, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		cluster: cluster,
		logger:  logger,
		mux:     http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("GET /admin/v1/status", h.handleStatus)
	h.mux.HandleFunc("GET /admin/v1/nodes/{id}", h.handleGetNode)
	h.mux.HandleFunc("POST /admin/v1/messages", h.handleSendMessage)
	h.mux.HandleFunc("POST /admin/v1/requests", h.handleRequest)
}

// writeJSON writes a success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes an error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode error response", "error", err)
	}
}

// getRequestID reads the ID the RequestID middleware stored on the
// request context, falling back to the request header.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}

// handleClusterError converts master errors to HTTP responses.
func (h *Handler) handleClusterError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		h.writeError(w, r, de.Status, de.Code, de.Message, de.Details)
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError,
		domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}
