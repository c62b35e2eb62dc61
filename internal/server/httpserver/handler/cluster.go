package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
)

// maxBodySize bounds admin request bodies.
const maxBodySize = 1 << 20

// handleStatus handles GET /admin/v1/status.
func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, h.cluster.Status())
}

// handleGetNode handles GET /admin/v1/nodes/{id}.
func (h *Handler) handleGetNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	node, ok := h.cluster.Node(id)
	if !ok {
		h.handleClusterError(w, r, domain.ErrNotFound.Detailf("node %s", id))
		return
	}
	h.writeJSON(w, r, http.StatusOK, node)
}

// handleSendMessage handles POST /admin/v1/messages.
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}

	id, delivered, err := h.cluster.SendCount(req.ShardKey, req.Name, req.Content)
	if err != nil {
		h.handleClusterError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusAccepted, SendResponse{ID: id, Delivered: delivered})
}

// handleRequest handles POST /admin/v1/requests. It blocks until every
// addressed node replied or the deadline fired; a timeout still returns
// the replies received so far.
func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeMessage(w, r)
	if !ok {
		return
	}
	if req.TimeoutMS < 0 {
		h.handleClusterError(w, r, domain.ErrBadRequest.Detailf("timeout_ms must not be negative"))
		return
	}

	var opts []clusterserver.RequestOption
	if req.TimeoutMS > 0 {
		opts = append(opts, clusterserver.WithTimeout(time.Duration(req.TimeoutMS)*time.Millisecond))
	}

	call, err := h.cluster.Request(req.ShardKey, req.Name, req.Content, opts...)
	if err != nil {
		h.handleClusterError(w, r, err)
		return
	}

	resp, err := call.Wait(r.Context())
	switch {
	case err == nil, errors.Is(err, domain.ErrRequestTimeout):
		h.writeJSON(w, r, http.StatusOK, newRequestResult(resp, err))
	case r.Context().Err() != nil:
		h.logger.Debug("client went away before request completed", "correlation_id", call.ID)
	default:
		h.handleClusterError(w, r, err)
	}
}

func (h *Handler) decodeMessage(w http.ResponseWriter, r *http.Request) (*MessageRequest, bool) {
	var req MessageRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		h.handleClusterError(w, r, domain.ErrBadRequest.Detailf("invalid JSON body: %v", err))
		return nil, false
	}
	if req.Name == "" {
		h.handleClusterError(w, r, domain.ErrBadRequest.Detailf("name is required"))
		return nil, false
	}
	return &req, true
}
