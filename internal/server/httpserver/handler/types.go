package handler

import (
	"errors"
	"time"

	"github.com/yndnr/shardmesh-go/internal/core/domain"
	"github.com/yndnr/shardmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/shardmesh-go/internal/server/clusterserver"
)

// Response is the envelope of every JSON response.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	if s, ok := details.(string); ok && s == "" {
		details = nil
	}
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// HealthResponse is the body of GET /health and GET /ready. Only /health
// reports the build.
type HealthResponse struct {
	Status string          `json:"status"`
	Time   string          `json:"time"`
	Build  *buildinfo.Info `json:"build,omitempty"`
}

// MessageRequest is the body of POST /admin/v1/messages and
// POST /admin/v1/requests.
type MessageRequest struct {
	// ShardKey selects one node by the ring. Empty addresses every node.
	ShardKey string `json:"shard_key,omitempty"`
	Name     string `json:"name"`
	Content  any    `json:"content,omitempty"`

	// TimeoutMS overrides the master's request timeout. Requests only.
	TimeoutMS int64 `json:"timeout_ms,omitempty"`
}

// SendResponse is the body returned by POST /admin/v1/messages.
type SendResponse struct {
	ID        string `json:"id"`
	Delivered int    `json:"delivered"`
}

// RequestResult is the body returned by POST /admin/v1/requests. Error is
// set when the deadline fired and Replies is partial.
type RequestResult struct {
	ID           string                `json:"id"`
	ResponseTime int64                 `json:"responseTime"`
	Replies      []clusterserver.Reply `json:"replies"`
	Error        string                `json:"error,omitempty"`
}

func newRequestResult(resp *clusterserver.Response, err error) RequestResult {
	res := RequestResult{
		ID:           resp.ID,
		ResponseTime: resp.ResponseTime.Milliseconds(),
		Replies:      resp.Replies,
	}
	if res.Replies == nil {
		res.Replies = []clusterserver.Reply{}
	}
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		res.Error = de.Message
	case err != nil:
		res.Error = err.Error()
	}
	return res
}
