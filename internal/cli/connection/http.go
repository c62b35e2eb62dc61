package connection

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/shardmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/shardmesh-go/pkg/idgen"
)

// DefaultTimeout bounds a single admin API call.
const DefaultTimeout = 30 * time.Second

const headerRequestID = "X-Request-ID"

// HTTPClient talks to the master's admin API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a client for server, adding http:// when no
// scheme is given. A zero timeout means DefaultTimeout.
func NewHTTPClient(server string, timeout time.Duration) *HTTPClient {
	base := strings.TrimSuffix(server, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		baseURL: base,
		client:  &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the admin API root.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}

// Get sends a GET to path.
func (c *HTTPClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post sends body as JSON to path. A nil body sends no content.
func (c *HTTPClient) Post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// do tags every call with a fresh X-Request-ID so a failure can be found
// in the master's access log.
func (c *HTTPClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", buildinfo.UserAgent("shardmesh-cli"))
	req.Header.Set(headerRequestID, "cli-"+idgen.New())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.client.Do(req)
}

// APIError is an error envelope returned by the master.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Details   any
	RequestID string
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Details != nil {
		fmt.Fprintf(&b, ": %v", e.Details)
	}
	if e.RequestID != "" {
		fmt.Fprintf(&b, " (request_id %s)", e.RequestID)
	}
	return b.String()
}

type envelope struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Details any             `json:"details"`
}

// ParseResponse closes resp after decoding its envelope. On success the
// envelope data is unmarshalled into target when both are present; on a
// 4xx or 5xx status an *APIError is returned when the body carries a code.
func ParseResponse(resp *http.Response, target any) error {
	defer resp.Body.Close()

	var env envelope
	err := json.NewDecoder(resp.Body).Decode(&env)
	if errors.Is(err, io.EOF) {
		err = nil
	}

	if resp.StatusCode >= http.StatusBadRequest {
		if err != nil || env.Code == "" {
			return fmt.Errorf("request failed with status %d", resp.StatusCode)
		}
		return &APIError{
			Status:    resp.StatusCode,
			Code:      env.Code,
			Message:   env.Message,
			Details:   env.Details,
			RequestID: resp.Header.Get(headerRequestID),
		}
	}
	if err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if target == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}
