package domain

import (
	"fmt"
	"net/http"
)

// Error is a coded cluster error. Codes read SM-<AREA>-<NNNN>; Status is
// what the admin API answers when the error reaches it.
type Error struct {
	Code    string
	Status  int
	Message string
	Details string
	Cause   error
}

func newError(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

func (e *Error) Error() string {
	s := "[" + e.Code + "] " + e.Message
	if e.Details != "" {
		s += ": " + e.Details
	}
	return s
}

func (e *Error) Unwrap() error { return e.Cause }

// Is matches any *Error with the same code, so a detailed or wrapped copy
// still satisfies errors.Is against its sentinel.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Detailf returns a copy of e with formatted details.
func (e *Error) Detailf(format string, args ...any) *Error {
	c := *e
	c.Details = fmt.Sprintf(format, args...)
	return &c
}

// Wrap returns a copy of e caused by cause.
func (e *Error) Wrap(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

// Cluster.
var (
	// ErrNoNodes is returned by Send/Request when no node is registered.
	ErrNoNodes = newError("SM-CLUS-4040", http.StatusServiceUnavailable, "There are no nodes currently connected.")

	// ErrRequestTimeout marks a request whose deadline fired before every
	// addressed node replied. It is delivered together with partial replies.
	ErrRequestTimeout = newError("SM-CLUS-4080", http.StatusGatewayTimeout, "Timeout Expired")

	ErrAlreadyStarted = newError("SM-CLUS-4090", http.StatusConflict, "master already started")
	ErrNotStarted     = newError("SM-CLUS-5030", http.StatusServiceUnavailable, "master not started")

	// ErrMasterStopped completes requests still pending when the master stops.
	ErrMasterStopped = newError("SM-CLUS-5031", http.StatusServiceUnavailable, "master stopped")
)

// Handshake. Local means this side rejected the peer, remote the reverse.
var (
	ErrAuthLocal  = newError("SM-AUTH-4010", http.StatusUnauthorized, "Local authentication failed")
	ErrAuthRemote = newError("SM-AUTH-4011", http.StatusUnauthorized, "Remote authentication failed")
	ErrAuthBoth   = newError("SM-AUTH-4012", http.StatusUnauthorized, "Local & remote authentication failed")
)

// Connection.
var (
	ErrConnectionClosed = newError("SM-CONN-5030", http.StatusBadGateway, "Connection closed by remote server")
	ErrNotConnected     = newError("SM-CONN-4000", http.StatusServiceUnavailable, "not connected")

	// ErrNotAuthenticated rejects application traffic before the handshake.
	ErrNotAuthenticated = newError("SM-CONN-4010", http.StatusUnauthorized, "connection not authenticated")
	ErrAlreadyConnected = newError("SM-CONN-4090", http.StatusConflict, "already connected")
)

// ErrNoMaster means no gossip member advertises a master address.
var ErrNoMaster = newError("SM-DISC-4040", http.StatusServiceUnavailable, "no master found")

// Framing.
var (
	ErrMalformedFrame = newError("SM-WIRE-4000", http.StatusBadRequest, "malformed frame")

	// ErrFrameTooLarge means more than the limit was buffered without a terminator.
	ErrFrameTooLarge = newError("SM-WIRE-4130", http.StatusRequestEntityTooLarge, "frame too large")
)

// Admin API.
var (
	ErrInternalServer = newError("SM-SYS-5000", http.StatusInternalServerError, "internal server error")
	ErrBadRequest     = newError("SM-SYS-4000", http.StatusBadRequest, "bad request")
	ErrNotFound       = newError("SM-SYS-4040", http.StatusNotFound, "resource not found")
	ErrRateLimited    = newError("SM-SYS-4290", http.StatusTooManyRequests, "too many requests")
)
