package domain

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"Plain", ErrRequestTimeout, "[SM-CLUS-4080] Timeout Expired"},
		{"Details", ErrNotFound.Detailf("node %s", "01jabc"), "[SM-SYS-4040] resource not found: node 01jabc"},
		{"CauseHidden", ErrMalformedFrame.Wrap(errors.New("unexpected EOF")), "[SM-WIRE-4000] malformed frame"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"Sentinel", ErrNoNodes, ErrNoNodes, true},
		{"Detailed", ErrBadRequest.Detailf("name is required"), ErrBadRequest, true},
		{"Wrapped", fmt.Errorf("send: %w", ErrNoNodes), ErrNoNodes, true},
		{"SameCodeOtherText", &Error{Code: "SM-CLUS-4040", Message: "x"}, ErrNoNodes, true},
		{"OtherCode", ErrNotStarted, ErrMasterStopped, false},
		{"PlainError", errors.New("boom"), ErrNoNodes, false},
		{"CauseReachable", ErrNoMaster.Wrap(context.DeadlineExceeded), context.DeadlineExceeded, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(tt.err, tt.target); got != tt.want {
				t.Errorf("errors.Is(%v, %v) = %v, want %v", tt.err, tt.target, got, tt.want)
			}
		})
	}
}

func TestError_CopiesLeaveSentinel(t *testing.T) {
	cause := errors.New("cause")
	d := ErrFrameTooLarge.Detailf("%d bytes", 32)
	w := d.Wrap(cause)

	if ErrFrameTooLarge.Details != "" || ErrFrameTooLarge.Cause != nil {
		t.Fatalf("sentinel modified: %+v", ErrFrameTooLarge)
	}
	if w.Details != "32 bytes" || !errors.Is(w, cause) {
		t.Errorf("Wrap dropped state: %+v", w)
	}
	if w.Status != http.StatusRequestEntityTooLarge || w.Code != ErrFrameTooLarge.Code {
		t.Errorf("copy = %+v", w)
	}
	if d.Cause != nil {
		t.Error("Wrap modified its receiver")
	}
}

func TestSentinels(t *testing.T) {
	tests := []struct {
		err     *Error
		code    string
		status  int
		message string
	}{
		{ErrNoNodes, "SM-CLUS-4040", http.StatusServiceUnavailable, "There are no nodes currently connected."},
		{ErrRequestTimeout, "SM-CLUS-4080", http.StatusGatewayTimeout, "Timeout Expired"},
		{ErrMasterStopped, "SM-CLUS-5031", http.StatusServiceUnavailable, "master stopped"},
		{ErrAuthLocal, "SM-AUTH-4010", http.StatusUnauthorized, "Local authentication failed"},
		{ErrAuthRemote, "SM-AUTH-4011", http.StatusUnauthorized, "Remote authentication failed"},
		{ErrAuthBoth, "SM-AUTH-4012", http.StatusUnauthorized, "Local & remote authentication failed"},
		{ErrConnectionClosed, "SM-CONN-5030", http.StatusBadGateway, "Connection closed by remote server"},
		{ErrNoMaster, "SM-DISC-4040", http.StatusServiceUnavailable, "no master found"},
		{ErrBadRequest, "SM-SYS-4000", http.StatusBadRequest, "bad request"},
		{ErrNotFound, "SM-SYS-4040", http.StatusNotFound, "resource not found"},
		{ErrRateLimited, "SM-SYS-4290", http.StatusTooManyRequests, "too many requests"},
	}

	codes := make(map[string]bool)
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if tt.err.Code != tt.code || tt.err.Status != tt.status || tt.err.Message != tt.message {
				t.Errorf("got {%s %d %q}, want {%s %d %q}",
					tt.err.Code, tt.err.Status, tt.err.Message, tt.code, tt.status, tt.message)
			}
			if codes[tt.code] {
				t.Errorf("code %s used twice", tt.code)
			}
			codes[tt.code] = true
		})
	}
}
