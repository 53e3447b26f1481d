package session

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAPIErrorKinds(t *testing.T) {
	tests := []struct {
		name       string
		err        *APIError
		wantKind   Kind
		wantStatus int
		predicate  func(error) bool
	}{
		{"invalid request", ErrInvalidRequest("node %q has no label", "n1"), KindInvalidRequest, http.StatusBadRequest, IsValidation},
		{"not found", ErrNotFound("session %s not found", "sess_x"), KindNotFound, http.StatusNotFound, IsNotFound},
		{"conflict", ErrConflict("diagram version changed"), KindConflict, http.StatusConflict, IsConflict},
		{"upstream", ErrUpstream("assistant timed out"), KindUpstream, http.StatusBadGateway, IsUpstream},
		{"server", ErrServer("storage write failed"), KindInternal, http.StatusInternalServerError, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.wantKind)
			}
			if got := tt.err.HTTPStatus(); got != tt.wantStatus {
				t.Errorf("status = %d, want %d", got, tt.wantStatus)
			}
			if tt.predicate != nil && !tt.predicate(tt.err) {
				t.Error("kind predicate returned false")
			}
			if IsNetwork(tt.err) {
				t.Error("IsNetwork true for a server-kind error")
			}
		})
	}
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	err := fmt.Errorf("add node: %w", ErrNotFound("node missing"))
	if !IsNotFound(err) {
		t.Error("IsNotFound failed through fmt.Errorf wrapping")
	}
	if IsValidation(err) {
		t.Error("IsValidation matched a not_found error")
	}
}

func TestErrNetworkUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := ErrNetwork(cause)

	if !IsNetwork(err) {
		t.Error("IsNetwork returned false")
	}
	if !errors.Is(err, cause) {
		t.Error("network error does not unwrap to its transport cause")
	}
	if ErrNotFound("x").Unwrap() != nil {
		t.Error("non-network error unexpectedly unwraps")
	}
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind Kind
		wantMsg  string
	}{
		{
			name:     "well-formed envelope",
			status:   404,
			body:     `{"error":{"type":"not_found","message":"session sess_x not found"}}`,
			wantKind: KindNotFound,
			wantMsg:  "session sess_x not found",
		},
		{
			name:     "envelope wins over status",
			status:   500,
			body:     `{"error":{"type":"upstream_error","message":"assistant failed"}}`,
			wantKind: KindUpstream,
			wantMsg:  "assistant failed",
		},
		{
			name:     "bare 404 from a proxy",
			status:   404,
			body:     `<html>not found</html>`,
			wantKind: KindNotFound,
		},
		{
			name:     "bare 409",
			status:   409,
			body:     ``,
			wantKind: KindConflict,
		},
		{
			name:     "bare 400",
			status:   400,
			body:     `{}`,
			wantKind: KindInvalidRequest,
		},
		{
			name:     "bare 502",
			status:   502,
			body:     ``,
			wantKind: KindUpstream,
		},
		{
			name:     "unexpected status",
			status:   418,
			body:     ``,
			wantKind: KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecodeError(tt.status, []byte(tt.body))
			if got.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", got.Kind, tt.wantKind)
			}
			if tt.wantMsg != "" && got.Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", got.Message, tt.wantMsg)
			}
		})
	}
}
