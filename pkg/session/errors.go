package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an APIError. Kinds map one-to-one onto the wire `type`
// field and onto HTTP status codes.
type Kind string

const (
	KindInvalidRequest Kind = "invalid_request"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindUpstream       Kind = "upstream_error"
	KindInternal       Kind = "internal_error"

	// KindNetwork marks a client-side transport failure. It never appears
	// on the wire; servers have responded (or not) by the time it is made.
	KindNetwork Kind = "network_error"
)

// APIError is the one error type crossing the client/server boundary.
// The body of every non-2xx response is {"error": {"type", "message"}}.
type APIError struct {
	Kind    Kind   `json:"type"`
	Message string `json:"message"`

	cause error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the transport cause on network errors; nil otherwise.
func (e *APIError) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the status code an APIError renders with.
func (e *APIError) HTTPStatus() int {
	switch e.Kind {
	case KindInvalidRequest:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrInvalidRequest reports a malformed or referentially invalid payload.
func ErrInvalidRequest(format string, args ...any) *APIError {
	return &APIError{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

// ErrNotFound reports a missing session, node, edge, or group.
func ErrNotFound(format string, args ...any) *APIError {
	return &APIError{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// ErrConflict reports a rejected concurrent edit, such as a stale diagram
// version pin or a duplicate design-doc generation start.
func ErrConflict(format string, args ...any) *APIError {
	return &APIError{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// ErrUpstream reports a failure in the assistant or renderer service.
func ErrUpstream(format string, args ...any) *APIError {
	return &APIError{Kind: KindUpstream, Message: fmt.Sprintf(format, args...)}
}

// ErrServer reports an unexpected server-side failure.
func ErrServer(format string, args ...any) *APIError {
	return &APIError{Kind: KindInternal, Message: fmt.Sprintf(format, args...)}
}

// ErrNetwork wraps a transport failure so callers can distinguish "the
// server said no" from "the server was never reached".
func ErrNetwork(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: err.Error(), cause: err}
}

func kindIs(err error, kind Kind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsValidation reports whether err is an invalid_request APIError.
func IsValidation(err error) bool { return kindIs(err, KindInvalidRequest) }

// IsNotFound reports whether err is a not_found APIError.
func IsNotFound(err error) bool { return kindIs(err, KindNotFound) }

// IsConflict reports whether err is a conflict APIError.
func IsConflict(err error) bool { return kindIs(err, KindConflict) }

// IsUpstream reports whether err is an upstream_error APIError.
func IsUpstream(err error) bool { return kindIs(err, KindUpstream) }

// IsNetwork reports whether err is a client-side transport failure.
func IsNetwork(err error) bool { return kindIs(err, KindNetwork) }

type errorEnvelope struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// DecodeError turns a non-2xx response into an APIError. Unrecognized or
// unparseable bodies map onto the kind implied by the status code so a
// proxy's bare 404 still comes back as not_found.
func DecodeError(status int, body []byte) *APIError {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Type != "" {
		return &APIError{Kind: Kind(env.Error.Type), Message: env.Error.Message}
	}

	msg := http.StatusText(status)
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound("%s", msg)
	case status == http.StatusConflict:
		return ErrConflict("%s", msg)
	case status == http.StatusBadRequest:
		return ErrInvalidRequest("%s", msg)
	case status == http.StatusBadGateway, status == http.StatusServiceUnavailable, status == http.StatusGatewayTimeout:
		return ErrUpstream("%s", msg)
	default:
		return ErrServer("unexpected status %d: %s", status, msg)
	}
}
