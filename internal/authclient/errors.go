package authclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrUnauthorized matches an *AuthError and any 401 *UpstreamError.
var ErrUnauthorized = errors.New("unauthorized")

// TransportError means the request never completed: DNS, connection,
// timeout or an unreadable body.
type TransportError struct {
	Method string
	Path   string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("authclient: %s %s: %v", e.Method, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// AuthError is terminal: the access token was rejected and the reissue
// failed. The session has already been cleared when it is returned.
type AuthError struct {
	Method string
	Path   string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authclient: %s %s: session expired: %v", e.Method, e.Path, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }

// UpstreamError is any other non-2xx response. Code and Message come from
// the backend's {"code": ..., "message": ...} body when present; a
// message that is not a string (field validation maps) is kept raw.
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
	Body       []byte
}

func (e *UpstreamError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "authclient: HTTP %d", e.StatusCode)
	if e.Code != "" {
		fmt.Fprintf(&b, ": %s", e.Code)
	}
	if e.Message != "" {
		fmt.Fprintf(&b, ": %s", e.Message)
	}
	return b.String()
}

func (e *UpstreamError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return hasStatus(err, http.StatusNotFound)
}

// IsForbidden reports whether err is a 403 from the backend.
func IsForbidden(err error) bool {
	return hasStatus(err, http.StatusForbidden)
}

// IsConflict reports whether err is a 409 from the backend.
func IsConflict(err error) bool {
	return hasStatus(err, http.StatusConflict)
}

func hasStatus(err error, status int) bool {
	var upstream *UpstreamError
	return errors.As(err, &upstream) && upstream.StatusCode == status
}

func parseUpstreamError(status int, body []byte) *UpstreamError {
	upstream := &UpstreamError{StatusCode: status, Body: body}

	var wire struct {
		Code    json.RawMessage `json:"code"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		upstream.Message = strings.TrimSpace(string(body))
		if upstream.Message == "" {
			upstream.Message = http.StatusText(status)
		}
		return upstream
	}
	upstream.Code = rawText(wire.Code)
	upstream.Message = rawText(wire.Message)
	return upstream
}

// rawText unquotes JSON strings and compacts anything else.
func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}
