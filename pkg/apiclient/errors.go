package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidConfig is returned when the client configuration is incomplete
	ErrInvalidConfig = errors.New("invalid backend client config")

	// ErrNetworkError is returned when the backend could not be reached or timed out
	ErrNetworkError = errors.New("network error")

	// ErrServerError is returned for 5xx responses once the retry budget is spent
	ErrServerError = errors.New("backend server error")

	// ErrClientError is returned for non-retryable 4xx responses
	ErrClientError = errors.New("backend rejected request")

	// ErrUnauthorized is returned for 401 responses; the credential is already cleared
	ErrUnauthorized = errors.New("unauthorized")
)

// Error is the normalized shape every backend failure is converted to.
type Error struct {
	Message string
	Status  int
	Data    json.RawMessage

	kind  error
	cause error
}

func (e *Error) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.kind, e.Message)
	}
	return fmt.Sprintf("%s (status %d): %s", e.kind, e.Status, e.Message)
}

// Unwrap exposes both the category sentinel and the transport cause.
func (e *Error) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	return StatusOf(err) == http.StatusNotFound
}

// MessageOf returns the backend-supplied message, or fallback.
func MessageOf(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func newStatusError(status int, body []byte) *Error {
	kind := ErrClientError
	switch {
	case status == http.StatusUnauthorized:
		kind = ErrUnauthorized
	case status >= 500:
		kind = ErrServerError
	}

	e := &Error{
		Message: extractMessage(body, http.StatusText(status)),
		Status:  status,
		kind:    kind,
	}
	if json.Valid(body) {
		e.Data = json.RawMessage(body)
	}
	return e
}

func newNetworkError(cause error) *Error {
	return &Error{
		Message: cause.Error(),
		kind:    ErrNetworkError,
		cause:   cause,
	}
}

// extractMessage reads message/error/msg from a JSON error payload.
func extractMessage(body []byte, fallback string) string {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return fallback
	}
	for _, key := range []string{"message", "error", "msg"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case map[string]interface{}:
			if m, ok := v["message"].(string); ok && m != "" {
				return m
			}
		}
	}
	return fallback
}
