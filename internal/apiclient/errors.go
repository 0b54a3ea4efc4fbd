package apiclient

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies request failures into the small set of outcomes
// callers act on.
type ErrorKind int

const (
	// KindNotFound means the target resource or one of its ancestors does
	// not exist (HTTP 404).
	KindNotFound ErrorKind = iota
	// KindInvalidInput means the backend rejected the payload (HTTP 400).
	KindInvalidInput
	// KindServerUnavailable covers every other failure: non-success status,
	// transport error, timeout, or an undecodable response body.
	KindServerUnavailable
)

// String returns the string representation of the error kind
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidInput:
		return "invalid_input"
	case KindServerUnavailable:
		return "server_unavailable"
	default:
		return "unknown"
	}
}

// APIError is the typed error returned by every client operation
type APIError struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 for transport failures
	Message string // server-provided detail when available
	Err     error  // underlying cause, if any
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// errorFromStatus maps a non-success HTTP status to the error taxonomy
func errorFromStatus(status int, message string) *APIError {
	kind := KindServerUnavailable
	switch status {
	case http.StatusNotFound:
		kind = KindNotFound
	case http.StatusBadRequest:
		kind = KindInvalidInput
	}
	return &APIError{
		Kind:    kind,
		Status:  status,
		Message: message,
	}
}

// transportError wraps a failure that never produced an HTTP status
func transportError(err error) *APIError {
	return &APIError{
		Kind: KindServerUnavailable,
		Err:  err,
	}
}

// IsNotFound reports whether err is an APIError with KindNotFound
func IsNotFound(err error) bool {
	return hasKind(err, KindNotFound)
}

// IsInvalidInput reports whether err is an APIError with KindInvalidInput
func IsInvalidInput(err error) bool {
	return hasKind(err, KindInvalidInput)
}

// IsServerUnavailable reports whether err is an APIError with KindServerUnavailable
func IsServerUnavailable(err error) bool {
	return hasKind(err, KindServerUnavailable)
}

func hasKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}
