package elink

import (
	"errors"
	"fmt"
)

// Kind classifies a failed exchange with the service.
type Kind int

const (
	KindServer Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not found"
	default:
		return "server"
	}
}

var (
	// ErrAPI matches every transport-level failure returned by a Client.
	ErrAPI = errors.New("elink api error")

	ErrUnauthorized = errors.New("elink: unauthorized")
	ErrForbidden    = errors.New("elink: forbidden")
	ErrNotFound     = errors.New("elink: record not found")
	ErrServer       = errors.New("elink: server error")
)

// APIError is returned for non-200 responses and for failed round trips.
// StatusCode is 0 when no response was received.
type APIError struct {
	Kind       Kind
	StatusCode int
	Message    string
	// Body holds a short excerpt of the response for diagnostics.
	Body string
	Err  error
}

func (e *APIError) Error() string {
	msg := "elink: " + e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s (response: %s)", msg, e.Body)
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrAPI and the sentinel for the error's Kind.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrAPI:
		return true
	case ErrUnauthorized:
		return e.Kind == KindUnauthorized
	case ErrForbidden:
		return e.Kind == KindForbidden
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrServer:
		return e.Kind == KindServer
	}
	return false
}

// StatusCode extracts the HTTP status from an *APIError chain, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
