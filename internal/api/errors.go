package api

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an API failure.
type ErrorKind string

const (
	// KindTransport means no HTTP response was obtained (dial, TLS, timeout).
	KindTransport ErrorKind = "transport"
	// KindUnauthorized is a 401; callers treat it as a stale or revoked session.
	KindUnauthorized ErrorKind = "unauthorized"
	// KindRateLimited is a 429 from the service's flood protection.
	KindRateLimited ErrorKind = "rate_limited"
	// KindServerError covers 5xx responses.
	KindServerError ErrorKind = "server_error"
	// KindMalformed covers other 4xx responses and unparsable success bodies.
	KindMalformed ErrorKind = "malformed"
)

// APIError is the only error type the client returns for remote failures.
// Message is user-presentable; the wrapped cause keeps transport detail for logs.
type APIError struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	err        error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.err
}

// kindForStatus maps an HTTP status to an error kind.
func kindForStatus(code int) ErrorKind {
	switch {
	case code == 401:
		return KindUnauthorized
	case code == 429:
		return KindRateLimited
	case code >= 500:
		return KindServerError
	default:
		return KindMalformed
	}
}

func transportError(op string, err error) *APIError {
	return &APIError{
		Kind:    KindTransport,
		Message: fmt.Sprintf("%s: no response from service", op),
		err:     err,
	}
}

func statusError(code int, detail string) *APIError {
	if detail == "" {
		detail = fmt.Sprintf("request failed with status %d", code)
	}
	return &APIError{
		Kind:       kindForStatus(code),
		Message:    detail,
		StatusCode: code,
	}
}

func malformedError(op string, err error) *APIError {
	return &APIError{
		Kind:    KindMalformed,
		Message: fmt.Sprintf("%s: unreadable response", op),
		err:     err,
	}
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}

// IsUnauthorized reports whether err is a 401-class APIError. Session owners
// use it to force a local logout.
func IsUnauthorized(err error) bool {
	return IsKind(err, KindUnauthorized)
}
