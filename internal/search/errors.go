package search

import (
	"errors"
	"fmt"
)

// Failure kinds. Every error returned by Gateway.Execute matches exactly one of these
// with errors.Is.
var (
	// ErrTransport means the request could not be completed or the response could not
	// be decoded.
	ErrTransport = errors.New("transport error")
	// ErrClientRequest means the backend answered with a 4xx status.
	ErrClientRequest = errors.New("client error")
	// ErrBackendInternal means the backend answered with a 5xx status.
	ErrBackendInternal = errors.New("backend internal error")
	// ErrUnexpectedProtocol means the transport returned neither a response nor an error.
	ErrUnexpectedProtocol = errors.New("unexpected backend behavior")
)

// Error is a classified gateway failure.
type Error struct {
	Kind   error
	Status int
	Body   string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status > 0 && e.Body != "":
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, e.Body)
	case e.Status > 0:
		return fmt.Sprintf("%s (status %d)", e.Kind, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind.Error()
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err != nil {
		return []error{e.Kind, e.Err}
	}
	return []error{e.Kind}
}

// Kind names the failure kind of err for display and serialization.
// Returns "" for errors that did not come from the gateway.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, ErrClientRequest):
		return "client_request"
	case errors.Is(err, ErrBackendInternal):
		return "backend_internal"
	case errors.Is(err, ErrUnexpectedProtocol):
		return "unexpected_protocol"
	}
	return ""
}

func transportError(cause error) *Error {
	return &Error{Kind: ErrTransport, Err: cause}
}

// classifyStatus returns a status failure, or nil for a success status.
func classifyStatus(status int, body []byte) *Error {
	switch {
	case status >= 500:
		return &Error{Kind: ErrBackendInternal, Status: status, Body: string(body)}
	case status >= 400:
		return &Error{Kind: ErrClientRequest, Status: status, Body: string(body)}
	}
	return nil
}
