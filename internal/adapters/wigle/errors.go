package wigle

import (
	"errors"
	"fmt"
)

// Kind classifies a failed API call.
type Kind int

// Failure kinds.
const (
	// KindTransport covers timeouts, connection failures and unreadable or
	// malformed response bodies.
	KindTransport Kind = iota
	// KindNotFound means the user or group does not exist.
	KindNotFound
	// KindHTTPStatus means the API answered with an unexpected status code.
	KindHTTPStatus
	// KindNoData means a 200 response lacked the expected payload.
	KindNoData
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not_found"
	case KindHTTPStatus:
		return "http_status"
	case KindNoData:
		return "no_data"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Client method that fails.
type Error struct {
	Kind Kind
	// Status is the HTTP status code for KindHTTPStatus, 0 otherwise.
	Status int
	// Message is the short user-facing text. It may be empty, in which case
	// callers fall back to their own wording.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("wigle: %s: %v", msg, e.Err)
	}
	return "wigle: " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels below, so errors.Is(err, ErrNotFound) works
// for any not-found error regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" || t.Err != nil || t.Status != 0 {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is.
var (
	ErrTransport  = &Error{Kind: KindTransport}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrHTTPStatus = &Error{Kind: KindHTTPStatus}
	ErrNoData     = &Error{Kind: KindNoData}
)

// Message returns the user-facing text carried by err, or fallback when err
// carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// KindOf returns the failure kind of err. Errors that did not come from this
// package are reported as KindTransport.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindTransport
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}

func notFound(msg string) *Error { return &Error{Kind: KindNotFound, Message: msg} }

func noData(msg string) *Error { return &Error{Kind: KindNoData, Message: msg} }

func httpStatus(code int) *Error {
	return &Error{Kind: KindHTTPStatus, Status: code, Message: fmt.Sprintf("HTTP error %d", code)}
}

func transport(err error) *Error {
	return &Error{Kind: KindTransport, Message: err.Error(), Err: err}
}
