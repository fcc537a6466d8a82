package authclient

import (
	"errors"
	"fmt"
)

// Reason classifies every failure the client can report.
type Reason string

const (
	ReasonInvalidCredentials Reason = "invalid_credentials"
	ReasonConflict           Reason = "conflict"
	ReasonUnauthorized       Reason = "unauthorized"
	ReasonNetwork            Reason = "network"
	ReasonServerError        Reason = "server_error"
)

// Error is the only error type returned by Client methods.
type Error struct {
	Reason Reason
	// Message is the server-provided or locally derived human-readable text.
	Message string
	// StatusCode is the HTTP status, or 0 when no response was received.
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := string(e.Reason)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Reason, so the Err* sentinels can be
// used with errors.Is regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Reason == e.Reason
}

var (
	ErrInvalidCredentials = &Error{Reason: ReasonInvalidCredentials}
	ErrConflict           = &Error{Reason: ReasonConflict}
	ErrUnauthorized       = &Error{Reason: ReasonUnauthorized}
	ErrNetwork            = &Error{Reason: ReasonNetwork}
	ErrServerError        = &Error{Reason: ReasonServerError}
)

// ReasonOf extracts the Reason from err, or "" if err carries none.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}

// MessageOf returns the Message carried by err, or "".
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return ""
}

func newError(reason Reason, status int, format string, args ...any) *Error {
	return &Error{Reason: reason, StatusCode: status, Message: fmt.Sprintf(format, args...)}
}
