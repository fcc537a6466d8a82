package session

import (
	"context"
	"errors"

	"github.com/jmcleod/fitx/authclient"
)

// ReasonAlreadyInProgress is reported locally when an authentication
// attempt is rejected because another is in flight.
const ReasonAlreadyInProgress authclient.Reason = "already_in_progress"

var (
	// ErrAlreadyInProgress rejects a concurrent login, register or verify.
	ErrAlreadyInProgress = &authclient.Error{Reason: ReasonAlreadyInProgress, Message: "an authentication attempt is already in progress"}
	// ErrNotAuthenticated is returned by Do when there is no session.
	ErrNotAuthenticated = &authclient.Error{Reason: authclient.ReasonUnauthorized, Message: "not authenticated"}
	// ErrSuperseded is returned when a Logout overtook the operation.
	ErrSuperseded = errors.New("session: operation superseded")
	// ErrClosed is returned once the authority has been torn down.
	ErrClosed = errors.New("session: authority closed")
)

// User-facing messages stored in Snapshot.LastError.
const (
	MsgInvalidCredentials = "Invalid email or password"
	MsgConflict           = "An account with this email already exists"
	MsgSessionExpired     = "Your session has expired. Please log in again."
	MsgNetwork            = "Unable to connect to server. Check if backend is running."
	MsgServerError        = "Something went wrong. Please try again."
	MsgAdminNotPermitted  = "Registration as admin was not permitted"
	MsgRoleMismatch       = "Registered role does not match the requested role"
)

// normalize guarantees err carries a Reason.
func normalize(err error) error {
	if err == nil || authclient.ReasonOf(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &authclient.Error{Reason: authclient.ReasonNetwork, Message: "request timed out", Err: err}
	}
	if errors.Is(err, context.Canceled) {
		return &authclient.Error{Reason: authclient.ReasonNetwork, Message: "request canceled", Err: err}
	}
	return &authclient.Error{Reason: authclient.ReasonServerError, Err: err}
}

// messageFor derives the LastError text for a normalized failure.
func messageFor(err error) string {
	var e *authclient.Error
	if !errors.As(err, &e) {
		return MsgServerError
	}
	switch e.Reason {
	case authclient.ReasonInvalidCredentials:
		return MsgInvalidCredentials
	case authclient.ReasonConflict:
		if e.Message != "" {
			return e.Message
		}
		return MsgConflict
	case authclient.ReasonUnauthorized:
		if e.Message != "" {
			return e.Message
		}
		return MsgSessionExpired
	case authclient.ReasonNetwork:
		return MsgNetwork
	default:
		// Only surface text the server actually sent.
		if e.StatusCode != 0 && e.Message != "" {
			return e.Message
		}
		return MsgServerError
	}
}
