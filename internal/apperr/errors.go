// Package apperr defines the error kinds surfaced to users. Every failure a
// component reports is one of these kinds with a single human-readable
// message; raw backend errors stay wrapped inside and are never displayed.
package apperr

import (
	"context"
	"errors"
	"net"

	"github.com/iliyamo/student-stay/internal/backend"
)

// Kind classifies a failure.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindAuthentication
	KindAuthorization
	KindNotFound
	KindConflict
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Error is the normalized kind/message pair.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.Err }

func Validation(msg string) *Error { return &Error{Kind: KindValidation, Message: msg} }

func Authentication(msg string, err error) *Error {
	return &Error{Kind: KindAuthentication, Message: msg, Err: err}
}

func Authorization(msg string) *Error { return &Error{Kind: KindAuthorization, Message: msg} }

func NotFound(msg string, err error) *Error { return &Error{Kind: KindNotFound, Message: msg, Err: err} }

func Conflict(msg string, err error) *Error { return &Error{Kind: KindConflict, Message: msg, Err: err} }

func Transient(err error) *Error {
	return &Error{Kind: KindTransient, Message: "service unavailable, please try again", Err: err}
}

// KindOf reports the kind of err, or 0 when err is not an *Error.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return 0
}

// Is reports whether err carries kind k.
func Is(err error, k Kind) bool { return KindOf(err) == k }

// Normalize converts an arbitrary error returned by a backend call into an
// *Error. Errors that are already normalized pass through unchanged; anything
// unrecognised is treated as transient.
func Normalize(err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	var netErr net.Error
	switch {
	case errors.Is(err, backend.ErrInvalidCredentials):
		return Authentication("incorrect email or password", err)
	case errors.Is(err, backend.ErrOtpInvalid):
		return Authentication("the code is invalid or has expired", err)
	case errors.Is(err, backend.ErrOtpSession):
		return Authentication("no active verification session, request a new code", err)
	case errors.Is(err, backend.ErrForbidden):
		return &Error{Kind: KindAuthorization, Message: "access required", Err: err}
	case errors.Is(err, backend.ErrNotFound):
		return NotFound("not found", err)
	case errors.Is(err, backend.ErrNotPending):
		return NotFound("listing already processed", err)
	case errors.Is(err, backend.ErrEmailExists):
		return Conflict("an account with this email already exists", err)
	case errors.Is(err, backend.ErrPhoneExists):
		return Conflict("this phone number is already registered", err)
	case errors.Is(err, backend.ErrInvalidInput):
		return &Error{Kind: KindValidation, Message: "invalid input", Err: err}
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr):
		return Transient(err)
	}
	return Transient(err)
}

// ErrInFlight is returned when an action is triggered again while the same
// action is still waiting on the backend. The second trigger is ignored.
var ErrInFlight = errors.New("operation already in progress")

// LoginRequiredError tells the caller to send the user to sign in. The
// destination they were trying to reach has already been remembered.
type LoginRequiredError struct {
	Destination string
}

func (e *LoginRequiredError) Error() string { return "sign in required" }
