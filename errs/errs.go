package errs

import (
	"errors"
	"fmt"
)

// Kinds. Every error returned by the service layer unwraps to one of these.
var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
)

// Error carries a stable code next to its kind.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, code, format string, args ...any) *Error {
	return &Error{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return newError(ErrValidation, "E0001", format, args...)
}

func NotFound(format string, args ...any) *Error {
	return newError(ErrNotFound, "E0002", format, args...)
}

func InvalidState(format string, args ...any) *Error {
	return newError(ErrInvalidState, "E0003", format, args...)
}

func Conflict(format string, args ...any) *Error {
	return newError(ErrConflict, "E0004", format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return newError(ErrForbidden, "E0005", format, args...)
}

func Unauthorized(format string, args ...any) *Error {
	return newError(ErrUnauthorized, "E0006", format, args...)
}

// Common instances.
var (
	ErrReservationNotPending = InvalidState("reservation is not pending")
	ErrReservationNotActive  = InvalidState("reservation is not active")
	ErrProjectorInUse        = Conflict("projector is in use")
	ErrProjectorCode         = Conflict("could not generate a unique projector code")
	ErrNotAdmin              = Forbidden("admin role required")
	ErrDomainNotAllowed      = Forbidden("email domain not allowed")
	ErrSelfDemotion          = Validation("cannot revoke your own admin role")
)

// Kind returns the sentinel kind of err, or nil when err is not classified.
func Kind(err error) error {
	for _, k := range []error{ErrValidation, ErrNotFound, ErrForbidden, ErrInvalidState, ErrConflict, ErrUnauthorized} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
