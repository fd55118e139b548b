package routing

import (
	"errors"
	"fmt"

	"caretransport/dispatch/internal/constants"
)

// Kind classifies route engine errors for the transport layer
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindInvalidState
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state_transition"
	case KindValidation:
		return "validation_failure"
	}
	return "unknown"
}

// Error is the typed error returned by the route engine
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on code so sentinel errors compare equal to detailed copies
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func newError(kind Kind, code string, detail string) *Error {
	msg := constants.GetRouteErrorMessage(code)
	if detail != "" {
		msg = msg + " (" + detail + ")"
	}
	return &Error{Kind: kind, Code: code, Message: msg}
}

// NotFound builds a NotFound error for code, with optional detail
func NotFound(code string, detail string) *Error {
	return newError(KindNotFound, code, detail)
}

// InvalidState builds an InvalidStateTransition error
func InvalidState(code string, detail string) *Error {
	return newError(KindInvalidState, code, detail)
}

// Validation builds a ValidationFailure error
func Validation(code string, detail string) *Error {
	return newError(KindValidation, code, detail)
}

var (
	ErrCannotExecuteCancelledStop = InvalidState(constants.ErrCodeCannotExecuteCancelledStop, "")
	ErrStopAlreadyExecuted        = InvalidState(constants.ErrCodeStopAlreadyExecuted, "")
	ErrReorderSetMismatch         = Validation(constants.ErrCodeReorderSetMismatch, "")
)

// KindOf returns the kind of a route engine error, or 0 for foreign errors
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsInvalidState(err error) bool { return KindOf(err) == KindInvalidState }
func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
