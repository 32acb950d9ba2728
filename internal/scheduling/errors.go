package scheduling

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindValidation        ErrorKind = "ValidationError"
	KindConflict          ErrorKind = "ConflictError"
	KindOutOfWindow       ErrorKind = "OutOfWindowError"
	KindInvalidTransition ErrorKind = "InvalidTransitionError"
	KindNotFound          ErrorKind = "NotFoundError"
	KindAuthorization     ErrorKind = "AuthorizationError"
)

// Error is the typed failure every operation returns to its caller.
// Context carries structured details for the caller, not for logging.
type Error struct {
	Kind    ErrorKind
	Message string
	Context map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, msg string, kv ...any) *Error {
	e := &Error{Kind: kind, Message: msg}
	if len(kv) > 0 {
		e.Context = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			key, ok := kv[i].(string)
			if !ok {
				key = fmt.Sprint(kv[i])
			}
			e.Context[key] = kv[i+1]
		}
	}
	return e
}

func ErrValidation(msg string, kv ...any) *Error {
	return newError(KindValidation, msg, kv...)
}

func ErrConflict(msg string, kv ...any) *Error {
	return newError(KindConflict, msg, kv...)
}

func ErrOutOfWindow(msg string, kv ...any) *Error {
	return newError(KindOutOfWindow, msg, kv...)
}

func ErrInvalidTransition(msg string, kv ...any) *Error {
	return newError(KindInvalidTransition, msg, kv...)
}

func ErrNotFound(msg string, kv ...any) *Error {
	return newError(KindNotFound, msg, kv...)
}

func ErrAuthorization(msg string, kv ...any) *Error {
	return newError(KindAuthorization, msg, kv...)
}

// KindOf extracts the error kind, or "" for untyped (infrastructure) errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
