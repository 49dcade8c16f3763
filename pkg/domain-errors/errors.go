// Package domainerrors provides coded domain errors for the vault engine.
//
// Services attach a Code so callers at the engine boundary can translate
// failures without string matching. Wrap preserves the cause chain for
// errors.Is/errors.As while stamping the outermost classification.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error.
type Code string

const (
	// CodeValidation: caller-supplied request shape or transform pipeline is
	// malformed. Nothing was persisted.
	CodeValidation Code = "validation"

	// CodeInvalidInput: a value failed parsing at a trust boundary.
	CodeInvalidInput Code = "invalid_input"

	// CodeBadRequest: the request is structurally fine but cannot be served
	// as asked.
	CodeBadRequest Code = "bad_request"

	// CodeNotFound: referenced vault, scoped vault or lifetime does not exist.
	CodeNotFound Code = "not_found"

	// CodePermissionDenied: the requested field is not visible to the
	// caller's tenant or version scope.
	CodePermissionDenied Code = "permission_denied"

	// CodeConflict: the operation lost to a concurrent writer.
	CodeConflict Code = "conflict"

	// CodeInvariantViolation: an internal precondition failed. Always a bug,
	// never a user error; aborts the enclosing transaction.
	CodeInvariantViolation Code = "invariant_violation"

	// CodeBoundary: the decrypt/fingerprint boundary RPC failed. Retryable
	// unless the payload itself was malformed.
	CodeBoundary Code = "boundary"

	// CodeUnavailable: a backing resource is temporarily unavailable.
	CodeUnavailable Code = "unavailable"

	// CodeInternal: everything else.
	CodeInternal Code = "internal"
)

// Error is a coded domain error.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New creates a coded error with a message.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap decorates err with a code and message. A nil err returns nil so call
// sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// HasCode reports whether any error in the chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// CodeOf returns the outermost code in the chain, or CodeInternal when the
// error was never classified.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is reports whether the outermost classification equals code. Prefer HasCode
// when a wrapped cause may carry the classification.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
