package errors

import (
	"context"
	"errors"
	"fmt"
)

// Error is a coded failure. Reason is a short machine-readable tag such as
// "locked" or "busy" that survives wrapping.
type Error struct {
	Code    Code
	Message string
	Reason  string
	Meta    map[string]any
	cause   error
}

func (e *Error) Error() string {
	msg := string(e.Code) + ": " + e.Message
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the wrapped error, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	var t *Error
	return errors.As(target, &t) && t.Code == e.Code
}

// WithReason sets the machine-readable reason
func (e *Error) WithReason(reason string) *Error {
	e.Reason = reason
	return e
}

// WithMeta attaches a key/value for logs and callers
func (e *Error) WithMeta(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any, 1)
	}
	e.Meta[key] = value
	return e
}

// New returns an error with the given code
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func newf(code Code, format string, args []any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap adds context to err. A coded err keeps its code, reason and metadata;
// anything else becomes Internal.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	if inner := lookup(err); inner != nil {
		return inner.derive(inner.Code, message, err)
	}
	return &Error{Code: CodeInternal, Message: message, cause: err}
}

// Wrapf is Wrap with a formatted message
func Wrapf(err error, format string, args ...any) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps err under a new code, keeping any reason and metadata
func WrapWithCode(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	if inner := lookup(err); inner != nil {
		return inner.derive(code, message, err)
	}
	return &Error{Code: code, Message: message, cause: err}
}

func (e *Error) derive(code Code, message string, cause error) *Error {
	out := &Error{Code: code, Message: message, Reason: e.Reason, cause: cause}
	for k, v := range e.Meta {
		out.WithMeta(k, v)
	}
	return out
}

// FromContext maps a context error to Canceled or DeadlineExceeded.
// A nil ctxErr yields nil.
func FromContext(ctxErr error, message string) *Error {
	if ctxErr == nil {
		return nil
	}
	code := CodeCanceled
	if errors.Is(ctxErr, context.DeadlineExceeded) {
		code = CodeDeadlineExceeded
	}
	return WrapWithCode(ctxErr, code, message)
}

// NotFound creates a NOT_FOUND error
func NotFound(message string) *Error { return New(CodeNotFound, message) }

// NotFoundf creates a formatted NOT_FOUND error
func NotFoundf(format string, args ...any) *Error { return newf(CodeNotFound, format, args) }

// InvalidArgument creates an INVALID_ARGUMENT error
func InvalidArgument(message string) *Error { return New(CodeInvalidArgument, message) }

// InvalidArgumentf creates a formatted INVALID_ARGUMENT error
func InvalidArgumentf(format string, args ...any) *Error {
	return newf(CodeInvalidArgument, format, args)
}

// AlreadyExists creates an ALREADY_EXISTS error
func AlreadyExists(message string) *Error { return New(CodeAlreadyExists, message) }

// AlreadyExistsf creates a formatted ALREADY_EXISTS error
func AlreadyExistsf(format string, args ...any) *Error {
	return newf(CodeAlreadyExists, format, args)
}

// FailedPrecondition creates a FAILED_PRECONDITION error
func FailedPrecondition(message string) *Error { return New(CodeFailedPrecondition, message) }

// FailedPreconditionf creates a formatted FAILED_PRECONDITION error
func FailedPreconditionf(format string, args ...any) *Error {
	return newf(CodeFailedPrecondition, format, args)
}

// ResourceExhausted creates a RESOURCE_EXHAUSTED error
func ResourceExhausted(message string) *Error { return New(CodeResourceExhausted, message) }

// ResourceExhaustedf creates a formatted RESOURCE_EXHAUSTED error
func ResourceExhaustedf(format string, args ...any) *Error {
	return newf(CodeResourceExhausted, format, args)
}

// Aborted creates an ABORTED error
func Aborted(message string) *Error { return New(CodeAborted, message) }

// Canceled creates a CANCELED error
func Canceled(message string) *Error { return New(CodeCanceled, message) }

// Unavailable creates an UNAVAILABLE error
func Unavailable(message string) *Error { return New(CodeUnavailable, message) }

// Internal creates an INTERNAL error
func Internal(message string) *Error { return New(CodeInternal, message) }

// Internalf creates a formatted INTERNAL error
func Internalf(format string, args ...any) *Error { return newf(CodeInternal, format, args) }
