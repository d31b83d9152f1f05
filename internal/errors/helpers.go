package errors

import (
	"errors"
)

// lookup returns the outermost *Error in err's chain
func lookup(err error) *Error {
	var e *Error
	if err != nil && errors.As(err, &e) {
		return e
	}
	return nil
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Join combines errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// GetCode returns err's code: OK for nil, Internal for uncoded errors
func GetCode(err error) Code {
	if err == nil {
		return CodeOK
	}
	if e := lookup(err); e != nil {
		return e.Code
	}
	return CodeInternal
}

// GetReason returns the reason set with WithReason, or ""
func GetReason(err error) string {
	if e := lookup(err); e != nil {
		return e.Reason
	}
	return ""
}

// GetMeta returns the metadata attached to err
func GetMeta(err error) map[string]any {
	if e := lookup(err); e != nil {
		return e.Meta
	}
	return nil
}

// HasCode reports whether err carries code
func HasCode(err error, code Code) bool {
	return err != nil && GetCode(err) == code
}

// IsNotFound reports a NOT_FOUND error
func IsNotFound(err error) bool { return HasCode(err, CodeNotFound) }

// IsInvalidArgument reports an INVALID_ARGUMENT error
func IsInvalidArgument(err error) bool { return HasCode(err, CodeInvalidArgument) }

// IsAlreadyExists reports an ALREADY_EXISTS error
func IsAlreadyExists(err error) bool { return HasCode(err, CodeAlreadyExists) }

// IsFailedPrecondition reports a FAILED_PRECONDITION error
func IsFailedPrecondition(err error) bool { return HasCode(err, CodeFailedPrecondition) }

// IsResourceExhausted reports a RESOURCE_EXHAUSTED error
func IsResourceExhausted(err error) bool { return HasCode(err, CodeResourceExhausted) }

// IsAborted reports an ABORTED error
func IsAborted(err error) bool { return HasCode(err, CodeAborted) }

// IsCanceled reports a CANCELED error
func IsCanceled(err error) bool { return HasCode(err, CodeCanceled) }

// IsUnavailable reports an UNAVAILABLE error
func IsUnavailable(err error) bool { return HasCode(err, CodeUnavailable) }
