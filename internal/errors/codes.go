package errors

// Code classifies a failure so callers can branch without matching messages
type Code string

// Codes used by the dungeon packages
const (
	CodeOK                 Code = "OK"
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeAlreadyExists      Code = "ALREADY_EXISTS"
	CodeFailedPrecondition Code = "FAILED_PRECONDITION"
	CodeResourceExhausted  Code = "RESOURCE_EXHAUSTED"
	CodeAborted            Code = "ABORTED"
	CodeCanceled           Code = "CANCELED"
	CodeDeadlineExceeded   Code = "DEADLINE_EXCEEDED"
	CodeUnavailable        Code = "UNAVAILABLE"
	CodeInternal           Code = "INTERNAL"
)

// retryable lists the codes whose operation may succeed when repeated with
// the same input: a busy transition, a storage outage, a timeout.
var retryable = map[Code]bool{
	CodeAborted:          true,
	CodeUnavailable:      true,
	CodeDeadlineExceeded: true,
}

func (c Code) String() string {
	return string(c)
}

// Retryable reports whether the caller may simply try again
func (c Code) Retryable() bool {
	return retryable[c]
}
