package access

import (
	"errors"
	"fmt"
	"time"
)

// Kind tags a classified failure.
type Kind string

const (
	KindUnauthorized      Kind = "UNAUTHORIZED"
	KindForbidden         Kind = "FORBIDDEN"
	KindNotFound          Kind = "NOT_FOUND"
	KindValidation        Kind = "VALIDATION_ERROR"
	KindRateLimitExceeded Kind = "RATE_LIMIT_EXCEEDED"
	KindServer            Kind = "SERVER_ERROR"
	KindTimeout           Kind = "TIMEOUT"
	KindNetwork           Kind = "NETWORK_ERROR"
	KindUnknown           Kind = "UNKNOWN_ERROR"
)

// Sentinels for errors.Is. They match any *Error of the same Kind.
var (
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrForbidden         = &Error{Kind: KindForbidden}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrRateLimitExceeded = &Error{Kind: KindRateLimitExceeded}
	ErrServer            = &Error{Kind: KindServer}
	ErrTimeout           = &Error{Kind: KindTimeout}
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrUnknown           = &Error{Kind: KindUnknown}
)

var fallbackMessages = map[Kind]string{
	KindUnauthorized:      "Your session has expired. Please log in again.",
	KindForbidden:         "You do not have permission to perform this action.",
	KindNotFound:          "The requested resource was not found.",
	KindValidation:        "The request was invalid.",
	KindRateLimitExceeded: "Too many requests. Please try again later.",
	KindServer:            "The server encountered an error. Please try again later.",
	KindTimeout:           "The request timed out.",
	KindNetwork:           "Unable to reach the server. Check your connection.",
	KindUnknown:           "An unexpected error occurred.",
}

// FallbackMessage returns the generic display message for kind.
func FallbackMessage(kind Kind) string {
	if msg, ok := fallbackMessages[kind]; ok {
		return msg
	}
	return fallbackMessages[KindUnknown]
}

// Error is a classified failure. It is built once per failed call and not
// modified afterwards.
type Error struct {
	// Message is suitable for display.
	Message string
	// Status is the HTTP status, 0 when no response was received.
	Status int
	Kind   Kind
	// Payload is the raw response body, if any.
	Payload []byte
	// RetryAfter is set for RATE_LIMIT_EXCEEDED when the server sent one.
	RetryAfter time.Duration
	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// AsError extracts the outermost *Error from err.
func AsError(err error) (*Error, bool) {
	var classified *Error
	if errors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// Wrap returns err unchanged when it is already classified. Anything else is
// wrapped into a new *Error of the given kind with message as its text.
func Wrap(err error, kind Kind, message string) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return &Error{
		Message: message,
		Kind:    kind,
		Err:     err,
	}
}

func newError(kind Kind, status int, message string, payload []byte, cause error) *Error {
	if message == "" {
		message = FallbackMessage(kind)
	}
	return &Error{
		Message: message,
		Status:  status,
		Kind:    kind,
		Payload: payload,
		Err:     cause,
	}
}
