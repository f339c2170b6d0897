package pipeline

import "fmt"

// Kind tags a conversion failure for clients and for HTTP status mapping.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindEngineUnavailable   Kind = "engine_unavailable"
	KindRasterizationFailed Kind = "rasterization_failed"
	KindNoPagesProduced     Kind = "no_pages_produced"
	KindAllPagesFailed      Kind = "all_pages_failed"
)

// Error is a conversion failure with a client-safe message. The cause, when
// present, stays in the chain for server-side logging and is never rendered
// to the client.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func wrapError(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, cause: cause}
}
