package model

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	KindUnknown Kind = iota
	ConfigurationMissing
	TransportFailure
	UpstreamError
	ParseFailure
	ValidationFailure
	NotFound
)

func (k Kind) String() string {
	switch k {
	case ConfigurationMissing:
		return "configuration_missing"
	case TransportFailure:
		return "transport_failure"
	case UpstreamError:
		return "upstream_error"
	case ParseFailure:
		return "parse_failure"
	case ValidationFailure:
		return "validation_failure"
	case NotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

// Error is the single error type crossing component boundaries.
// Message is shown to the user as is.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// NewError creates an Error without an underlying cause.
func NewError(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// WrapError creates an Error that keeps the underlying cause.
func WrapError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf reports the Kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}
