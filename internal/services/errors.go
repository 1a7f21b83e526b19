package services

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies service errors so transports can map them to status codes.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindForbidden
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindForbidden:
		return "forbidden"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is the error type returned by every service operation that fails
// for a reason the caller should know about.
type Error struct {
	Kind    Kind
	Message string
	// Fields names the offending input fields of a validation error.
	Fields []string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err. Errors that are not *Error are internal.
func KindOf(err error) Kind {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Kind
	}
	return KindInternal
}

// PublicMessage returns the message that is safe to show to clients.
func PublicMessage(err error) string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) && serviceErr.Kind != KindInternal {
		return serviceErr.Message
	}
	return "internal server error"
}

// FieldsOf returns the field names attached to a validation error.
func FieldsOf(err error) []string {
	var serviceErr *Error
	if errors.As(err, &serviceErr) {
		return serviceErr.Fields
	}
	return nil
}

func missingFields(fields []string) *Error {
	return &Error{
		Kind:    KindValidation,
		Message: "missing required fields: " + strings.Join(fields, ", "),
		Fields:  fields,
	}
}

func invalid(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

func forbidden(message string) *Error {
	return &Error{Kind: KindForbidden, Message: message}
}

func notFound(message string) *Error {
	return &Error{Kind: KindNotFound, Message: message}
}

func conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

func internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}
