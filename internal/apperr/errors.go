// Package apperr defines the error kinds shared by every domain package.
//
// Domain code returns *Error values (or sentinels built from them) and the
// transport layer only ever inspects the kind with errors.Is.
package apperr

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConflict          = errors.New("conflict")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrForbidden         = errors.New("forbidden")
	ErrInternal          = errors.New("internal error")
)

// Error carries the kind plus enough context to explain the rejection.
type Error struct {
	Kind    error
	Entity  string
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func New(kind error, entity, message string) *Error {
	return &Error{Kind: kind, Entity: entity, Message: message}
}

func Invalid(entity, field, reason string) *Error {
	return &Error{
		Kind:    ErrInvalidInput,
		Entity:  entity,
		Field:   field,
		Message: reason,
	}
}

// Kind reports which sentinel err resolves to. Unclassified errors are internal.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrInvalidInput, ErrConflict, ErrInsufficientStock, ErrForbidden} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrInternal
}
