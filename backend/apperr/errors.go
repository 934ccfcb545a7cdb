// Package apperr holds the error taxonomy shared by the access, enrollment,
// purchase and persistence layers. Handlers map these to HTTP statuses in
// utils.HandleError.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrValidation          = errors.New("validation failed")
	ErrDuplicateEnrollment = errors.New("user is already enrolled in this course")
	ErrSequenceViolation   = errors.New("previous lessons must be completed first")
	ErrInvalidTransition   = errors.New("invalid status transition")
)

// ValidationError reports a rejected field. It matches ErrValidation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid is shorthand for a *ValidationError.
func Invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// NotFound wraps ErrNotFound with the missing entity kind.
func NotFound(kind string) error {
	return fmt.Errorf("%s %w", kind, ErrNotFound)
}
