package requests

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for an unknown request or attachment
	ErrNotFound = errors.New("request not found")
	// ErrForbidden is returned when the actor may not perform the operation
	ErrForbidden = errors.New("operation not permitted")
)

// ValidationError reports a rejected input field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
