package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/prudhvinik1/weddingsync/internal/validation"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("forbidden")
)

// ValidationError is returned when a request is rejected before anything is
// written.
type ValidationError struct {
	Message    string
	Violations []validation.Violation
}

func (e *ValidationError) Error() string {
	return e.Message
}

// newValidationError converts the result of validation.ValidateStruct.
func newValidationError(err error) error {
	var structErr *validation.StructError
	if errors.As(err, &structErr) {
		return &ValidationError{
			Message: "invalid request: " + strings.Join(lo.Map(structErr.Violations, func(v validation.Violation, _ int) string {
				return v.Description
			}), "; "),
			Violations: structErr.Violations,
		}
	}
	return &ValidationError{Message: "invalid request: " + err.Error()}
}

// StorageError wraps a failure of the durable store. Err carries the driver
// detail and is only logged.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
