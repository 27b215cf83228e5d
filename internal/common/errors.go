package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Pipeline error taxonomy. Handling policy per class:
// validation -> skip, no retry; provider -> fail the job (categorization may
// fall back instead); persistence -> log and abandon, redelivery recovers;
// notification -> log only, never escalated.
var (
	ErrValidation   = errors.New("validation failed")
	ErrProvider     = errors.New("provider call failed")
	ErrPersistence  = errors.New("persistence failed")
	ErrNotification = errors.New("notification failed")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func ValidationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func ProviderError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrProvider, op, cause)
}

func PersistenceError(op string, cause error) error {
	return fmt.Errorf("%w: %s: %w", ErrPersistence, op, cause)
}

func NotificationError(cause error) error {
	return fmt.Errorf("%w: %w", ErrNotification, cause)
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
