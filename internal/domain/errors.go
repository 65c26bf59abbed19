package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation is returned when a request is missing or has malformed fields.
	ErrValidation = errors.New("validation failed")
	// ErrAlreadyFinalized is returned when a participant has already left the active state.
	// It is an expected outcome, not a fault.
	ErrAlreadyFinalized = errors.New("participant already finished the quiz")
	// ErrNotFound is the parent of every not-found error.
	ErrNotFound = errors.New("not found")
	// ErrParticipantNotFound is returned when a participant id has never logged in.
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	// ErrQuestionNotFound indicates the question bank is empty or a question id is unknown.
	ErrQuestionNotFound = fmt.Errorf("question %w", ErrNotFound)
	// ErrStorage marks transient persistence failures; callers may retry.
	ErrStorage = errors.New("storage unavailable")
	// ErrUnauthorized is returned for missing or invalid admin credentials.
	ErrUnauthorized = errors.New("unauthorized")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Invalid builds a ValidationError.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// StorageError wraps a driver error so it matches ErrStorage.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}

// StorageFault wraps err as a StorageError. It returns nil for a nil err.
func StorageFault(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}
