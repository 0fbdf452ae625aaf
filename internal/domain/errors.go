package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrActivityNotFound is returned when an activity cannot be located.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrNotOwner is returned when the caller does not own the target activity.
	ErrNotOwner = errors.New("user not authorized")
	// ErrValidation marks input rejected before or by the store.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence marks a generic store failure.
	ErrPersistence = errors.New("persistence failure")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Is lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// PersistenceError wraps an error returned by the record store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrPersistence) match.
func (e *PersistenceError) Is(target error) bool {
	return target == ErrPersistence
}

// wrapStoreErr passes domain sentinels through and wraps everything else.
func wrapStoreErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrActivityNotFound) || errors.Is(err, ErrValidation) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
