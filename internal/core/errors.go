package core

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when an account, category, record or snapshot
	// id does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvariantViolation is returned when a record is removed from a
	// snapshot that does not reference it.
	ErrInvariantViolation = errors.New("ledger invariant violation")
	ErrValidation         = errors.New("validation failed")
	ErrConflict           = errors.New("conflict")
	ErrForbidden          = errors.New("forbidden")
)

// ValidationError carries every problem found in a request.
type ValidationError struct {
	Problems []string
}

func NewValidationError(problems ...string) *ValidationError {
	return &ValidationError{Problems: problems}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Problems returns the validation messages of err, or nil when err is not a
// validation error.
func Problems(err error) []string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Problems
	}
	return nil
}
