package model

import (
	"errors"
	"fmt"
	"strings"
)

// Coordination errors. These are signals, not faults: a claim conflict
// means another worker won the conditional update and the caller should
// move on to the next candidate.
var (
	// ErrClaimConflict indicates a conditional claim or release write
	// matched zero rows — the job was taken, released, or changed by
	// another worker between selection and write.
	ErrClaimConflict = errors.New("claim conflict: job no longer available")

	// ErrJobNotFound indicates the referenced job does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrUnknownJobType indicates no handler is registered for a job's type.
	ErrUnknownJobType = errors.New("unknown job type")
)

// FieldError reports a validation failure on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError aggregates field errors for one entity.
type ValidationError struct {
	Errors []FieldError
}

// NewValidationError wraps field errors into a single error value.
func NewValidationError(errs []FieldError) *ValidationError {
	return &ValidationError{Errors: errs}
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	parts := make([]string, 0, len(v.Errors))
	for _, fe := range v.Errors {
		parts = append(parts, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
