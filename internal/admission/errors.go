package admission

import (
	"errors"
	"fmt"

	"wifi-admission-backend/internal/model"
)

var (
	// ErrValidation is wrapped by every ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when the subscription, plan or device does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyDecided is wrapped by every PreconditionError.
	ErrAlreadyDecided = errors.New("already decided")
)

// ValidationError reports a malformed request. Nothing was written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// PreconditionError reports that a subscription was not in the status the
// operation requires, usually because another admin acted on it first.
type PreconditionError struct {
	ID   int64
	Want model.Status
	Got  model.Status
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("subscription %d is %s, expected %s", e.ID, e.Got, e.Want)
}

func (e *PreconditionError) Unwrap() error { return ErrAlreadyDecided }
