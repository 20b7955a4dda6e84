package experiment

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition means the requested lifecycle action is not
	// legal from the test's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrTestNotActive means counters were mutated while the test was not
	// accepting traffic.
	ErrTestNotActive = errors.New("test is not active")

	// ErrInvariant means a counter mutation would break the aggregate's
	// invariants (e.g. conversions exceeding impressions).
	ErrInvariant = errors.New("invariant violation")

	// ErrVariantNotFound means the referenced variant does not belong to
	// the test.
	ErrVariantNotFound = errors.New("variant not found")
)

// ValidationError reports a malformed test configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func validationErr(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
