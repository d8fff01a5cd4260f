package primitive

import (
	"errors"
	"fmt"
)

// Registry and execution errors. All are terminal, reported outcomes;
// nothing in the runtime retries automatically.
var (
	// ErrConflict is returned when a primitive name is already taken.
	ErrConflict = errors.New("primitive name already exists")

	// ErrNotFound is returned when no primitive matches an id or name.
	ErrNotFound = errors.New("primitive not found")

	// ErrImmutable is returned on any attempt to update or delete a
	// built-in primitive.
	ErrImmutable = errors.New("built-in primitive cannot be modified")

	// ErrTimeout is returned when a handler exceeds its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrNotApproved is returned when the permission gate declines an
	// invocation before it reaches the runtime.
	ErrNotApproved = errors.New("invocation not approved")
)

// ValidationError reports a handler-safety or schema rejection. It
// always names the offending pattern so callers can surface exactly
// what was rejected.
type ValidationError struct {
	Pattern string // the blacklist pattern or schema rule that matched
	Detail  string // human-readable context
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("validation failed: %s", e.Pattern)
	}
	return fmt.Sprintf("validation failed: %s (%s)", e.Pattern, e.Detail)
}

// NewValidationError builds a ValidationError for the given pattern.
func NewValidationError(pattern, detail string) *ValidationError {
	return &ValidationError{Pattern: pattern, Detail: detail}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
