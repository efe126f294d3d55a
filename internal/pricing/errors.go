package pricing

import (
	"fmt"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// ValidationError reports malformed input to a calculation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pricing: %s %s", e.Field, e.Reason)
}

// Is makes ValidationError match shared.ErrValidation.
func (e *ValidationError) Is(target error) bool {
	return target == shared.ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
