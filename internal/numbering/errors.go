package numbering

import (
	"errors"
	"fmt"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// ErrConflict is returned by a Store when allocation lost a race and may be retried.
var ErrConflict = errors.New("numbering: allocation conflict")

// ErrNumberTaken is returned by a writer whose issued number is already
// stored, e.g. by an import that bypassed the generator.
var ErrNumberTaken = fmt.Errorf("numbering: number already taken: %w", shared.ErrSequenceExhausted)

// ExhaustedError reports that no unique number could be allocated.
type ExhaustedError struct {
	Scope    string
	Attempts int
	Last     int64
	Reason   string
}

func (e *ExhaustedError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("numbering: scope %s: %s after %d attempts", e.Scope, e.Reason, e.Attempts)
	}
	return fmt.Sprintf("numbering: scope %s: %s", e.Scope, e.Reason)
}

// Is makes ExhaustedError match shared.ErrSequenceExhausted.
func (e *ExhaustedError) Is(target error) bool {
	return target == shared.ErrSequenceExhausted
}
