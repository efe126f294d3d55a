package lifecycle

import (
	"fmt"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// TransitionError reports a refused status change.
type TransitionError struct {
	Document  string
	From      string
	To        string
	Condition string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: transition %s -> %s not allowed: %s", e.Document, e.From, e.To, e.Condition)
}

// Is makes TransitionError match shared.ErrTransitionNotAllowed.
func (e *TransitionError) Is(target error) bool {
	return target == shared.ErrTransitionNotAllowed
}

// DeletionError reports a delete attempted outside the initial status.
type DeletionError struct {
	Document string
	Status   string
}

func (e *DeletionError) Error() string {
	return fmt.Sprintf("%s: deletion not allowed in status %s", e.Document, e.Status)
}

// Is makes DeletionError match shared.ErrDeletionNotAllowed.
func (e *DeletionError) Is(target error) bool {
	return target == shared.ErrDeletionNotAllowed
}

// LockedError reports a content change after the document left its editable status.
type LockedError struct {
	Document string
	Status   string
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("%s: line items are immutable in status %s", e.Document, e.Status)
}

// Is makes LockedError match shared.ErrDocumentLocked.
func (e *LockedError) Is(target error) bool {
	return target == shared.ErrDocumentLocked
}
