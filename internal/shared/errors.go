package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input rejected before any state change.
	ErrValidation = errors.New("validation failed")
	// ErrTransitionNotAllowed indicates a status change whose guard failed.
	ErrTransitionNotAllowed = errors.New("transition not allowed")
	// ErrDeletionNotAllowed indicates a delete outside the initial status.
	ErrDeletionNotAllowed = errors.New("deletion not allowed")
	// ErrDocumentLocked indicates a line-item mutation after the document left its editable status.
	ErrDocumentLocked = errors.New("document locked")
	// ErrConcurrentModification indicates a failed optimistic-concurrency check.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrSequenceExhausted indicates the numbering generator could not allocate a unique number.
	ErrSequenceExhausted = errors.New("sequence exhausted or conflicting")
)
