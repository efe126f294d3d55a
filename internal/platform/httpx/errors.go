package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/backoffice/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var fields *FieldErrors
	switch {
	case errors.As(err, &fields):
		writeProblem(w, ProblemDetail{
			Type:   "validation",
			Title:  "Validation Failed",
			Status: http.StatusBadRequest,
			Detail: err.Error(),
			Errors: fields.Fields,
		})
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrTransitionNotAllowed):
		typed(w, http.StatusConflict, "transition-not-allowed", "Transition Not Allowed", err)
	case errors.Is(err, shared.ErrDeletionNotAllowed):
		typed(w, http.StatusConflict, "deletion-not-allowed", "Deletion Not Allowed", err)
	case errors.Is(err, shared.ErrDocumentLocked):
		typed(w, http.StatusConflict, "document-locked", "Document Locked", err)
	case errors.Is(err, shared.ErrConcurrentModification):
		typed(w, http.StatusConflict, "concurrent-modification", "Concurrent Modification", err)
	case errors.Is(err, shared.ErrSequenceExhausted):
		typed(w, http.StatusServiceUnavailable, "sequence-exhausted", "Sequence Exhausted", err)
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

func typed(w http.ResponseWriter, status int, kind, title string, err error) {
	writeProblem(w, ProblemDetail{Type: kind, Title: title, Status: status, Detail: err.Error()})
}
