package numbering

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/backoffice/internal/platform/httpx"
)

// Handler exposes ad-hoc number allocation for operators and importers.
type Handler struct {
	logger    *slog.Logger
	generator *Generator
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, generator *Generator) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, generator: generator}
}

// MountRoutes registers numbering routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/numbers/{kind}", h.next)
}

type issued struct {
	Kind   Kind   `json:"kind"`
	Number string `json:"number"`
}

func (h *Handler) next(w http.ResponseWriter, r *http.Request) {
	kind := Kind(chi.URLParam(r, "kind"))
	number, err := h.generator.Next(r.Context(), kind)
	if err != nil {
		h.logger.Warn("issue number", slog.String("kind", string(kind)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, issued{Kind: kind, Number: number})
}
