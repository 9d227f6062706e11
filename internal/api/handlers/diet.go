package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/core"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/extraction"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// --- Service Interfaces ---

// DietExtractor runs the extraction pipeline and reconciles the result into
// the owner's rule set.
type DietExtractor interface {
	ExtractAndApply(ctx context.Context, ownerID, rawText string) (*extraction.Outcome, error)
}

// ExtractionArchive reads persisted extraction audit records.
type ExtractionArchive interface {
	GetLatestByOwner(ctx context.Context, ownerID string) (*types.ExtractionRecord, error)
}

// OwnerRescheduler recomputes all scheduled occurrences for one owner.
type OwnerRescheduler interface {
	RescheduleOwner(ctx context.Context, ownerID string) (int, error)
}

// --- Request/Response Models ---

// ExtractRequest is the request body for POST /v1/users/{ownerID}/diet/extract.
type ExtractRequest struct {
	Text string `json:"text" validate:"required"`
}

// RescheduleResponse reports how many rules were rescheduled.
type RescheduleResponse struct {
	OwnerID     string `json:"owner_id"`
	Rescheduled int    `json:"rescheduled"`
}

// --- Handler ---

// DietHandler manages diet-text submission, extraction history, and owner
// rescheduling.
type DietHandler struct {
	extractor   DietExtractor
	archive     ExtractionArchive
	rescheduler OwnerRescheduler
	validator   *core.Validator
	logger      *slog.Logger
}

// NewDietHandler creates a DietHandler with the provided dependencies.
func NewDietHandler(
	extractor DietExtractor,
	archive ExtractionArchive,
	rescheduler OwnerRescheduler,
	v *core.Validator,
	l *slog.Logger,
) *DietHandler {
	if l == nil {
		l = slog.Default()
	}
	return &DietHandler{
		extractor:   extractor,
		archive:     archive,
		rescheduler: rescheduler,
		validator:   v,
		logger:      l,
	}
}

// RegisterRoutes mounts diet routes on the provided chi.Router.
func (h *DietHandler) RegisterRoutes(r chi.Router) {
	r.Route("/users/{ownerID}", func(r chi.Router) {
		r.Post("/diet/extract", h.Extract)
		r.Get("/diet/extractions/latest", h.LatestExtraction)
		r.Post("/reschedule", h.Reschedule)
	})
}

// --- Handler Methods ---

// Extract handles POST /v1/users/{ownerID}/diet/extract. It runs the full
// pipeline and replaces the owner's extraction-sourced rules with the result.
// Text that yields no activities is not an error: the response carries
// warnings explaining what could not be parsed.
func (h *DietHandler) Extract(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	var req ExtractRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	outcome, err := h.extractor.ExtractAndApply(r.Context(), ownerID, req.Text)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: outcome})
}

// LatestExtraction handles GET /v1/users/{ownerID}/diet/extractions/latest.
// The archived raw text is returned alongside the extraction summary.
func (h *DietHandler) LatestExtraction(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	rec, err := h.archive.GetLatestByOwner(r.Context(), ownerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: rec})
}

// Reschedule handles POST /v1/users/{ownerID}/reschedule. It cancels every
// live occurrence for the owner and recomputes one per active rule, all in a
// single transaction. Used after bulk changes or clock-policy adjustments.
func (h *DietHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	ownerID := chi.URLParam(r, "ownerID")

	n, err := h.rescheduler.RescheduleOwner(r.Context(), ownerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "owner rescheduled",
		"owner_id", ownerID,
		"rescheduled", n,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Data: RescheduleResponse{OwnerID: ownerID, Rescheduled: n},
	})
}
