package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/core"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/dispatch"
)

// DuePoller runs one due-instance scan on demand.
type DuePoller interface {
	PollOnce(ctx context.Context) (dispatch.PollStats, error)
}

// OpsHandler exposes operational endpoints for manual intervention.
type OpsHandler struct {
	poller DuePoller
	logger *slog.Logger
}

// NewOpsHandler creates an OpsHandler.
func NewOpsHandler(poller DuePoller, l *slog.Logger) *OpsHandler {
	if l == nil {
		l = slog.Default()
	}
	return &OpsHandler{poller: poller, logger: l}
}

// RegisterRoutes mounts ops routes on the provided chi.Router.
func (h *OpsHandler) RegisterRoutes(r chi.Router) {
	r.Route("/ops", func(r chi.Router) {
		r.Post("/poll", h.Poll)
	})
}

// Poll handles POST /v1/ops/poll. It triggers an immediate due-instance scan
// and returns the dispatch counts. Intended for operators verifying delivery
// after an incident; the scheduler process remains the steady-state authority.
func (h *OpsHandler) Poll(w http.ResponseWriter, r *http.Request) {
	stats, err := h.poller.PollOnce(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "manual poll completed",
		"due", stats.Due,
		"sent", stats.Sent,
		"retried", stats.Retried,
		"failed", stats.Failed,
		"cancelled", stats.Cancelled,
	)

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: stats})
}
