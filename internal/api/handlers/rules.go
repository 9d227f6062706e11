// Package handlers contains the HTTP handler implementations for the diet
// reminder API. Each handler depends on narrow, locally defined interfaces so
// tests can inject fakes without touching the database or scheduler.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/RehanTaneja/Nutricious4u-sub002/internal/core"
	"github.com/RehanTaneja/Nutricious4u-sub002/internal/types"
)

// sourceManual marks rules created through the CRUD API, as opposed to rules
// produced by diet-text extraction. Extraction reconciliation never deletes
// manual rules.
const sourceManual = "manual"

// --- Service Interfaces ---

// RuleReader provides read access to persisted rules.
type RuleReader interface {
	GetByID(ctx context.Context, ownerID, id string) (*types.NotificationRule, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*types.NotificationRule, error)
}

// RuleLifecycle applies rule mutations transactionally with respect to the
// rule's scheduled instances. Implemented by the lifecycle manager.
type RuleLifecycle interface {
	Create(ctx context.Context, rule *types.NotificationRule) error
	Update(ctx context.Context, rule *types.NotificationRule) error
	Delete(ctx context.Context, ownerID, ruleID string) error
	SetActive(ctx context.Context, ownerID, ruleID string, active bool) (*types.NotificationRule, error)
}

// InstanceReader lists a rule's occurrence history.
type InstanceReader interface {
	ListByRule(ctx context.Context, ownerID, ruleID string, limit int) ([]*types.ScheduledInstance, error)
}

// --- Request/Response Models ---

// CreateRuleRequest is the request body for POST /v1/rules.
type CreateRuleRequest struct {
	OwnerID  string   `json:"owner_id" validate:"required"`
	Message  string   `json:"message" validate:"required,max=500"`
	Hour     int      `json:"hour" validate:"min=0,max=23"`
	Minute   int      `json:"minute" validate:"min=0,max=59"`
	Days     []string `json:"days" validate:"required,min=1,max=7"`
	IsActive *bool    `json:"is_active,omitempty"`
}

// UpdateRuleRequest is the request body for PUT /v1/rules/{id}. ConfigVersion
// must carry the version the client last read; a mismatch returns 409.
type UpdateRuleRequest struct {
	OwnerID       string   `json:"owner_id" validate:"required"`
	Message       string   `json:"message" validate:"required,max=500"`
	Hour          int      `json:"hour" validate:"min=0,max=23"`
	Minute        int      `json:"minute" validate:"min=0,max=59"`
	Days          []string `json:"days" validate:"required,min=1,max=7"`
	IsActive      bool     `json:"is_active"`
	ConfigVersion int      `json:"config_version" validate:"required,min=1"`
}

// RuleDetail is the wire representation of a rule. It exposes the config
// version clients need for optimistic concurrency on updates.
type RuleDetail struct {
	*types.NotificationRule
	ConfigVersion int `json:"config_version"`
}

func ruleDetail(rule *types.NotificationRule) RuleDetail {
	return RuleDetail{NotificationRule: rule, ConfigVersion: rule.ConfigVersion}
}

func ruleDetails(rules []*types.NotificationRule) []RuleDetail {
	out := make([]RuleDetail, len(rules))
	for i, r := range rules {
		out[i] = ruleDetail(r)
	}
	return out
}

// --- Handler ---

// RuleHandler manages reminder rule CRUD and activation lifecycle.
type RuleHandler struct {
	rules     RuleReader
	lifecycle RuleLifecycle
	instances InstanceReader
	validator *core.Validator
	logger    *slog.Logger
}

// NewRuleHandler creates a RuleHandler with the provided dependencies.
func NewRuleHandler(
	rules RuleReader,
	lifecycle RuleLifecycle,
	instances InstanceReader,
	v *core.Validator,
	l *slog.Logger,
) *RuleHandler {
	if l == nil {
		l = slog.Default()
	}
	return &RuleHandler{
		rules:     rules,
		lifecycle: lifecycle,
		instances: instances,
		validator: v,
		logger:    l,
	}
}

// RegisterRoutes mounts rule routes on the provided chi.Router.
func (h *RuleHandler) RegisterRoutes(r chi.Router) {
	r.Route("/rules", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Get("/", h.List)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.Get)
			r.Put("/", h.Update)
			r.Delete("/", h.Delete)
			r.Post("/activate", h.Activate)
			r.Post("/deactivate", h.Deactivate)
			r.Get("/instances", h.ListInstances)
		})
	})
}

// --- Handler Methods ---

// Create handles POST /v1/rules. Active rules get their first scheduled
// occurrence in the same transaction as the rule write.
func (h *RuleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRuleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	days, err := parseDays(req.Days)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	active := true
	if req.IsActive != nil {
		active = *req.IsActive
	}

	rule := &types.NotificationRule{
		OwnerID:      req.OwnerID,
		Message:      req.Message,
		Time:         types.TimeOfDay{Hour: req.Hour, Minute: req.Minute},
		SelectedDays: days,
		IsActive:     active,
		Source:       sourceManual,
	}

	if err := h.lifecycle.Create(r.Context(), rule); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusCreated, core.APIResponse{Data: ruleDetail(rule)})
}

// Get handles GET /v1/rules/{id}?owner_id=...
func (h *RuleHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requireOwnerParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rule, err := h.rules.GetByID(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ruleDetail(rule)})
}

// List handles GET /v1/rules?owner_id=...
func (h *RuleHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requireOwnerParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rules, err := h.rules.ListByOwner(r.Context(), ownerID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ruleDetails(rules)})
}

// Update handles PUT /v1/rules/{id}. The write is conditional on the config
// version the client read; the live instance is cancelled and recomputed
// atomically with the rule change.
func (h *RuleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateRuleRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	days, err := parseDays(req.Days)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rule := &types.NotificationRule{
		ID:            chi.URLParam(r, "id"),
		OwnerID:       req.OwnerID,
		Message:       req.Message,
		Time:          types.TimeOfDay{Hour: req.Hour, Minute: req.Minute},
		SelectedDays:  days,
		IsActive:      req.IsActive,
		Source:        sourceManual,
		ConfigVersion: req.ConfigVersion,
	}

	if err := h.lifecycle.Update(r.Context(), rule); err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ruleDetail(rule)})
}

// Delete handles DELETE /v1/rules/{id}?owner_id=...
func (h *RuleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requireOwnerParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	if err := h.lifecycle.Delete(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		core.Error(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Activate handles POST /v1/rules/{id}/activate.
func (h *RuleHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// Deactivate handles POST /v1/rules/{id}/deactivate.
func (h *RuleHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *RuleHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	ownerID, err := requireOwnerParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	rule, err := h.lifecycle.SetActive(r.Context(), ownerID, chi.URLParam(r, "id"), active)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: ruleDetail(rule)})
}

// ListInstances handles GET /v1/rules/{id}/instances?owner_id=...&limit=N
func (h *RuleHandler) ListInstances(w http.ResponseWriter, r *http.Request) {
	ownerID, err := requireOwnerParam(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 {
			core.Error(w, r, types.NewAppError(
				types.ErrCodeValidationMissingField,
				"limit must be a positive integer",
				convErr,
			))
			return
		}
		limit = n
	}

	instances, err := h.instances.ListByRule(r.Context(), ownerID, chi.URLParam(r, "id"), limit)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: instances})
}

// --- Helpers ---

// requireOwnerParam extracts the mandatory owner_id query parameter.
func requireOwnerParam(r *http.Request) (string, error) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		return "", types.NewAppError(
			types.ErrCodeValidationMissingField,
			"owner_id query parameter is required",
			nil,
		)
	}
	return ownerID, nil
}

// parseDays resolves day names into a normalized DaySet. Unknown names
// produce a 400 naming the offending value.
func parseDays(names []string) (types.DaySet, error) {
	days := make([]types.Weekday, 0, len(names))
	for _, name := range names {
		d, err := types.ParseWeekday(name)
		if err != nil {
			return nil, types.NewAppError(
				types.ErrCodeValidationInvalidDay,
				"unknown weekday: "+name,
				err,
			)
		}
		days = append(days, d)
	}
	return types.NewDaySet(days...), nil
}
