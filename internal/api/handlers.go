// Package api exposes HTTP handlers for the activity service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/auth"
	"github.com/hieunguyen7337/Carbon-Footprint-Calculator/internal/domain"
)

const activitiesPath = "/api/activities"

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	logger  *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc(activitiesPath, h.activities)
	mux.HandleFunc(activitiesPath+"/", h.activityByID)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.createActivity(w, r)
	case http.MethodGet:
		h.listActivities(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) activityByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, activitiesPath+"/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		h.updateActivity(w, r, id)
	case http.MethodDelete:
		h.deleteActivity(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ReadScopes...)
	if !ok {
		return
	}

	activities, err := h.service.ListActivities(r.Context(), claims.Subject)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	items := make([]ActivityView, 0, len(activities))
	for _, a := range activities {
		items = append(items, toActivityView(a))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) createActivity(w http.ResponseWriter, r *http.Request) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	date, err := req.date()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	created, err := h.service.CreateActivity(r.Context(), domain.CreateActivityInput{
		OwnerID:      claims.Subject,
		ActivityType: deref(req.ActivityType),
		Quantity:     req.Quantity,
		Unit:         deref(req.Unit),
		Date:         date,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toActivityView(*created))
}

func (h *Handler) updateActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	var req ActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	date, err := req.date()
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	updated, err := h.service.UpdateActivity(r.Context(), id, claims.Subject, domain.ActivityPatch{
		ActivityType: req.ActivityType,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
		Date:         date,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toActivityView(*updated))
}

func (h *Handler) deleteActivity(w http.ResponseWriter, r *http.Request, id string) {
	claims, ok := requireScope(w, r, auth.ScopeActivitiesWrite)
	if !ok {
		return
	}

	if err := h.service.DeleteActivity(r.Context(), id, claims.Subject); err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: "Activity deleted"})
}

// requireScope loads the caller's claims and checks they carry one of scopes.
func requireScope(w http.ResponseWriter, r *http.Request, scopes ...string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok || strings.TrimSpace(claims.Subject) == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasAnyScope(scopes...) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scopes[0]+" required")
		return nil, false
	}
	return claims, true
}

func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var validation *domain.ValidationError
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusUnauthorized, "not_owner", "User not authorized")
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, "validation_failed", validation.Error())
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	default:
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Type: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
