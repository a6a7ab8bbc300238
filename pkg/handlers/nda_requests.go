package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/apperrors"
	"github.com/dealroom-hq/dealroom-engine/pkg/audit"
	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
	"github.com/dealroom-hq/dealroom-engine/pkg/services"
)

// NDARequestHandler handles the admin review surface for NDA requests.
type NDARequestHandler struct {
	service  services.NDARequestService
	security *audit.SecurityAuditor
	logger   *zap.Logger
}

// NewNDARequestHandler creates a new NDARequestHandler.
func NewNDARequestHandler(service services.NDARequestService, security *audit.SecurityAuditor, logger *zap.Logger) *NDARequestHandler {
	return &NDARequestHandler{
		service:  service,
		security: security,
		logger:   logger,
	}
}

// RegisterRoutes registers the NDA request routes on the given mux. Both
// endpoints are restricted to the administrator allow-list.
func (h *NDARequestHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/nda-requests/{id}/decision", authMiddleware.RequireAdmin(h.Decide))
	mux.HandleFunc("GET /api/nda-requests", authMiddleware.RequireAdmin(h.List))
}

type decisionRequest struct {
	Status string  `json:"status"`
	Note   *string `json:"note"`
}

type decisionResponse struct {
	Request models.RequestSummary `json:"request"`
}

type listRequestsResponse struct {
	Requests []models.RequestSummary `json:"requests"`
}

// Decide handles POST /api/nda-requests/{id}/decision
func (h *NDARequestHandler) Decide(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request ID")
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !models.ValidDecision(req.Status) {
		ValidationErrorResponse(w, "Validation failed", map[string]string{
			"status": "must be approved or declined",
		})
		return
	}

	note := normalizeNote(req.Note)
	if note != nil {
		if len(*note) > models.MaxNoteLength {
			ValidationErrorResponse(w, "Validation failed", map[string]string{
				"note": fmt.Sprintf("must be at most %d characters", models.MaxNoteLength),
			})
			return
		}
		// Notes are parameterized before persistence; screening hits are
		// logged for the SIEM, never rejected.
		h.security.ScreenNote(r.Context(), id, "note", *note, r.RemoteAddr)
	}

	summary, err := h.service.Decide(r.Context(), id, req.Status, note)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to apply decision")
		return
	}

	if err := WriteJSON(w, http.StatusOK, decisionResponse{Request: summary}); err != nil {
		h.logger.Error("Failed to write decision response", zap.Error(err))
	}
}

// List handles GET /api/nda-requests
func (h *NDARequestHandler) List(w http.ResponseWriter, r *http.Request) {
	statusFilter := r.URL.Query().Get("status")

	summaries, err := h.service.List(r.Context(), statusFilter)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list NDA requests")
		return
	}

	if err := WriteJSON(w, http.StatusOK, listRequestsResponse{Requests: summaries}); err != nil {
		h.logger.Error("Failed to write request list response", zap.Error(err))
	}
}

func (h *NDARequestHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidStatus):
		ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		ErrorResponse(w, http.StatusNotFound, "NDA request not found")
	case errors.Is(err, apperrors.ErrInvalidTransition):
		ErrorResponse(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(fallback,
			zap.String("path", r.URL.Path),
			zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}

// normalizeNote trims the submitted note and drops it entirely when the
// trimmed result is empty.
func normalizeNote(note *string) *string {
	if note == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*note)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
