package handlers

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/apperrors"
	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
	"github.com/dealroom-hq/dealroom-engine/pkg/services"
)

// NDAAgreementHandler handles the buyer/seller-facing agreement endpoints.
type NDAAgreementHandler struct {
	service services.NDAAgreementService
	logger  *zap.Logger
}

// NewNDAAgreementHandler creates a new NDAAgreementHandler.
func NewNDAAgreementHandler(service services.NDAAgreementService, logger *zap.Logger) *NDAAgreementHandler {
	return &NDAAgreementHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the agreement routes on the given mux. Any
// authenticated marketplace user may call these; ownership checks live in the
// service layer.
func (h *NDAAgreementHandler) RegisterRoutes(mux *http.ServeMux, authMiddleware *auth.Middleware) {
	mux.HandleFunc("POST /api/ndas/{id}/renewal", authMiddleware.RequireAuth(h.RequestRenewal))
	mux.HandleFunc("GET /api/ndas", authMiddleware.RequireAuth(h.List))
}

type renewalResponse struct {
	Agreement models.AgreementSummary `json:"agreement"`
}

type listAgreementsResponse struct {
	Agreements []models.AgreementSummary `json:"agreements"`
}

// RequestRenewal handles POST /api/ndas/{id}/renewal
func (h *NDAAgreementHandler) RequestRenewal(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, "Invalid agreement ID")
		return
	}

	summary, err := h.service.RequestRenewal(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to request renewal")
		return
	}

	if err := WriteJSON(w, http.StatusOK, renewalResponse{Agreement: summary}); err != nil {
		h.logger.Error("Failed to write renewal response", zap.Error(err))
	}
}

// List handles GET /api/ndas
func (h *NDAAgreementHandler) List(w http.ResponseWriter, r *http.Request) {
	role := r.URL.Query().Get("role")

	summaries, err := h.service.ListForUser(r.Context(), role)
	if err != nil {
		h.writeServiceError(w, r, err, "Failed to list agreements")
		return
	}

	if err := WriteJSON(w, http.StatusOK, listAgreementsResponse{Agreements: summaries}); err != nil {
		h.logger.Error("Failed to write agreement list response", zap.Error(err))
	}
}

func (h *NDAAgreementHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, apperrors.ErrInvalidStatus):
		ErrorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, apperrors.ErrNotFound):
		ErrorResponse(w, http.StatusNotFound, "NDA agreement not found")
	case errors.Is(err, apperrors.ErrForbidden):
		ErrorResponse(w, http.StatusForbidden, "Only the agreement's buyer may request renewal")
	case errors.Is(err, auth.ErrMissingAuthorization):
		ErrorResponse(w, http.StatusUnauthorized, "Authentication required")
	default:
		h.logger.Error(fallback,
			zap.String("path", r.URL.Path),
			zap.Error(err))
		ErrorResponse(w, http.StatusInternalServerError, fallback)
	}
}
