package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/apperrors"
	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
	"github.com/dealroom-hq/dealroom-engine/pkg/repositories"
)

// NDARequestService implements the admin review workflow for NDA requests.
type NDARequestService interface {
	// Decide applies an approve/decline decision to a pending request and
	// appends the matching audit event (best-effort). The returned summary
	// reflects a consistent re-fetch including the fresh audit trail; when
	// the re-fetch fails the summary is built from the update result instead
	// of failing the request.
	//
	// Returns apperrors.ErrNotFound if the request is missing,
	// apperrors.ErrInvalidTransition if it is not pending, and
	// apperrors.ErrInvalidStatus if the decision is not approved/declined.
	Decide(ctx context.Context, id uuid.UUID, decision string, note *string) (models.RequestSummary, error)

	// List returns requests visible to the admin, optionally filtered by
	// status, newest requested_at first, each with its audit trail.
	List(ctx context.Context, statusFilter string) ([]models.RequestSummary, error)
}

type ndaRequestService struct {
	requests repositories.NDARequestRepository
	events   repositories.AuditEventRepository
	audit    AuditService
	logger   *zap.Logger
	now      func() time.Time
}

// NewNDARequestService creates a new NDARequestService.
func NewNDARequestService(
	requests repositories.NDARequestRepository,
	events repositories.AuditEventRepository,
	audit AuditService,
	logger *zap.Logger,
) NDARequestService {
	return &ndaRequestService{
		requests: requests,
		events:   events,
		audit:    audit,
		logger:   logger.Named("nda-request-service"),
		now:      time.Now,
	}
}

var _ NDARequestService = (*ndaRequestService)(nil)

func (s *ndaRequestService) Decide(ctx context.Context, id uuid.UUID, decision string, note *string) (models.RequestSummary, error) {
	if !models.ValidDecision(decision) {
		return models.RequestSummary{}, fmt.Errorf("decision must be approved or declined: %w", apperrors.ErrInvalidStatus)
	}

	existing, err := s.requests.GetByID(ctx, id)
	if err != nil {
		return models.RequestSummary{}, err
	}

	if !models.CanTransition(existing.Status, decision) {
		return models.RequestSummary{}, fmt.Errorf("request is %s: %w", existing.Status, apperrors.ErrInvalidTransition)
	}

	updated, err := s.requests.ApplyDecision(ctx, id, decision, s.now())
	if err != nil {
		return models.RequestSummary{}, err
	}

	actor := auth.ActorFromContext(ctx)
	s.audit.RecordDecision(ctx, id, decision, actor, note)

	s.logger.Info("NDA request decided",
		zap.String("request_id", id.String()),
		zap.String("decision", decision),
		zap.String("actor", actor))

	// Re-fetch for a consistent view including the fresh audit entry. A
	// failed re-fetch falls back to the update result rather than failing
	// the already-committed decision.
	fresh, err := s.requests.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("Failed to re-fetch request after decision, returning update result",
			zap.String("request_id", id.String()),
			zap.Error(err))
		return s.fallbackSummary(existing, updated), nil
	}

	trail, err := s.events.ListBySubject(ctx, models.RequestSubject(id))
	if err != nil {
		s.logger.Warn("Failed to load audit trail after decision, returning update result",
			zap.String("request_id", id.String()),
			zap.Error(err))
		return s.fallbackSummary(existing, updated), nil
	}
	fresh.AuditTrail = trail

	return fresh.Summary(), nil
}

// fallbackSummary builds a response from the conditional update's result,
// carrying over the joined identity and pre-decision audit trail from the
// initial fetch (the fresh audit entry is absent by construction).
func (s *ndaRequestService) fallbackSummary(existing, updated *models.NDARequest) models.RequestSummary {
	updated.Listing = existing.Listing
	updated.Buyer = existing.Buyer
	updated.Seller = existing.Seller
	updated.AuditTrail = existing.AuditTrail
	return updated.Summary()
}

func (s *ndaRequestService) List(ctx context.Context, statusFilter string) ([]models.RequestSummary, error) {
	if statusFilter != "" && !models.ValidRequestStatus(statusFilter) {
		return nil, fmt.Errorf("unknown status %q: %w", statusFilter, apperrors.ErrInvalidStatus)
	}

	requests, err := s.requests.List(ctx, statusFilter)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(requests))
	for _, r := range requests {
		ids = append(ids, r.ID)
	}

	trails, err := s.events.ListByRequestIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.RequestSummary, 0, len(requests))
	for _, r := range requests {
		r.AuditTrail = trails[r.ID]
		summaries = append(summaries, r.Summary())
	}

	return summaries, nil
}
