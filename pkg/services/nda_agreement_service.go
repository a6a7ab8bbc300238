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

// NDAAgreementService implements the buyer-facing agreement operations.
type NDAAgreementService interface {
	// RequestRenewal flags a signed agreement for renewal on behalf of the
	// authenticated buyer. The flag is monotonic: if it is already set the
	// call is an idempotent no-op that performs no mutation and no audit
	// write but still succeeds. On first request a system audit event is
	// appended (best-effort). The returned summary reflects the in-memory
	// applied change; it is not re-fetched from storage.
	//
	// Returns apperrors.ErrNotFound if the agreement is missing and
	// apperrors.ErrForbidden if the caller is not the agreement's buyer.
	RequestRenewal(ctx context.Context, id uuid.UUID) (models.AgreementSummary, error)

	// ListForUser returns the caller's agreements on the given side
	// (buyer or seller), newest signed_at first, each with its audit trail.
	ListForUser(ctx context.Context, role string) ([]models.AgreementSummary, error)
}

type ndaAgreementService struct {
	agreements repositories.NDAAgreementRepository
	events     repositories.AuditEventRepository
	audit      AuditService
	logger     *zap.Logger
	now        func() time.Time
}

// NewNDAAgreementService creates a new NDAAgreementService.
func NewNDAAgreementService(
	agreements repositories.NDAAgreementRepository,
	events repositories.AuditEventRepository,
	audit AuditService,
	logger *zap.Logger,
) NDAAgreementService {
	return &ndaAgreementService{
		agreements: agreements,
		events:     events,
		audit:      audit,
		logger:     logger.Named("nda-agreement-service"),
		now:        time.Now,
	}
}

var _ NDAAgreementService = (*ndaAgreementService)(nil)

func (s *ndaAgreementService) RequestRenewal(ctx context.Context, id uuid.UUID) (models.AgreementSummary, error) {
	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return models.AgreementSummary{}, fmt.Errorf("authentication required: %w", err)
	}

	agreement, err := s.agreements.GetByID(ctx, id)
	if err != nil {
		return models.AgreementSummary{}, err
	}

	if agreement.BuyerID != userID {
		return models.AgreementSummary{}, fmt.Errorf("only the agreement's buyer may request renewal: %w", apperrors.ErrForbidden)
	}

	trail, err := s.events.ListBySubject(ctx, models.AgreementSubject(id))
	if err != nil {
		return models.AgreementSummary{}, err
	}
	agreement.AuditTrail = trail

	// Monotonic flag: already-requested renewals are a no-op that still
	// returns the current summary.
	if agreement.RenewalRequested {
		return agreement.Summary(), nil
	}

	now := s.now()
	if err := s.agreements.MarkRenewalRequested(ctx, id, now); err != nil {
		return models.AgreementSummary{}, err
	}

	actor := auth.ActorFromContext(ctx)
	s.audit.RecordRenewalRequested(ctx, id, actor)

	s.logger.Info("NDA renewal requested",
		zap.String("agreement_id", id.String()),
		zap.String("buyer_id", userID.String()))

	// Reflect the applied change in memory; the response deliberately skips
	// a second fetch, so the just-written system event is not in the trail.
	agreement.RenewalRequested = true
	agreement.UpdatedAt = now

	return agreement.Summary(), nil
}

func (s *ndaAgreementService) ListForUser(ctx context.Context, role string) ([]models.AgreementSummary, error) {
	if role == "" {
		role = repositories.AgreementRoleBuyer
	}
	if role != repositories.AgreementRoleBuyer && role != repositories.AgreementRoleSeller {
		return nil, fmt.Errorf("role must be buyer or seller: %w", apperrors.ErrInvalidStatus)
	}

	userID, err := auth.RequireUserUUIDFromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("authentication required: %w", err)
	}

	agreements, err := s.agreements.ListByUser(ctx, userID, role)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(agreements))
	for _, a := range agreements {
		ids = append(ids, a.ID)
	}

	trails, err := s.events.ListByAgreementIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	summaries := make([]models.AgreementSummary, 0, len(agreements))
	for _, a := range agreements {
		a.AuditTrail = trails[a.ID]
		summaries = append(summaries, a.Summary())
	}

	return summaries, nil
}
