package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/models"
	"github.com/dealroom-hq/dealroom-engine/pkg/repositories"
)

// RenewalRequestedNote is the note recorded on the system audit event when a
// buyer requests renewal of an agreement.
const RenewalRequestedNote = "Renewal requested by buyer"

// AuditService records audit events for NDA workflow actions.
//
// All writes are best-effort: the decision or renewal is already committed
// when the audit write happens, and losing the audit entry is preferred over
// rolling back or failing a committed operation. Failures are logged at
// ERROR and swallowed.
type AuditService interface {
	// RecordDecision appends the audit event for an admin decision on a
	// request. eventType mirrors the decision outcome (approved/declined).
	RecordDecision(ctx context.Context, requestID uuid.UUID, eventType, actor string, note *string)

	// RecordRenewalRequested appends the system audit event for a
	// buyer-initiated renewal request on an agreement.
	RecordRenewalRequested(ctx context.Context, agreementID uuid.UUID, actor string)
}

type auditService struct {
	repo   repositories.AuditEventRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService.
func NewAuditService(repo repositories.AuditEventRepository, logger *zap.Logger) AuditService {
	return &auditService{
		repo:   repo,
		logger: logger.Named("audit-service"),
	}
}

var _ AuditService = (*auditService)(nil)

func (s *auditService) RecordDecision(ctx context.Context, requestID uuid.UUID, eventType, actor string, note *string) {
	event := &models.AuditEvent{
		EventType: eventType,
		CreatedBy: actor,
		Subject:   models.RequestSubject(requestID),
		Note:      note,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("Failed to record decision audit event",
			zap.String("request_id", requestID.String()),
			zap.String("event_type", eventType),
			zap.String("actor", actor),
			zap.Error(err))
	}
}

func (s *auditService) RecordRenewalRequested(ctx context.Context, agreementID uuid.UUID, actor string) {
	note := RenewalRequestedNote
	event := &models.AuditEvent{
		EventType: models.AuditEventSystem,
		CreatedBy: actor,
		Subject:   models.AgreementSubject(agreementID),
		Note:      &note,
	}

	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("Failed to record renewal audit event",
			zap.String("agreement_id", agreementID.String()),
			zap.String("actor", actor),
			zap.Error(err))
	}
}
