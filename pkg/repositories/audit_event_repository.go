package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealroom-hq/dealroom-engine/pkg/database"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
)

// AuditEventRepository provides data access for the append-only NDA audit log.
type AuditEventRepository interface {
	// Create inserts a new audit event. Events are immutable once written.
	Create(ctx context.Context, event *models.AuditEvent) error

	// ListBySubject returns all audit events for one request or agreement,
	// ordered by time (newest first).
	ListBySubject(ctx context.Context, subject models.AuditSubject) ([]*models.AuditEvent, error)

	// ListByRequestIDs returns audit events for a set of requests, grouped by
	// request id, each group ordered newest first.
	ListByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID][]*models.AuditEvent, error)

	// ListByAgreementIDs returns audit events for a set of agreements, grouped
	// by agreement id, each group ordered newest first.
	ListByAgreementIDs(ctx context.Context, agreementIDs []uuid.UUID) (map[uuid.UUID][]*models.AuditEvent, error)
}

type auditEventRepository struct {
	db *database.DB
}

// NewAuditEventRepository creates a new AuditEventRepository.
func NewAuditEventRepository(db *database.DB) AuditEventRepository {
	return &auditEventRepository{db: db}
}

var _ AuditEventRepository = (*auditEventRepository)(nil)

func (r *auditEventRepository) Create(ctx context.Context, event *models.AuditEvent) error {
	if err := event.Subject.Validate(); err != nil {
		return fmt.Errorf("invalid audit subject: %w", err)
	}

	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// The tagged subject maps to two nullable columns; the table CHECK
	// constraint keeps exactly one non-null.
	var requestID, agreementID *uuid.UUID
	switch event.Subject.Kind {
	case models.AuditSubjectRequest:
		requestID = &event.Subject.ID
	case models.AuditSubjectAgreement:
		agreementID = &event.Subject.ID
	}

	query := `
		INSERT INTO nda_audit_events (
			id, event_type, created_at, created_by, request_id, agreement_id, note
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := r.db.Exec(ctx, query,
		event.ID,
		event.EventType,
		event.CreatedAt,
		event.CreatedBy,
		requestID,
		agreementID,
		event.Note,
	)
	if err != nil {
		return fmt.Errorf("failed to create audit event: %w", err)
	}

	return nil
}

func (r *auditEventRepository) ListBySubject(ctx context.Context, subject models.AuditSubject) ([]*models.AuditEvent, error) {
	if err := subject.Validate(); err != nil {
		return nil, fmt.Errorf("invalid audit subject: %w", err)
	}

	column := "request_id"
	if subject.Kind == models.AuditSubjectAgreement {
		column = "agreement_id"
	}

	query := fmt.Sprintf(`
		SELECT id, event_type, created_at, created_by, request_id, agreement_id, note
		FROM nda_audit_events
		WHERE %s = $1
		ORDER BY created_at DESC`, column)

	rows, err := r.db.Query(ctx, query, subject.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	return collectAuditEvents(rows)
}

func (r *auditEventRepository) ListByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID][]*models.AuditEvent, error) {
	return r.listGrouped(ctx, "request_id", requestIDs)
}

func (r *auditEventRepository) ListByAgreementIDs(ctx context.Context, agreementIDs []uuid.UUID) (map[uuid.UUID][]*models.AuditEvent, error) {
	return r.listGrouped(ctx, "agreement_id", agreementIDs)
}

func (r *auditEventRepository) listGrouped(ctx context.Context, column string, ids []uuid.UUID) (map[uuid.UUID][]*models.AuditEvent, error) {
	grouped := make(map[uuid.UUID][]*models.AuditEvent)
	if len(ids) == 0 {
		return grouped, nil
	}

	query := fmt.Sprintf(`
		SELECT id, event_type, created_at, created_by, request_id, agreement_id, note
		FROM nda_audit_events
		WHERE %s = ANY($1)
		ORDER BY created_at DESC`, column)

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	events, err := collectAuditEvents(rows)
	if err != nil {
		return nil, err
	}

	for _, event := range events {
		grouped[event.Subject.ID] = append(grouped[event.Subject.ID], event)
	}

	return grouped, nil
}

func collectAuditEvents(rows pgx.Rows) ([]*models.AuditEvent, error) {
	var events []*models.AuditEvent
	for rows.Next() {
		event, err := scanAuditEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit events: %w", err)
	}

	return events, nil
}

func scanAuditEvent(row pgx.Row) (*models.AuditEvent, error) {
	var event models.AuditEvent
	var requestID, agreementID *uuid.UUID

	err := row.Scan(
		&event.ID,
		&event.EventType,
		&event.CreatedAt,
		&event.CreatedBy,
		&requestID,
		&agreementID,
		&event.Note,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan audit event: %w", err)
	}

	switch {
	case requestID != nil:
		event.Subject = models.RequestSubject(*requestID)
	case agreementID != nil:
		event.Subject = models.AgreementSubject(*agreementID)
	default:
		return nil, fmt.Errorf("audit event %s has no parent reference", event.ID)
	}

	return &event, nil
}
