package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dealroom-hq/dealroom-engine/pkg/apperrors"
	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
)

// authedContext returns a context carrying claims for the given subject/email.
func authedContext(userID uuid.UUID, email string) context.Context {
	claims := &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: userID.String()},
		Email:            email,
	}
	return context.WithValue(context.Background(), auth.ClaimsKey, claims)
}

// mockNDARequestRepository is an in-memory NDARequestRepository.
type mockNDARequestRepository struct {
	requests map[uuid.UUID]*models.NDARequest

	applyCalls int
	getCalls   int

	// failGetAfter, when > 0, makes GetByID fail once more than N calls
	// have been made (used to exercise the re-fetch fallback).
	failGetAfter int
	applyErr     error
}

func newMockRequestRepo(requests ...*models.NDARequest) *mockNDARequestRepository {
	m := &mockNDARequestRepository{requests: make(map[uuid.UUID]*models.NDARequest)}
	for _, r := range requests {
		m.requests[r.ID] = r
	}
	return m
}

func (m *mockNDARequestRepository) GetByID(_ context.Context, id uuid.UUID) (*models.NDARequest, error) {
	m.getCalls++
	if m.failGetAfter > 0 && m.getCalls > m.failGetAfter {
		return nil, errors.New("connection reset")
	}
	r, ok := m.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *r
	return &copied, nil
}

func (m *mockNDARequestRepository) List(_ context.Context, statusFilter string) ([]*models.NDARequest, error) {
	var result []*models.NDARequest
	for _, r := range m.requests {
		if statusFilter == "" || r.Status == statusFilter {
			copied := *r
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].RequestedAt.After(result[j].RequestedAt)
	})
	return result, nil
}

func (m *mockNDARequestRepository) ApplyDecision(_ context.Context, id uuid.UUID, status string, now time.Time) (*models.NDARequest, error) {
	m.applyCalls++
	if m.applyErr != nil {
		return nil, m.applyErr
	}
	r, ok := m.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if r.Status != models.RequestStatusPending {
		return nil, apperrors.ErrInvalidTransition
	}
	r.Status = status
	r.LastActivityAt = now
	copied := *r
	copied.Listing, copied.Buyer, copied.Seller, copied.AuditTrail = nil, nil, nil, nil
	return &copied, nil
}

// mockNDAAgreementRepository is an in-memory NDAAgreementRepository.
type mockNDAAgreementRepository struct {
	agreements map[uuid.UUID]*models.NDAAgreement

	markCalls int
	markErr   error
}

func newMockAgreementRepo(agreements ...*models.NDAAgreement) *mockNDAAgreementRepository {
	m := &mockNDAAgreementRepository{agreements: make(map[uuid.UUID]*models.NDAAgreement)}
	for _, a := range agreements {
		m.agreements[a.ID] = a
	}
	return m
}

func (m *mockNDAAgreementRepository) GetByID(_ context.Context, id uuid.UUID) (*models.NDAAgreement, error) {
	a, ok := m.agreements[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *a
	return &copied, nil
}

func (m *mockNDAAgreementRepository) ListByUser(_ context.Context, userID uuid.UUID, role string) ([]*models.NDAAgreement, error) {
	var result []*models.NDAAgreement
	for _, a := range m.agreements {
		owner := a.BuyerID
		if role == "seller" {
			owner = a.SellerID
		}
		if owner == userID {
			copied := *a
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SignedAt.After(result[j].SignedAt)
	})
	return result, nil
}

func (m *mockNDAAgreementRepository) MarkRenewalRequested(_ context.Context, id uuid.UUID, now time.Time) error {
	m.markCalls++
	if m.markErr != nil {
		return m.markErr
	}
	a, ok := m.agreements[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.RenewalRequested = true
	a.UpdatedAt = now
	return nil
}

// mockAuditEventRepository is an in-memory append-only AuditEventRepository.
type mockAuditEventRepository struct {
	events    []*models.AuditEvent
	createErr error
}

func (m *mockAuditEventRepository) Create(_ context.Context, event *models.AuditEvent) error {
	if m.createErr != nil {
		return m.createErr
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockAuditEventRepository) ListBySubject(_ context.Context, subject models.AuditSubject) ([]*models.AuditEvent, error) {
	var result []*models.AuditEvent
	// Newest first: iterate in reverse insertion order.
	for i := len(m.events) - 1; i >= 0; i-- {
		if m.events[i].Subject == subject {
			result = append(result, m.events[i])
		}
	}
	return result, nil
}

func (m *mockAuditEventRepository) ListByRequestIDs(ctx context.Context, requestIDs []uuid.UUID) (map[uuid.UUID][]*models.AuditEvent, error) {
	grouped := make(map[uuid.UUID][]*models.AuditEvent)
	for _, id := range requestIDs {
		events, _ := m.ListBySubject(ctx, models.RequestSubject(id))
		if len(events) > 0 {
			grouped[id] = events
		}
	}
	return grouped, nil
}

func (m *mockAuditEventRepository) ListByAgreementIDs(ctx context.Context, agreementIDs []uuid.UUID) (map[uuid.UUID][]*models.AuditEvent, error) {
	grouped := make(map[uuid.UUID][]*models.AuditEvent)
	for _, id := range agreementIDs {
		events, _ := m.ListBySubject(ctx, models.AgreementSubject(id))
		if len(events) > 0 {
			grouped[id] = events
		}
	}
	return grouped, nil
}
