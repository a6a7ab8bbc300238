//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealroom-hq/dealroom-engine/pkg/apperrors"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
	"github.com/dealroom-hq/dealroom-engine/pkg/testhelpers"
)

// ndaTestContext holds shared fixtures for NDA repository tests.
type ndaTestContext struct {
	t         *testing.T
	db        *testhelpers.TestDB
	listingID uuid.UUID
	buyerID   uuid.UUID
	sellerID  uuid.UUID
}

func setupNDATest(t *testing.T) *ndaTestContext {
	db := testhelpers.GetTestDB(t)
	tc := &ndaTestContext{
		t:         t,
		db:        db,
		listingID: uuid.New(),
		buyerID:   uuid.New(),
		sellerID:  uuid.New(),
	}
	tc.seedIdentity()
	return tc
}

func (tc *ndaTestContext) seedIdentity() {
	tc.t.Helper()
	ctx := context.Background()

	_, err := tc.db.Pool.Exec(ctx, `
		INSERT INTO marketplace_users (id, display_name, email) VALUES
			($1, 'Dana Buyer', 'buyer@example.com'),
			($2, 'Sam Seller', 'seller@example.com')
		ON CONFLICT (id) DO NOTHING
	`, tc.buyerID, tc.sellerID)
	require.NoError(tc.t, err)

	_, err = tc.db.Pool.Exec(ctx, `
		INSERT INTO listings (id, title, seller_id)
		VALUES ($1, 'Regional logistics firm', $2)
		ON CONFLICT (id) DO NOTHING
	`, tc.listingID, tc.sellerID)
	require.NoError(tc.t, err)
}

func (tc *ndaTestContext) seedRequest(status string) uuid.UUID {
	tc.t.Helper()
	id := uuid.New()
	_, err := tc.db.Pool.Exec(context.Background(), `
		INSERT INTO nda_requests (id, listing_id, buyer_id, seller_id, status, risk_level)
		VALUES ($1, $2, $3, $4, $5, 'standard')
	`, id, tc.listingID, tc.buyerID, tc.sellerID, status)
	require.NoError(tc.t, err)
	return id
}

func (tc *ndaTestContext) seedAgreement() uuid.UUID {
	tc.t.Helper()
	id := uuid.New()
	now := time.Now()
	_, err := tc.db.Pool.Exec(context.Background(), `
		INSERT INTO nda_agreements (
			id, listing_id, buyer_id, seller_id, buyer_company,
			status, signed_at, expires_at, document_url, security_level
		) VALUES ($1, $2, $3, $4, 'Acme Holdings', 'signed', $5, $6, 'https://docs.example.com/nda.pdf', 'strict')
	`, id, tc.listingID, tc.buyerID, tc.sellerID, now, now.AddDate(1, 0, 0))
	require.NoError(tc.t, err)
	return id
}

func TestNDARequestRepository_GetByID_Joins(t *testing.T) {
	tc := setupNDATest(t)
	repo := NewNDARequestRepository(tc.db.DB)
	id := tc.seedRequest(models.RequestStatusPending)

	request, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusPending, request.Status)
	require.NotNil(t, request.Listing)
	assert.Equal(t, "Regional logistics firm", request.Listing.Title)
	require.NotNil(t, request.Buyer)
	assert.Equal(t, "Dana Buyer", request.Buyer.DisplayName)
	require.NotNil(t, request.Seller)
	assert.Equal(t, "Sam Seller", request.Seller.DisplayName)
}

func TestNDARequestRepository_GetByID_NotFound(t *testing.T) {
	tc := setupNDATest(t)
	repo := NewNDARequestRepository(tc.db.DB)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNDARequestRepository_ApplyDecision(t *testing.T) {
	tc := setupNDATest(t)
	repo := NewNDARequestRepository(tc.db.DB)
	id := tc.seedRequest(models.RequestStatusPending)

	now := time.Now().UTC()
	updated, err := repo.ApplyDecision(context.Background(), id, models.RequestStatusApproved, now)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusApproved, updated.Status)
	assert.WithinDuration(t, now, updated.LastActivityAt, time.Second)

	// The guard rejects a second decision on the same request.
	_, err = repo.ApplyDecision(context.Background(), id, models.RequestStatusDeclined, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	// A missing row is not found, not a conflict.
	_, err = repo.ApplyDecision(context.Background(), uuid.New(), models.RequestStatusApproved, time.Now())
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNDAAgreementRepository_MarkRenewalRequested(t *testing.T) {
	tc := setupNDATest(t)
	repo := NewNDAAgreementRepository(tc.db.DB)
	id := tc.seedAgreement()

	now := time.Now().UTC()
	require.NoError(t, repo.MarkRenewalRequested(context.Background(), id, now))

	agreement, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.True(t, agreement.RenewalRequested)
	assert.WithinDuration(t, now, agreement.UpdatedAt, time.Second)

	err = repo.MarkRenewalRequested(context.Background(), uuid.New(), now)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNDAAgreementRepository_ListByUser(t *testing.T) {
	tc := setupNDATest(t)
	repo := NewNDAAgreementRepository(tc.db.DB)
	tc.seedAgreement()
	tc.seedAgreement()

	asBuyer, err := repo.ListByUser(context.Background(), tc.buyerID, AgreementRoleBuyer)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(asBuyer), 2)
	for i := 1; i < len(asBuyer); i++ {
		assert.False(t, asBuyer[i-1].SignedAt.Before(asBuyer[i].SignedAt),
			"agreements should be ordered newest signed_at first")
	}

	asSeller, err := repo.ListByUser(context.Background(), tc.sellerID, AgreementRoleSeller)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(asSeller), 2)

	other, err := repo.ListByUser(context.Background(), uuid.New(), AgreementRoleBuyer)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestAuditEventRepository_CreateAndList(t *testing.T) {
	tc := setupNDATest(t)
	repo := NewAuditEventRepository(tc.db.DB)
	requestID := tc.seedRequest(models.RequestStatusPending)

	base := time.Now().UTC().Add(-time.Minute)
	note := "risk reviewed"
	first := &models.AuditEvent{
		ID:        uuid.New(),
		EventType: models.AuditEventApproved,
		CreatedAt: base,
		CreatedBy: "admin@example.com",
		Subject:   models.RequestSubject(requestID),
		Note:      &note,
	}
	second := &models.AuditEvent{
		ID:        uuid.New(),
		EventType: models.AuditEventSystem,
		CreatedAt: base.Add(30 * time.Second),
		CreatedBy: "system",
		Subject:   models.RequestSubject(requestID),
	}
	require.NoError(t, repo.Create(context.Background(), first))
	require.NoError(t, repo.Create(context.Background(), second))

	events, err := repo.ListBySubject(context.Background(), models.RequestSubject(requestID))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, second.ID, events[0].ID, "newest event first")
	assert.Equal(t, first.ID, events[1].ID)
	require.NotNil(t, events[1].Note)
	assert.Equal(t, note, *events[1].Note)
	assert.Equal(t, models.AuditSubjectRequest, events[0].Subject.Kind)
}

func TestAuditEventRepository_RejectsInvalidSubject(t *testing.T) {
	tc := setupNDATest(t)
	repo := NewAuditEventRepository(tc.db.DB)

	err := repo.Create(context.Background(), &models.AuditEvent{
		ID:        uuid.New(),
		EventType: models.AuditEventSystem,
		CreatedAt: time.Now(),
		CreatedBy: "system",
	})
	assert.Error(t, err)
}
