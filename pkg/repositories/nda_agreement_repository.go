package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dealroom-hq/dealroom-engine/pkg/apperrors"
	"github.com/dealroom-hq/dealroom-engine/pkg/database"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
)

// AgreementRole selects which side of an agreement a user is on.
const (
	AgreementRoleBuyer  = "buyer"
	AgreementRoleSeller = "seller"
)

// NDAAgreementRepository provides data access for NDA agreements.
type NDAAgreementRepository interface {
	// GetByID returns one agreement with joined listing/buyer/seller
	// identity. The audit trail is NOT loaded; callers attach it separately.
	// Returns apperrors.ErrNotFound if the row is missing.
	GetByID(ctx context.Context, id uuid.UUID) (*models.NDAAgreement, error)

	// ListByUser returns the agreements where the user is the buyer or the
	// seller (per role), ordered by signed_at descending.
	ListByUser(ctx context.Context, userID uuid.UUID, role string) ([]*models.NDAAgreement, error)

	// MarkRenewalRequested sets renewal_requested = true and refreshes
	// updated_at in a single statement scoped by id.
	// Returns apperrors.ErrNotFound if the row is missing.
	MarkRenewalRequested(ctx context.Context, id uuid.UUID, now time.Time) error
}

type ndaAgreementRepository struct {
	db *database.DB
}

// NewNDAAgreementRepository creates a new NDAAgreementRepository.
func NewNDAAgreementRepository(db *database.DB) NDAAgreementRepository {
	return &ndaAgreementRepository{db: db}
}

var _ NDAAgreementRepository = (*ndaAgreementRepository)(nil)

const agreementSelect = `
	SELECT a.id, a.listing_id, a.buyer_id, a.seller_id, a.buyer_company,
	       a.status, a.signed_at, a.expires_at, a.document_url,
	       a.renewal_requested, a.security_level, a.updated_at,
	       l.id, l.title,
	       b.id, b.display_name, b.email,
	       s.id, s.display_name, s.email
	FROM nda_agreements a
	LEFT JOIN listings l ON l.id = a.listing_id
	LEFT JOIN marketplace_users b ON b.id = a.buyer_id
	LEFT JOIN marketplace_users s ON s.id = a.seller_id`

func (r *ndaAgreementRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.NDAAgreement, error) {
	row := r.db.QueryRow(ctx, agreementSelect+` WHERE a.id = $1`, id)

	agreement, err := scanAgreementWithJoins(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get NDA agreement: %w", err)
	}

	return agreement, nil
}

func (r *ndaAgreementRepository) ListByUser(ctx context.Context, userID uuid.UUID, role string) ([]*models.NDAAgreement, error) {
	column := "a.buyer_id"
	if role == AgreementRoleSeller {
		column = "a.seller_id"
	}

	query := agreementSelect + fmt.Sprintf(` WHERE %s = $1 ORDER BY a.signed_at DESC`, column)

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query NDA agreements: %w", err)
	}
	defer rows.Close()

	var agreements []*models.NDAAgreement
	for rows.Next() {
		agreement, err := scanAgreementWithJoins(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan NDA agreement: %w", err)
		}
		agreements = append(agreements, agreement)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating NDA agreements: %w", err)
	}

	return agreements, nil
}

func (r *ndaAgreementRepository) MarkRenewalRequested(ctx context.Context, id uuid.UUID, now time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE nda_agreements
		SET renewal_requested = true, updated_at = $2
		WHERE id = $1`, id, now)
	if err != nil {
		return fmt.Errorf("failed to mark renewal requested: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanAgreementWithJoins(row pgx.Row) (*models.NDAAgreement, error) {
	var agreement models.NDAAgreement
	var listingID *uuid.UUID
	var listingTitle *string
	var buyerID, sellerID *uuid.UUID
	var buyerName, buyerEmail, sellerName, sellerEmail *string

	err := row.Scan(
		&agreement.ID,
		&agreement.ListingID,
		&agreement.BuyerID,
		&agreement.SellerID,
		&agreement.BuyerCompany,
		&agreement.Status,
		&agreement.SignedAt,
		&agreement.ExpiresAt,
		&agreement.DocumentURL,
		&agreement.RenewalRequested,
		&agreement.SecurityLevel,
		&agreement.UpdatedAt,
		&listingID,
		&listingTitle,
		&buyerID,
		&buyerName,
		&buyerEmail,
		&sellerID,
		&sellerName,
		&sellerEmail,
	)
	if err != nil {
		return nil, err
	}

	agreement.Listing = listingRef(listingID, listingTitle)
	agreement.Buyer = userRef(buyerID, buyerName, buyerEmail)
	agreement.Seller = userRef(sellerID, sellerName, sellerEmail)

	return &agreement, nil
}
