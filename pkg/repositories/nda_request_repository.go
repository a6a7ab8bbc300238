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

// NDARequestRepository provides data access for NDA requests.
type NDARequestRepository interface {
	// GetByID returns one request with joined listing/buyer/seller identity.
	// The audit trail is NOT loaded; callers attach it separately.
	// Returns apperrors.ErrNotFound if the row is missing.
	GetByID(ctx context.Context, id uuid.UUID) (*models.NDARequest, error)

	// List returns requests with joined identity, optionally filtered by
	// status, ordered by requested_at descending.
	List(ctx context.Context, statusFilter string) ([]*models.NDARequest, error)

	// ApplyDecision updates status and last_activity_at in a single statement
	// scoped by id, conditioned on the row still being pending. Returns the
	// updated row (without joins), apperrors.ErrNotFound if the row is
	// missing, or apperrors.ErrInvalidTransition if the row is no longer
	// pending (e.g. a concurrent decision won).
	ApplyDecision(ctx context.Context, id uuid.UUID, status string, now time.Time) (*models.NDARequest, error)
}

type ndaRequestRepository struct {
	db *database.DB
}

// NewNDARequestRepository creates a new NDARequestRepository.
func NewNDARequestRepository(db *database.DB) NDARequestRepository {
	return &ndaRequestRepository{db: db}
}

var _ NDARequestRepository = (*ndaRequestRepository)(nil)

// requestSelect joins the identity slices of listing, buyer and seller.
// LEFT JOINs: a removed listing or user must not hide the request.
const requestSelect = `
	SELECT r.id, r.listing_id, r.buyer_id, r.seller_id, r.status, r.risk_level,
	       r.notes, r.requested_at, r.last_activity_at,
	       l.id, l.title,
	       b.id, b.display_name, b.email,
	       s.id, s.display_name, s.email
	FROM nda_requests r
	LEFT JOIN listings l ON l.id = r.listing_id
	LEFT JOIN marketplace_users b ON b.id = r.buyer_id
	LEFT JOIN marketplace_users s ON s.id = r.seller_id`

func (r *ndaRequestRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.NDARequest, error) {
	row := r.db.QueryRow(ctx, requestSelect+` WHERE r.id = $1`, id)

	request, err := scanRequestWithJoins(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get NDA request: %w", err)
	}

	return request, nil
}

func (r *ndaRequestRepository) List(ctx context.Context, statusFilter string) ([]*models.NDARequest, error) {
	query := requestSelect
	args := []any{}
	if statusFilter != "" {
		query += ` WHERE r.status = $1`
		args = append(args, statusFilter)
	}
	query += ` ORDER BY r.requested_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query NDA requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.NDARequest
	for rows.Next() {
		request, err := scanRequestWithJoins(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan NDA request: %w", err)
		}
		requests = append(requests, request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating NDA requests: %w", err)
	}

	return requests, nil
}

func (r *ndaRequestRepository) ApplyDecision(ctx context.Context, id uuid.UUID, status string, now time.Time) (*models.NDARequest, error) {
	// Conditioning on status = 'pending' makes the transition guard hold
	// under concurrent decisions: the loser matches zero rows.
	query := `
		UPDATE nda_requests
		SET status = $2, last_activity_at = $3
		WHERE id = $1 AND status = $4
		RETURNING id, listing_id, buyer_id, seller_id, status, risk_level,
		          notes, requested_at, last_activity_at`

	row := r.db.QueryRow(ctx, query, id, status, now, models.RequestStatusPending)

	var request models.NDARequest
	err := row.Scan(
		&request.ID,
		&request.ListingID,
		&request.BuyerID,
		&request.SellerID,
		&request.Status,
		&request.RiskLevel,
		&request.Notes,
		&request.RequestedAt,
		&request.LastActivityAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, r.classifyDecisionMiss(ctx, id)
		}
		return nil, fmt.Errorf("failed to apply decision: %w", err)
	}

	return &request, nil
}

// classifyDecisionMiss distinguishes a missing row from a row that is no
// longer pending after the conditional update matched nothing.
func (r *ndaRequestRepository) classifyDecisionMiss(ctx context.Context, id uuid.UUID) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM nda_requests WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		return fmt.Errorf("failed to classify decision miss: %w", err)
	}
	return fmt.Errorf("request is %s: %w", status, apperrors.ErrInvalidTransition)
}

func scanRequestWithJoins(row pgx.Row) (*models.NDARequest, error) {
	var request models.NDARequest
	var listingID *uuid.UUID
	var listingTitle *string
	var buyerID, sellerID *uuid.UUID
	var buyerName, buyerEmail, sellerName, sellerEmail *string

	err := row.Scan(
		&request.ID,
		&request.ListingID,
		&request.BuyerID,
		&request.SellerID,
		&request.Status,
		&request.RiskLevel,
		&request.Notes,
		&request.RequestedAt,
		&request.LastActivityAt,
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

	request.Listing = listingRef(listingID, listingTitle)
	request.Buyer = userRef(buyerID, buyerName, buyerEmail)
	request.Seller = userRef(sellerID, sellerName, sellerEmail)

	return &request, nil
}

func listingRef(id *uuid.UUID, title *string) *models.ListingRef {
	if id == nil {
		return nil
	}
	ref := &models.ListingRef{ID: *id}
	if title != nil {
		ref.Title = *title
	}
	return ref
}

func userRef(id *uuid.UUID, name, email *string) *models.UserRef {
	if id == nil {
		return nil
	}
	ref := &models.UserRef{ID: *id}
	if name != nil {
		ref.DisplayName = *name
	}
	if email != nil {
		ref.Email = *email
	}
	return ref
}
