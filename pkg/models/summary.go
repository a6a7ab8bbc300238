package models

import (
	"time"

	"github.com/google/uuid"
)

// Fallback display strings substituted when a joined relation is null
// (e.g. the listing or user row has been removed).
const (
	FallbackListingTitle = "Untitled listing"
	FallbackSellerName   = "Seller"
	FallbackBuyerName    = "Buyer"
)

// AuditEventSummary is the API-facing shape of an audit event.
type AuditEventSummary struct {
	ID        uuid.UUID `json:"id"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt"`
	CreatedBy string    `json:"createdBy"`
	Note      *string   `json:"note,omitempty"`
}

// RequestSummary is the API-facing shape of an NDA request: joined relations
// flattened to display names with documented fallbacks, snake_case persisted
// fields renamed to camelCase. The transform is one-way; writes use the
// persisted field names directly.
type RequestSummary struct {
	ID             uuid.UUID           `json:"id"`
	ListingID      uuid.UUID           `json:"listingId"`
	BuyerID        uuid.UUID           `json:"buyerId"`
	SellerID       uuid.UUID           `json:"sellerId"`
	ListingTitle   string              `json:"listingTitle"`
	BuyerName      string              `json:"buyerName"`
	SellerName     string              `json:"sellerName"`
	Status         string              `json:"status"`
	RiskLevel      string              `json:"riskLevel"`
	Notes          *string             `json:"notes,omitempty"`
	RequestedAt    time.Time           `json:"requestedAt"`
	LastActivityAt time.Time           `json:"lastActivityAt"`
	AuditTrail     []AuditEventSummary `json:"auditTrail"`
}

// AgreementSummary is the API-facing shape of an NDA agreement.
type AgreementSummary struct {
	ID               uuid.UUID           `json:"id"`
	ListingID        uuid.UUID           `json:"listingId"`
	BuyerID          uuid.UUID           `json:"buyerId"`
	SellerID         uuid.UUID           `json:"sellerId"`
	ListingTitle     string              `json:"listingTitle"`
	BuyerName        string              `json:"buyerName"`
	SellerName       string              `json:"sellerName"`
	BuyerCompany     string              `json:"buyerCompany"`
	Status           string              `json:"status"`
	SignedAt         time.Time           `json:"signedAt"`
	ExpiresAt        time.Time           `json:"expiresAt"`
	DocumentURL      string              `json:"documentUrl"`
	RenewalRequested bool                `json:"renewalRequested"`
	SecurityLevel    string              `json:"securityLevel"`
	UpdatedAt        time.Time           `json:"updatedAt"`
	AuditTrail       []AuditEventSummary `json:"auditTrail"`
}

// Summary maps a persisted request row (with joined relations) to its
// API-facing shape. Pure, no side effects.
func (r *NDARequest) Summary() RequestSummary {
	return RequestSummary{
		ID:             r.ID,
		ListingID:      r.ListingID,
		BuyerID:        r.BuyerID,
		SellerID:       r.SellerID,
		ListingTitle:   listingTitle(r.Listing),
		BuyerName:      userName(r.Buyer, FallbackBuyerName),
		SellerName:     userName(r.Seller, FallbackSellerName),
		Status:         r.Status,
		RiskLevel:      r.RiskLevel,
		Notes:          r.Notes,
		RequestedAt:    r.RequestedAt,
		LastActivityAt: r.LastActivityAt,
		AuditTrail:     auditTrailSummaries(r.AuditTrail),
	}
}

// Summary maps a persisted agreement row (with joined relations) to its
// API-facing shape, normalizing the security level.
func (a *NDAAgreement) Summary() AgreementSummary {
	return AgreementSummary{
		ID:               a.ID,
		ListingID:        a.ListingID,
		BuyerID:          a.BuyerID,
		SellerID:         a.SellerID,
		ListingTitle:     listingTitle(a.Listing),
		BuyerName:        userName(a.Buyer, FallbackBuyerName),
		SellerName:       userName(a.Seller, FallbackSellerName),
		BuyerCompany:     a.BuyerCompany,
		Status:           a.Status,
		SignedAt:         a.SignedAt,
		ExpiresAt:        a.ExpiresAt,
		DocumentURL:      a.DocumentURL,
		RenewalRequested: a.RenewalRequested,
		SecurityLevel:    NormalizeSecurityLevel(a.SecurityLevel),
		UpdatedAt:        a.UpdatedAt,
		AuditTrail:       auditTrailSummaries(a.AuditTrail),
	}
}

// Summary maps an audit event to its API-facing shape.
func (e *AuditEvent) Summary() AuditEventSummary {
	return AuditEventSummary{
		ID:        e.ID,
		Type:      e.EventType,
		CreatedAt: e.CreatedAt,
		CreatedBy: e.CreatedBy,
		Note:      e.Note,
	}
}

func listingTitle(l *ListingRef) string {
	if l == nil || l.Title == "" {
		return FallbackListingTitle
	}
	return l.Title
}

func userName(u *UserRef, fallback string) string {
	if u == nil || u.DisplayName == "" {
		return fallback
	}
	return u.DisplayName
}

// auditTrailSummaries maps the event collection, substituting an empty slice
// for an absent one so the API never serializes null.
func auditTrailSummaries(events []*AuditEvent) []AuditEventSummary {
	summaries := make([]AuditEventSummary, 0, len(events))
	for _, e := range events {
		summaries = append(summaries, e.Summary())
	}
	return summaries
}
