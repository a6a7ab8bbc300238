package models

import (
	"time"

	"github.com/google/uuid"
)

// NDA request lifecycle statuses. Stored in nda_requests.status.
const (
	RequestStatusPending  = "pending"
	RequestStatusApproved = "approved"
	RequestStatusDeclined = "declined"
	RequestStatusSigned   = "signed"
	RequestStatusExpired  = "expired"
)

// MaxNoteLength is the maximum length of a decision note after trimming.
const MaxNoteLength = 500

// ValidRequestStatus reports whether s is a known lifecycle status.
func ValidRequestStatus(s string) bool {
	switch s {
	case RequestStatusPending, RequestStatusApproved, RequestStatusDeclined,
		RequestStatusSigned, RequestStatusExpired:
		return true
	}
	return false
}

// ValidDecision reports whether s is an acceptable admin decision input.
func ValidDecision(s string) bool {
	return s == RequestStatusApproved || s == RequestStatusDeclined
}

// CanTransition reports whether a request may move from one status to
// another via the decision endpoint. Only pending requests may be decided;
// terminal states reject further decisions.
func CanTransition(from, to string) bool {
	if from != RequestStatusPending {
		return false
	}
	return ValidDecision(to)
}

// ListingRef is the identity slice of a listing joined onto a request or
// agreement. Nil when the listing row has been removed.
type ListingRef struct {
	ID    uuid.UUID `json:"id"`
	Title string    `json:"title"`
}

// UserRef is the identity slice of a marketplace user joined onto a request
// or agreement. Nil when the user row has been removed.
type UserRef struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
}

// NDARequest represents a buyer's ask for confidential access to a listing.
// Stored in the nda_requests table; Listing/Buyer/Seller are joined identity
// slices and AuditTrail is the newest-first event collection.
type NDARequest struct {
	ID             uuid.UUID `json:"id"`
	ListingID      uuid.UUID `json:"listing_id"`
	BuyerID        uuid.UUID `json:"buyer_id"`
	SellerID       uuid.UUID `json:"seller_id"`
	Status         string    `json:"status"`
	RiskLevel      string    `json:"risk_level"`
	Notes          *string   `json:"notes,omitempty"`
	RequestedAt    time.Time `json:"requested_at"`
	LastActivityAt time.Time `json:"last_activity_at"`

	Listing    *ListingRef   `json:"listing,omitempty"`
	Buyer      *UserRef      `json:"buyer,omitempty"`
	Seller     *UserRef      `json:"seller,omitempty"`
	AuditTrail []*AuditEvent `json:"audit_trail,omitempty"`
}
