package models

import (
	"time"

	"github.com/google/uuid"
)

// Agreement security levels. Anything persisted other than "strict" is
// treated as "standard" at the API boundary.
const (
	SecurityLevelStandard = "standard"
	SecurityLevelStrict   = "strict"
)

// NormalizeSecurityLevel coerces a persisted security level to exactly one
// of standard|strict.
func NormalizeSecurityLevel(s string) string {
	if s == SecurityLevelStrict {
		return SecurityLevelStrict
	}
	return SecurityLevelStandard
}

// NDAAgreement represents a signed confidentiality agreement between a buyer
// and a seller for one listing. Stored in the nda_agreements table.
// RenewalRequested is monotonic: once true it never flips back.
type NDAAgreement struct {
	ID               uuid.UUID `json:"id"`
	ListingID        uuid.UUID `json:"listing_id"`
	BuyerID          uuid.UUID `json:"buyer_id"`
	SellerID         uuid.UUID `json:"seller_id"`
	BuyerCompany     string    `json:"buyer_company"`
	Status           string    `json:"status"`
	SignedAt         time.Time `json:"signed_at"`
	ExpiresAt        time.Time `json:"expires_at"`
	DocumentURL      string    `json:"document_url"`
	RenewalRequested bool      `json:"renewal_requested"`
	SecurityLevel    string    `json:"security_level"`
	UpdatedAt        time.Time `json:"updated_at"`

	Listing    *ListingRef   `json:"listing,omitempty"`
	Buyer      *UserRef      `json:"buyer,omitempty"`
	Seller     *UserRef      `json:"seller,omitempty"`
	AuditTrail []*AuditEvent `json:"audit_trail,omitempty"`
}
