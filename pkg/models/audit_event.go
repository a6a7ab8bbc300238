package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Audit event types. Decision events mirror the decision outcome; automated
// actions (renewal requests) are recorded as "system".
const (
	AuditEventApproved = "approved"
	AuditEventDeclined = "declined"
	AuditEventSystem   = "system"
)

// AuditSubjectKind identifies which parent entity an audit event belongs to.
type AuditSubjectKind string

const (
	AuditSubjectRequest   AuditSubjectKind = "request"
	AuditSubjectAgreement AuditSubjectKind = "agreement"
)

// AuditSubject is the tagged parent reference of an audit event: exactly one
// of request or agreement. Representing the pair as a tagged union keeps the
// mutual-exclusivity invariant structural instead of convention-enforced.
type AuditSubject struct {
	Kind AuditSubjectKind `json:"kind"`
	ID   uuid.UUID        `json:"id"`
}

// RequestSubject returns an AuditSubject referencing an NDA request.
func RequestSubject(id uuid.UUID) AuditSubject {
	return AuditSubject{Kind: AuditSubjectRequest, ID: id}
}

// AgreementSubject returns an AuditSubject referencing an NDA agreement.
func AgreementSubject(id uuid.UUID) AuditSubject {
	return AuditSubject{Kind: AuditSubjectAgreement, ID: id}
}

// Validate checks that the subject carries a known kind and a non-nil id.
func (s AuditSubject) Validate() error {
	if s.Kind != AuditSubjectRequest && s.Kind != AuditSubjectAgreement {
		return fmt.Errorf("unknown audit subject kind: %q", s.Kind)
	}
	if s.ID == uuid.Nil {
		return fmt.Errorf("audit subject id must not be nil")
	}
	return nil
}

// AuditEvent is one append-only log entry describing a state-changing action
// against an NDA request or agreement. Stored in the nda_audit_events table;
// its lifetime is tied to the parent row and it is never updated or
// independently deleted.
type AuditEvent struct {
	ID        uuid.UUID    `json:"id"`
	EventType string       `json:"event_type"`
	CreatedAt time.Time    `json:"created_at"`
	CreatedBy string       `json:"created_by"` // acting user's email or id
	Subject   AuditSubject `json:"subject"`
	Note      *string      `json:"note,omitempty"`
}
