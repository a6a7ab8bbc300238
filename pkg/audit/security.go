// Package audit provides security audit logging for SIEM consumption.
// It logs security-relevant events in structured JSON format for easy parsing
// and integration with security information and event management systems.
package audit

import (
	"context"
	"encoding/json"
	"time"

	libinjection "github.com/corazawaf/libinjection-go"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
)

// SecurityEventType categorizes security-relevant events for filtering and alerting.
type SecurityEventType string

const (
	// EventInjectionAttempt is logged when libinjection detects SQL injection
	// patterns in free-text input (decision notes).
	EventInjectionAttempt SecurityEventType = "sql_injection_attempt"
	// EventAdminDenied is logged when an authenticated caller fails the
	// administrator allow-list check.
	EventAdminDenied SecurityEventType = "admin_authorization_denied"
)

// SecurityEvent represents an auditable security event with all relevant
// context for SIEM ingestion and analysis.
type SecurityEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType SecurityEventType `json:"event_type"`
	TargetID  uuid.UUID         `json:"target_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	ClientIP  string            `json:"client_ip,omitempty"`
	Details   any               `json:"details"`
	Severity  string            `json:"severity"` // info, warning, critical
}

// InjectionDetails contains specifics of a detected injection attempt.
type InjectionDetails struct {
	FieldName   string `json:"field_name"`
	FieldValue  string `json:"field_value"`
	Fingerprint string `json:"fingerprint"` // libinjection fingerprint for pattern analysis
}

// SecurityAuditor logs security events for SIEM consumption. All free-text
// input reaching the NDA workflow is parameterized before persistence, so
// screening never blocks a request; hits are purely observability.
type SecurityAuditor struct {
	logger *zap.Logger
}

// NewSecurityAuditor creates a new security auditor with a dedicated logger
// namespace for easy filtering in SIEM systems.
func NewSecurityAuditor(logger *zap.Logger) *SecurityAuditor {
	return &SecurityAuditor{logger: logger.Named("security_audit")}
}

// ScreenNote checks free-text input for SQL injection patterns and logs a
// critical security event on a hit. The context is used to extract the user
// ID from JWT claims if available; clientIP is typically r.RemoteAddr.
func (a *SecurityAuditor) ScreenNote(ctx context.Context, targetID uuid.UUID, fieldName, value, clientIP string) {
	isSQLi, fingerprint := libinjection.IsSQLi(value)
	if !isSQLi {
		return
	}

	a.logEvent(ctx, SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventInjectionAttempt,
		TargetID:  targetID,
		ClientIP:  clientIP,
		Details: InjectionDetails{
			FieldName:   fieldName,
			FieldValue:  value,
			Fingerprint: string(fingerprint),
		},
		Severity: "critical",
	})
}

// LogAdminDenied records an authenticated caller failing the administrator
// allow-list check. Logged at WARN; a burst of these is worth alerting on.
func (a *SecurityAuditor) LogAdminDenied(ctx context.Context, path, clientIP string) {
	a.logEvent(ctx, SecurityEvent{
		Timestamp: time.Now().UTC(),
		EventType: EventAdminDenied,
		ClientIP:  clientIP,
		Details: map[string]string{
			"path": path,
		},
		Severity: "warning",
	})
}

func (a *SecurityAuditor) logEvent(ctx context.Context, event SecurityEvent) {
	event.UserID = auth.GetUserIDFromContext(ctx)

	// Serialize event to JSON for SIEM ingestion.
	// Ignoring error as marshaling known types should never fail.
	eventJSON, _ := json.Marshal(event)

	fields := []zap.Field{
		zap.String("event_json", string(eventJSON)),
		zap.String("event_type", string(event.EventType)),
		zap.String("client_ip", event.ClientIP),
		zap.String("user_id", event.UserID),
		zap.String("severity", event.Severity),
	}

	switch event.Severity {
	case "critical":
		a.logger.Error("Security event", fields...)
	default:
		a.logger.Warn("Security event", fields...)
	}
}
