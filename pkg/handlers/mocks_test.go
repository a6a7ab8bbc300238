package handlers

import (
	"context"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/auth"
	"github.com/dealroom-hq/dealroom-engine/pkg/config"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
)

// mockAuthService returns fixed claims (or an error) regardless of the request,
// letting handler tests exercise the middleware chain without real JWTs.
type mockAuthService struct {
	claims *auth.Claims
	err    error
}

func (m *mockAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if m.err != nil {
		return nil, "", m.err
	}
	return m.claims, "test-token", nil
}

func adminClaims(email string) *auth.Claims {
	return &auth.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: uuid.NewString()},
		Email:            email,
	}
}

// authedMiddleware builds an auth.Middleware that accepts every request as the
// given identity, with admins on the allow-list.
func authedMiddleware(claims *auth.Claims, adminEmails ...string) *auth.Middleware {
	set := make(map[string]struct{}, len(adminEmails))
	for _, e := range adminEmails {
		set[e] = struct{}{}
	}
	ac := &config.AdminConfig{Emails: set}
	return auth.NewMiddleware(&mockAuthService{claims: claims}, ac, zap.NewNop())
}

// rejectingMiddleware builds an auth.Middleware whose auth service rejects
// every request.
func rejectingMiddleware() *auth.Middleware {
	ac := &config.AdminConfig{Emails: map[string]struct{}{}}
	return auth.NewMiddleware(&mockAuthService{err: auth.ErrMissingAuthorization}, ac, zap.NewNop())
}

// mockNDARequestService records calls and returns canned results.
type mockNDARequestService struct {
	decideSummary models.RequestSummary
	decideErr     error
	decideCalls   int
	lastDecision  string
	lastNote      *string

	listSummaries []models.RequestSummary
	listErr       error
	lastFilter    string
}

func (m *mockNDARequestService) Decide(ctx context.Context, id uuid.UUID, decision string, note *string) (models.RequestSummary, error) {
	m.decideCalls++
	m.lastDecision = decision
	m.lastNote = note
	if m.decideErr != nil {
		return models.RequestSummary{}, m.decideErr
	}
	return m.decideSummary, nil
}

func (m *mockNDARequestService) List(ctx context.Context, statusFilter string) ([]models.RequestSummary, error) {
	m.lastFilter = statusFilter
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listSummaries, nil
}

// mockNDAAgreementService records calls and returns canned results.
type mockNDAAgreementService struct {
	renewalSummary models.AgreementSummary
	renewalErr     error
	renewalCalls   int

	listSummaries []models.AgreementSummary
	listErr       error
	lastRole      string
}

func (m *mockNDAAgreementService) RequestRenewal(ctx context.Context, id uuid.UUID) (models.AgreementSummary, error) {
	m.renewalCalls++
	if m.renewalErr != nil {
		return models.AgreementSummary{}, m.renewalErr
	}
	return m.renewalSummary, nil
}

func (m *mockNDAAgreementService) ListForUser(ctx context.Context, role string) ([]models.AgreementSummary, error) {
	m.lastRole = role
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.listSummaries, nil
}
