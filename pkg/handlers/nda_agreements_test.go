package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dealroom-hq/dealroom-engine/pkg/apperrors"
	"github.com/dealroom-hq/dealroom-engine/pkg/models"
)

func newAgreementMux(svc *mockNDAAgreementService) *http.ServeMux {
	handler := NewNDAAgreementHandler(svc, zap.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authedMiddleware(adminClaims("buyer@example.com")))
	return mux
}

func TestRequestRenewal(t *testing.T) {
	id := uuid.New()
	svc := &mockNDAAgreementService{
		renewalSummary: models.AgreementSummary{
			ID:               id,
			RenewalRequested: true,
			SecurityLevel:    models.SecurityLevelStandard,
			AuditTrail:       []models.AuditEventSummary{},
		},
	}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/ndas/"+id.String()+"/renewal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, svc.renewalCalls)

	var body renewalResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Agreement.RenewalRequested)
	assert.Contains(t, rec.Body.String(), `"renewalRequested":true`)
}

func TestRequestRenewal_InvalidID(t *testing.T) {
	svc := &mockNDAAgreementService{}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/ndas/not-a-uuid/renewal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, svc.renewalCalls)
}

func TestRequestRenewal_NotFound(t *testing.T) {
	svc := &mockNDAAgreementService{renewalErr: apperrors.ErrNotFound}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/ndas/"+uuid.NewString()+"/renewal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRequestRenewal_NonBuyerForbidden(t *testing.T) {
	svc := &mockNDAAgreementService{
		renewalErr: fmt.Errorf("only the agreement's buyer may request renewal: %w", apperrors.ErrForbidden),
	}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/ndas/"+uuid.NewString()+"/renewal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Only the agreement's buyer may request renewal", body["error"])
}

func TestRequestRenewal_Unauthenticated(t *testing.T) {
	svc := &mockNDAAgreementService{}
	handler := NewNDAAgreementHandler(svc, zap.NewNop())
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, rejectingMiddleware())

	req := httptest.NewRequest(http.MethodPost, "/api/ndas/"+uuid.NewString()+"/renewal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, svc.renewalCalls)
}

func TestRequestRenewal_ServiceFailure(t *testing.T) {
	svc := &mockNDAAgreementService{renewalErr: fmt.Errorf("pool closed")}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/ndas/"+uuid.NewString()+"/renewal", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Failed to request renewal", body["error"])
}

func TestListAgreements_DefaultRole(t *testing.T) {
	svc := &mockNDAAgreementService{
		listSummaries: []models.AgreementSummary{
			{ID: uuid.New(), AuditTrail: []models.AuditEventSummary{}},
		},
	}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/ndas", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", svc.lastRole, "role default is applied by the service")

	var body listAgreementsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Agreements, 1)
}

func TestListAgreements_SellerRole(t *testing.T) {
	svc := &mockNDAAgreementService{listSummaries: []models.AgreementSummary{}}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/ndas?role=seller", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seller", svc.lastRole)
	assert.Contains(t, rec.Body.String(), `"agreements":[]`)
}

func TestListAgreements_InvalidRole(t *testing.T) {
	svc := &mockNDAAgreementService{
		listErr: fmt.Errorf("role must be buyer or seller: %w", apperrors.ErrInvalidStatus),
	}
	mux := newAgreementMux(svc)

	req := httptest.NewRequest(http.MethodGet, "/api/ndas?role=broker", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
