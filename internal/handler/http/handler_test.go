package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MKhiriev/phi-guard/internal/config"
	"github.com/MKhiriev/phi-guard/internal/logger"
	"github.com/MKhiriev/phi-guard/internal/metrics"
	"github.com/MKhiriev/phi-guard/internal/service"
	"github.com/MKhiriev/phi-guard/internal/utils"
	"github.com/MKhiriev/phi-guard/models"
	"github.com/stretchr/testify/require"
)

// ---- Mocks of the service interfaces ----

type mockAudit struct {
	service.ChangeAuditRecorder

	query  func(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error)
	verify func(ctx context.Context) (models.ChainVerification, error)
	stats  func(ctx context.Context) (models.AuditStatistics, error)
}

func (m *mockAudit) Query(ctx context.Context, q models.AuditQuery) ([]models.AuditRecord, error) {
	return m.query(ctx, q)
}

func (m *mockAudit) Verify(ctx context.Context) (models.ChainVerification, error) {
	return m.verify(ctx)
}

func (m *mockAudit) Statistics(ctx context.Context) (models.AuditStatistics, error) {
	return m.stats(ctx)
}

type mockReviews struct {
	service.ReviewQueue

	listPending func(ctx context.Context, limit uint64) ([]models.ReviewItem, error)
	list        func(ctx context.Context, status models.ReviewStatus, limit uint64) ([]models.ReviewItem, error)
	transition  func(ctx context.Context, req models.TransitionRequest) (*models.ReviewItem, error)
}

func (m *mockReviews) ListPending(ctx context.Context, limit uint64) ([]models.ReviewItem, error) {
	return m.listPending(ctx, limit)
}

func (m *mockReviews) List(ctx context.Context, status models.ReviewStatus, limit uint64) ([]models.ReviewItem, error) {
	return m.list(ctx, status, limit)
}

func (m *mockReviews) Transition(ctx context.Context, req models.TransitionRequest) (*models.ReviewItem, error) {
	return m.transition(ctx, req)
}

type mockKeys struct {
	service.KeyLifecycleManager

	versions func() []models.EncryptionKeyVersion
	pending  func(ctx context.Context) (int64, error)
	due      func(now time.Time) (bool, string)
}

func (m *mockKeys) Versions() []models.EncryptionKeyVersion { return m.versions() }

func (m *mockKeys) PendingReencryptionCount(ctx context.Context) (int64, error) {
	return m.pending(ctx)
}

func (m *mockKeys) RotationDue(now time.Time) (bool, string) { return m.due(now) }

// ---- Helpers ----

var testApp = config.App{
	TokenSignKey:  "test-sign-key",
	TokenIssuer:   "phi-guard-test",
	TokenDuration: time.Hour,
	Version:       "1.2.3",
}

func newTestHandler(services *service.Services) *Handler {
	if services == nil {
		services = &service.Services{}
	}
	return NewHandler(services, metrics.New(), testApp, logger.Nop())
}

func bearer(t *testing.T, actor string) string {
	t.Helper()
	token, err := utils.GenerateJWTToken(testApp.TokenIssuer, actor, time.Hour, testApp.TokenSignKey)
	require.NoError(t, err)
	return "Bearer " + token.SignedString
}

// serve runs one request through the full router as reviewer "rev@clinic".
func serve(t *testing.T, h *Handler, method, target string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Authorization", bearer(t, "rev@clinic"))
	rr := httptest.NewRecorder()
	h.Init().ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}
