package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MKhiriev/phi-guard/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestMetrics_Events(t *testing.T) {
	m := New()

	m.MutationApplied("Patient", "Create")
	m.MutationApplied("Patient", "Create")
	m.AuditAppended(true)
	m.ReviewItemQueued()
	m.ReviewTransitioned("Pending", "InReview")
	m.SecurityViolation()
	m.KeyRotated()
	m.RecordsResealed(3, 1)
	m.DecryptionFailed("key_retired")
	m.ObserveHTTP("/api/audit", http.StatusOK, time.Now())

	body := scrape(t, m)
	for _, line := range []string{
		`phi_guard_mutations_applied_total{action="Create",entity="Patient"} 2`,
		`phi_guard_audit_records_total{sensitive="true"} 1`,
		`phi_guard_review_items_queued_total 1`,
		`phi_guard_review_transitions_total{from="Pending",to="InReview"} 1`,
		`phi_guard_security_violations_total 1`,
		`phi_guard_key_rotations_total 1`,
		`phi_guard_records_resealed_total{result="migrated"} 3`,
		`phi_guard_records_resealed_total{result="failed"} 1`,
		`phi_guard_decryption_failures_total{reason="key_retired"} 1`,
		`phi_guard_http_request_duration_seconds_count{route="/api/audit",status="200"} 1`,
	} {
		assert.Contains(t, body, line)
	}
}

// TestNew_Independent verifies that two instances do not share a registry.
func TestNew_Independent(t *testing.T) {
	a, b := New(), New()
	a.KeyRotated()

	assert.Contains(t, scrape(t, a), "phi_guard_key_rotations_total 1")
	assert.Contains(t, scrape(t, b), "phi_guard_key_rotations_total 0")
}

var _ service.Observer = (*Metrics)(nil)

func TestMetrics_RecordsResealed_Accumulates(t *testing.T) {
	m := New()

	m.RecordsResealed(2, 0)
	m.RecordsResealed(5, 1)

	body := scrape(t, m)
	assert.Contains(t, body, `phi_guard_records_resealed_total{result="migrated"} 7`)
	assert.Contains(t, body, `phi_guard_records_resealed_total{result="failed"} 1`)
}
