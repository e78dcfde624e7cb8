package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

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

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.DocumentSubmitted("ANALYZED")
	m.DocumentSubmitted("ANALYZED")
	m.DocumentSubmitted("FAILED")
	m.DownloadAttempted("direct", false)
	m.DownloadAttempted("raw_passthrough", true)
	m.TaxCalculated("Old Regime")
	m.ExtractionObserved("success", 1500*time.Millisecond)
	m.ObserveRequest("GET", 404)

	body := scrape(t, m)
	for _, line := range []string{
		`open_audit_documents_submitted_total{status="ANALYZED"} 2`,
		`open_audit_documents_submitted_total{status="FAILED"} 1`,
		`open_audit_download_attempts_total{result="failure",strategy="direct"} 1`,
		`open_audit_download_attempts_total{result="success",strategy="raw_passthrough"} 1`,
		`open_audit_tax_calculations_total{recommendation="Old Regime"} 1`,
		`open_audit_http_requests_total{code="404",method="GET"} 1`,
		`open_audit_extraction_duration_seconds_count{outcome="success"} 1`,
		`open_audit_extraction_duration_seconds_bucket{outcome="success",le="2.5"} 1`,
		`open_audit_extraction_duration_seconds_bucket{outcome="success",le="1"} 0`,
	} {
		assert.Contains(t, body, line)
	}
	assert.True(t, strings.Contains(body, "go_goroutines"))
}

func TestMetrics_Gather(t *testing.T) {
	m := New()
	m.TaxCalculated("New Regime")

	families, err := m.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "open_audit_tax_calculations_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found)
}

func TestNew_IndependentRegistries(t *testing.T) {
	// Separate instances must not collide on registration.
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
