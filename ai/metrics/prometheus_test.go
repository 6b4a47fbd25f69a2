package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterRecordsAndServes(t *testing.T) {
	e := NewPrometheusExporter(Config{})

	e.RecordPlanRequest(true, 120*time.Millisecond, true)
	e.RecordPlanRequest(false, 5*time.Millisecond, false)
	e.RecordRetrievalHits("global", 3)
	e.RecordRetrievalHits("user", 1)
	e.RecordVerification("cel", 2*time.Millisecond, true)
	e.RecordVerification("mathjs", 40*time.Millisecond, false)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "mathsense_ai_plan_requests_total"))
	assert.True(t, strings.Contains(body, `mathsense_ai_retrieval_hits_total{source="global"} 3`))
	assert.True(t, strings.Contains(body, `mathsense_ai_verification_errors_total{tool="mathjs"} 1`))
}

func TestExporterSharedRegistry(t *testing.T) {
	e := NewPrometheusExporter(Config{})
	assert.NotNil(t, e.Registry())
}
