package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManagersHaveIndependentRegistries(t *testing.T) {
	first := NewManager()
	second := NewManager()

	first.GetPrometheusMetrics().RecordBookmark("advanced")
	first.GetPrometheusMetrics().RecordBookmark("advanced")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.GetPrometheusMetrics().BookmarksTotal.WithLabelValues("advanced")))
	assert.Equal(t, 0.0, testutil.ToFloat64(second.GetPrometheusMetrics().BookmarksTotal.WithLabelValues("advanced")))
}

func TestHandlerExposesRecordedMetrics(t *testing.T) {
	m := NewManager()
	pm := m.GetPrometheusMetrics()
	pm.RecordActivityAppended("Insight", "success")
	pm.RecordFeedRequest("success", 3, 5*time.Millisecond)
	pm.RecordRetry("bookmark", "CONCURRENCY_ERROR")
	m.UpdateSystemMetrics()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `activity_entries_appended_total{scope="Insight",status="success"} 1`)
	assert.Contains(t, body, `activity_storage_retries_total{error_code="CONCURRENCY_ERROR",operation="bookmark"} 1`)
	assert.Contains(t, body, "activity_feed_result_size_bucket")
	assert.Contains(t, body, "activity_goroutines")
}
