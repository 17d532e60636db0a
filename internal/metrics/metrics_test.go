package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.RecordBackendRequest("stability", true, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.BackendRequests.WithLabelValues("stability", "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.BackendRequests.WithLabelValues("stability", "success")))
}

func TestRecordBackendRequest(t *testing.T) {
	m := New()
	m.RecordBackendRequest("model comparison", false, 20*time.Millisecond)
	m.RecordBackendRequest("model comparison", false, 30*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.BackendRequests.WithLabelValues("model comparison", "error")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.BackendLatency))
}

func TestRecordHTTPRequestAndSnapshot(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	m.RecordSnapshot("stability", true)
	m.RecordSnapshot("stability", false)
	m.RecordRateLimitWait(time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotsRecorded.WithLabelValues("stability", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SnapshotsRecorded.WithLabelValues("stability", "failure")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordBackendRequest("x", true, 0)
		m.RecordHTTPRequest("GET", "/", 200, 0)
		m.RecordSnapshot("x", true)
		m.RecordRateLimitWait(0)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.RecordHTTPRequest("GET", "/api/me", 401, time.Millisecond)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `wutboard_http_requests_total{method="GET",path="/api/me",status="401"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
