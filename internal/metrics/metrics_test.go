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

func TestObserveUpstream(t *testing.T) {
	before := testutil.ToFloat64(upstreamRequests.WithLabelValues("sensors", "200"))
	ObserveUpstream("sensors", http.StatusOK, 10*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamRequests.WithLabelValues("sensors", "200")))

	before = testutil.ToFloat64(upstreamRequests.WithLabelValues("token", "error"))
	ObserveUpstream("token", 0, time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(upstreamRequests.WithLabelValues("token", "error")))
}

func TestAddSessionsPurged(t *testing.T) {
	before := testutil.ToFloat64(sessionsPurged)
	AddSessionsPurged(0)
	AddSessionsPurged(3)
	assert.Equal(t, before+3, testutil.ToFloat64(sessionsPurged))
}

func TestHandler(t *testing.T) {
	ObserveUpstream("sensors", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gsnweb_upstream_requests_total")
}
