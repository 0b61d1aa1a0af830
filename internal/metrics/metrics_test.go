package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()
	m.Observe("add_task", true, time.Millisecond)
	m.Observe("add_task", true, time.Millisecond)
	m.Observe("add_task", false, time.Millisecond)
	m.Reject("invalid_json")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("add_task", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("add_task", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.rejected.WithLabelValues("invalid_json")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("x", true, 0)
		m.Reject("y")
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.Observe("get_task", true, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `taskledger_requests_total{method="get_task",status="ok"} 1`)
}
