package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMetricsNilSafe(t *testing.T) {
	var m *Metrics
	m.ObserveGate("acquired", time.Second)
	m.IncPipelineItem("accepted")
	m.AddEventsCreated("COMBAT", 2)
	m.SetGateDegraded(true)
	require.Nil(t, m.Registry())
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetrics()
	m.ObserveGate("timeout", 2*time.Second)
	m.IncPipelineItem("duplicate")
	m.IncPipelineItem("duplicate")
	m.AddEventsCreated("", 3)

	require.Equal(t, 2.0, testutil.ToFloat64(m.pipelineItems.WithLabelValues("duplicate")))
	require.Equal(t, 3.0, testutil.ToFloat64(m.eventsCreated.WithLabelValues("none")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "frontline_gate_acquire_total"))
}
