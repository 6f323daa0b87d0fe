package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorsAreIndependentPerInstance(t *testing.T) {
	a := New()
	b := New()

	a.SessionsOpened.Inc()
	a.Transitions.WithLabelValues("waiting", "assigned").Inc()

	assert.Equal(t, 1.0, counterValue(t, a.SessionsOpened))
	assert.Equal(t, 0.0, counterValue(t, b.SessionsOpened))
	assert.Equal(t, 1.0, counterValue(t, a.Transitions.WithLabelValues("waiting", "assigned")))
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.MessagesAppended.WithLabelValues("visitor").Inc()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `chatdesk_messages_appended_total{sender="visitor"} 1`)
}
