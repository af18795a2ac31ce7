package tracer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitTracingAndMetrics(t *testing.T) {
	p, err := InitTracingAndMetrics("driving-lms-auth-test", "test")
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	counter, err := otel.GetMeterProvider().Meter("test").Int64Counter("tracer_test_events_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	rr := httptest.NewRecorder()
	p.MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "tracer_test_events_total")
}
