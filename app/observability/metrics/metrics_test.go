package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Metrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	byName := map[string]metricdata.Metrics{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			byName[m.Name] = m
		}
	}
	return byName
}

func TestAppMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	otel.SetMeterProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)))

	m := Get()
	require.NotNil(t, m)
	assert.Same(t, m, Get())

	ctx := context.Background()
	Outcome(ctx, m.LoginAttemptsTotal, "success")
	Outcome(ctx, m.LoginAttemptsTotal, "rejected")
	Outcome(ctx, m.LoginAttemptsTotal, "rejected")
	m.ObserveQuery(ctx, "get_user_by_email", time.Now(), nil)
	m.ObserveQuery(ctx, "create_user", time.Now(), errors.New("boom"))

	got := collect(t, reader)

	logins, ok := got["auth_login_attempts_total"]
	require.True(t, ok)
	sum, ok := logins.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(3), total)
	assert.Len(t, sum.DataPoints, 2)

	errs, ok := got["db_query_errors_total"]
	require.True(t, ok)
	errSum, ok := errs.Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, errSum.DataPoints, 1)
	assert.Equal(t, int64(1), errSum.DataPoints[0].Value)
}
