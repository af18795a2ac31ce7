package metrics

import (
	"context"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "driving-lms-auth"

// AppMetrics holds the credential service's metric instruments.
type AppMetrics struct {
	LoginAttemptsTotal       metric.Int64Counter
	SignupRequestsTotal      metric.Int64Counter
	SignupDurationSeconds    metric.Float64Histogram
	TokenVerificationsTotal  metric.Int64Counter
	PasswordResetEventsTotal metric.Int64Counter
	DbQueryDurationSeconds   metric.Float64Histogram
	DbQueryErrorsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments from the global MeterProvider. Only the first call has an effect.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter(meterName)
		var err error
		m := &AppMetrics{}

		m.LoginAttemptsTotal, err = meter.Int64Counter(
			"auth_login_attempts_total",
			metric.WithDescription("Login attempts partitioned by outcome"),
			metric.WithUnit("{attempt}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_login_attempts_total: %v", err)
		}

		m.SignupRequestsTotal, err = meter.Int64Counter(
			"auth_signup_requests_total",
			metric.WithDescription("Signup requests partitioned by outcome"),
			metric.WithUnit("{request}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_signup_requests_total: %v", err)
		}

		m.SignupDurationSeconds, err = meter.Float64Histogram(
			"auth_signup_duration_seconds",
			metric.WithDescription("Duration of signup requests in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_signup_duration_seconds: %v", err)
		}

		m.TokenVerificationsTotal, err = meter.Int64Counter(
			"auth_token_verifications_total",
			metric.WithDescription("Session token verifications partitioned by outcome"),
			metric.WithUnit("{verification}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_token_verifications_total: %v", err)
		}

		m.PasswordResetEventsTotal, err = meter.Int64Counter(
			"auth_password_reset_events_total",
			metric.WithDescription("Password reset requests and completions partitioned by stage and outcome"),
			metric.WithUnit("{event}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create auth_password_reset_events_total: %v", err)
		}

		m.DbQueryDurationSeconds, err = meter.Float64Histogram(
			"db_query_duration_seconds",
			metric.WithDescription("Duration of database queries in seconds"),
			metric.WithUnit("s"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_duration_seconds: %v", err)
		}

		m.DbQueryErrorsTotal, err = meter.Int64Counter(
			"db_query_errors_total",
			metric.WithDescription("Total number of database query errors"),
			metric.WithUnit("{error}"),
		)
		if err != nil {
			log.Fatalf("Metrics: Failed to create db_query_errors_total: %v", err)
		}

		appMetrics = m
	})
}

// Get returns the instruments, creating them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

// Outcome increments counter with an outcome attribute.
func Outcome(ctx context.Context, counter metric.Int64Counter, outcome string, attrs ...attribute.KeyValue) {
	attrs = append(attrs, attribute.String("outcome", outcome))
	counter.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// ObserveQuery records the duration of a named query and counts it as failed when err is non-nil.
func (m *AppMetrics) ObserveQuery(ctx context.Context, query string, start time.Time, err error) {
	attrs := metric.WithAttributes(attribute.String("query", query))
	m.DbQueryDurationSeconds.Record(ctx, time.Since(start).Seconds(), attrs)
	if err != nil {
		m.DbQueryErrorsTotal.Add(ctx, 1, attrs)
	}
}
