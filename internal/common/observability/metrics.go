package observability

import (
	"context"
	"time"

	"teamhub-notifications/internal/common/logger"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

// Observability records job and feed instruments through the OpenTelemetry
// metric SDK, exported on the default Prometheus registry.
type Observability struct {
	meterProvider *metric.MeterProvider
	jobCounter    otelmetric.Int64Counter
	jobDuration   otelmetric.Float64Histogram
	feedRequests  otelmetric.Int64Counter
	feedSize      otelmetric.Int64Histogram
}

func New(serviceName string, log logger.Logger) *Observability {
	exporter, err := prometheus.New()
	if err != nil {
		log.Warn("failed to create prometheus exporter", map[string]interface{}{"error": err})
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)

	meter := provider.Meter(serviceName)

	jobCounter, _ := meter.Int64Counter(
		"jobs.processed",
		otelmetric.WithDescription("Number of jobs processed"),
	)
	jobDuration, _ := meter.Float64Histogram(
		"jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms"),
	)
	feedRequests, _ := meter.Int64Counter(
		"notifications.feed.requests",
		otelmetric.WithDescription("Aggregated feed requests"),
	)
	feedSize, _ := meter.Int64Histogram(
		"notifications.feed.size",
		otelmetric.WithDescription("Merged notifications per feed request before filtering"),
	)

	return &Observability{
		meterProvider: provider,
		jobCounter:    jobCounter,
		jobDuration:   jobDuration,
		feedRequests:  feedRequests,
		feedSize:      feedSize,
	}
}

func (o *Observability) RecordJob(ctx context.Context, taskType, status string, duration time.Duration) {
	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", taskType),
		attribute.String("status", status),
	)
	if o.jobCounter != nil {
		o.jobCounter.Add(ctx, 1, attrs)
	}
	if o.jobDuration != nil {
		o.jobDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
	}
}

// RecordFeed records one GetNotifications call. cached tells whether the
// merged list came from the feed cache.
func (o *Observability) RecordFeed(ctx context.Context, role string, cached bool, total int) {
	attrs := otelmetric.WithAttributes(
		attribute.String("role", role),
		attribute.Bool("cached", cached),
	)
	if o.feedRequests != nil {
		o.feedRequests.Add(ctx, 1, attrs)
	}
	if o.feedSize != nil {
		o.feedSize.Record(ctx, int64(total), attrs)
	}
}

func (o *Observability) Shutdown(ctx context.Context) error {
	if o.meterProvider == nil {
		return nil
	}
	return o.meterProvider.Shutdown(ctx)
}
