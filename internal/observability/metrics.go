package observability

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/Shivanand-hulikatti/gift-exchange/internal/config"
)

// MeterName is the instrumentation scope of all service metrics.
const MeterName = "giftx"

// MetricsRecorder records gift-exchange metrics.
// Use NewMetricsRecorder for OTel metrics or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	RecordEventCreated(ctx context.Context)
	RecordParticipantJoined(ctx context.Context)
	// RecordEventClosed records a draw and how many permutations it took.
	RecordEventClosed(ctx context.Context, participants, attempts int)
	// RecordCloseRejected records a refused close with a short reason such
	// as "invalid_token" or "already_closed".
	RecordCloseRejected(ctx context.Context, reason string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	eventsCreated      metric.Int64Counter
	participantsJoined metric.Int64Counter
	eventsClosed       metric.Int64Counter
	closeRejected      metric.Int64Counter
	drawAttempts       metric.Int64Histogram
	eventSize          metric.Int64Histogram
}

func newOtelMetrics(mp metric.MeterProvider) (*otelMetrics, error) {
	meter := mp.Meter(MeterName)

	eventsCreated, err := meter.Int64Counter("giftx.events.created",
		metric.WithDescription("Number of events created"),
	)
	if err != nil {
		return nil, err
	}

	participantsJoined, err := meter.Int64Counter("giftx.participants.joined",
		metric.WithDescription("Number of participants that joined an event"),
	)
	if err != nil {
		return nil, err
	}

	eventsClosed, err := meter.Int64Counter("giftx.events.closed",
		metric.WithDescription("Number of events closed with an assignment"),
	)
	if err != nil {
		return nil, err
	}

	closeRejected, err := meter.Int64Counter("giftx.close.rejected",
		metric.WithDescription("Number of refused close requests"),
	)
	if err != nil {
		return nil, err
	}

	drawAttempts, err := meter.Int64Histogram("giftx.derangement.attempts",
		metric.WithDescription("Permutations drawn per assignment"),
	)
	if err != nil {
		return nil, err
	}

	eventSize, err := meter.Int64Histogram("giftx.event.participants",
		metric.WithDescription("Participants per closed event"),
	)
	if err != nil {
		return nil, err
	}

	return &otelMetrics{
		eventsCreated:      eventsCreated,
		participantsJoined: participantsJoined,
		eventsClosed:       eventsClosed,
		closeRejected:      closeRejected,
		drawAttempts:       drawAttempts,
		eventSize:          eventSize,
	}, nil
}

// SetupMetrics installs an SDK meter provider that periodically pushes to
// the OTLP/HTTP endpoint and returns it with its shutdown function.
//
// With an empty endpoint nothing is installed and the current global
// provider is returned.
func SetupMetrics(ctx context.Context, cfg config.Telemetry) (metric.MeterProvider, func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }

	if cfg.Endpoint == "" {
		return otel.GetMeterProvider(), noop, nil
	}

	exporter, err := otlpmetrichttp.New(ctx,
		otlpmetrichttp.WithEndpointURL(cfg.Endpoint),
	)
	if err != nil {
		return nil, noop, err
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, noop, err
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)

	return mp, mp.Shutdown, nil
}

// NewMetricsRecorder returns a MetricsRecorder backed by mp, or by the
// global OTel meter provider when mp is nil. If instrument creation fails
// it returns a no-op recorder.
func NewMetricsRecorder(mp metric.MeterProvider) MetricsRecorder {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m, err := newOtelMetrics(mp)
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

func (m *otelMetrics) RecordEventCreated(ctx context.Context) {
	m.eventsCreated.Add(ctx, 1)
}

func (m *otelMetrics) RecordParticipantJoined(ctx context.Context) {
	m.participantsJoined.Add(ctx, 1)
}

func (m *otelMetrics) RecordEventClosed(ctx context.Context, participants, attempts int) {
	m.eventsClosed.Add(ctx, 1)
	m.drawAttempts.Record(ctx, int64(attempts))
	m.eventSize.Record(ctx, int64(participants))
}

func (m *otelMetrics) RecordCloseRejected(ctx context.Context, reason string) {
	m.closeRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

var _ MetricsRecorder = NoopMetrics{}

func (NoopMetrics) RecordEventCreated(context.Context)          {}
func (NoopMetrics) RecordParticipantJoined(context.Context)     {}
func (NoopMetrics) RecordEventClosed(context.Context, int, int) {}
func (NoopMetrics) RecordCloseRejected(context.Context, string) {}
