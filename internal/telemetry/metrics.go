package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsObserver records events as OpenTelemetry instruments: a counter of
// operations by op and status and a duration histogram in milliseconds.
type MetricsObserver struct {
	ops      metric.Int64Counter
	duration metric.Float64Histogram
	rows     metric.Int64Histogram
}

// NewMetricsObserver creates the instruments on meter. A nil meter uses the
// global provider.
func NewMetricsObserver(meter metric.Meter) (*MetricsObserver, error) {
	if meter == nil {
		meter = otel.Meter("sidpol")
	}
	ops, err := meter.Int64Counter(
		"sidpol.ops.total",
		metric.WithDescription("Operations by name and status"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"sidpol.ops.duration",
		metric.WithDescription("Operation duration"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	rows, err := meter.Int64Histogram(
		"sidpol.ops.rows",
		metric.WithDescription("Input rows per operation"),
	)
	if err != nil {
		return nil, err
	}
	return &MetricsObserver{ops: ops, duration: duration, rows: rows}, nil
}

func (m *MetricsObserver) Observe(ctx context.Context, ev Event) {
	if m == nil {
		return
	}
	status := "ok"
	switch {
	case ev.Err != nil:
		status = "error"
	case ev.NoResult:
		status = "no_result"
	}
	attrs := metric.WithAttributes(attribute.String("op", ev.Op), attribute.String("status", status))
	m.ops.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(ev.Duration.Microseconds())/1000, attrs)
	m.rows.Record(ctx, int64(ev.Rows), metric.WithAttributes(attribute.String("op", ev.Op)))
}
