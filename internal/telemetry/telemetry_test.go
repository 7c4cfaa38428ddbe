package telemetry

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) Observe(_ context.Context, ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func TestTrack_EmitsOutcome(t *testing.T) {
	rec := &recorder{}
	done := Track(context.Background(), rec, "kpis", 42)
	done(true, nil)

	done = Track(context.Background(), rec, "trend", 3)
	done(false, nil)

	boom := errors.New("boom")
	done = Track(context.Background(), rec, "load", 0)
	done(false, boom)

	require.Len(t, rec.events, 3)
	require.Equal(t, "kpis", rec.events[0].Op)
	require.Equal(t, 42, rec.events[0].Rows)
	require.False(t, rec.events[0].NoResult)
	require.True(t, rec.events[1].NoResult)
	require.False(t, rec.events[2].NoResult)
	require.ErrorIs(t, rec.events[2].Err, boom)
}

func TestTrack_NilObserver(t *testing.T) {
	require.NotPanics(t, func() { Track(context.Background(), nil, "x", 0)(true, nil) })
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi(a, nil, b)
	m.Observe(context.Background(), Event{Op: "x"})
	require.Len(t, a.events, 1)
	require.Len(t, b.events, 1)

	require.Equal(t, a, Multi(nil, a))
	require.NotPanics(t, func() { Multi().Observe(context.Background(), Event{}) })
}

func TestLogObserver(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)
	obs := NewLogObserver(logger)

	obs.Observe(context.Background(), Event{Op: "by_modality", Rows: 10})
	require.Contains(t, buf.String(), `"op":"by_modality"`)
	require.Contains(t, buf.String(), "operation completed")

	buf.Reset()
	obs.Observe(context.Background(), Event{Op: "trend", NoResult: true})
	require.Contains(t, buf.String(), `"no_result":true`)

	buf.Reset()
	obs.Observe(context.Background(), Event{Op: "load", Err: errors.New("missing")})
	require.Contains(t, buf.String(), `"level":"error"`)
	require.Contains(t, buf.String(), "missing")
}

func TestMetricsObserver(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	obs, err := NewMetricsObserver(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	obs.Observe(ctx, Event{Op: "kpis", Rows: 5})
	obs.Observe(ctx, Event{Op: "kpis", Rows: 7})
	obs.Observe(ctx, Event{Op: "trend", NoResult: true})

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var total int64
	found := map[string]bool{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			found[m.Name] = true
			if m.Name != "sidpol.ops.total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	require.Equal(t, int64(3), total)
	require.True(t, found["sidpol.ops.duration"])
	require.True(t, found["sidpol.ops.rows"])
}
