// Package metrics holds the OpenTelemetry instruments for the proximity
// query engine. Instruments come from the global meter provider, which is a
// no-op until the process installs an SDK.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "kigaligo/internal/metrics"

func meter() metric.Meter {
	return otel.Meter(instrumentationName)
}

// QueryMetrics records query outcomes.
type QueryMetrics struct {
	queries     metric.Int64Counter
	duration    metric.Float64Histogram
	results     metric.Int64Histogram
	cacheErrors metric.Int64Counter
	seeds       metric.Int64Counter
	meter       metric.Meter
}

// New creates instruments on the global meter.
func New() (*QueryMetrics, error) {
	return NewWithMeter(meter())
}

// NewWithMeter creates instruments on m.
func NewWithMeter(m metric.Meter) (*QueryMetrics, error) {
	qm := &QueryMetrics{meter: m}

	var err error
	qm.queries, err = m.Int64Counter(
		"proximity.queries",
		metric.WithDescription("Proximity queries answered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queries counter: %w", err)
	}

	qm.duration, err = m.Float64Histogram(
		"proximity.query.duration",
		metric.WithDescription("Proximity query latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	qm.results, err = m.Int64Histogram(
		"proximity.results",
		metric.WithDescription("Vehicles returned per query"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating results histogram: %w", err)
	}

	qm.cacheErrors, err = m.Int64Counter(
		"proximity.cache.errors",
		metric.WithDescription("Result cache reads or writes that failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating cache error counter: %w", err)
	}

	qm.seeds, err = m.Int64Counter(
		"proximity.seed.invocations",
		metric.WithDescription("Empty-area seed fallbacks triggered"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating seed counter: %w", err)
	}

	return qm, nil
}

// RecordQuery is called once per answered query, including cache hits.
func (m *QueryMetrics) RecordQuery(ctx context.Context, elapsed time.Duration, results int, cached, incremental bool) {
	attrs := metric.WithAttributes(
		attribute.Bool("cached", cached),
		attribute.Bool("incremental", incremental),
	)
	m.queries.Add(ctx, 1, attrs)
	m.duration.Record(ctx, float64(elapsed)/float64(time.Millisecond), attrs)
	m.results.Record(ctx, int64(results), attrs)
}

// RecordCacheError takes "get" or "set" as op.
func (m *QueryMetrics) RecordCacheError(ctx context.Context, op string) {
	m.cacheErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *QueryMetrics) RecordSeed(ctx context.Context, success bool) {
	m.seeds.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}

// ObserveActiveVehicles registers a gauge that calls count on every
// collection.
func (m *QueryMetrics) ObserveActiveVehicles(count func(ctx context.Context) (int, error)) error {
	gauge, err := m.meter.Int64ObservableGauge(
		"vehicles.active",
		metric.WithDescription("Active vehicles in the store"),
	)
	if err != nil {
		return fmt.Errorf("creating active vehicles gauge: %w", err)
	}

	_, err = m.meter.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			n, err := count(ctx)
			if err != nil {
				return err
			}
			o.ObserveInt64(gauge, int64(n))
			return nil
		},
		gauge,
	)
	if err != nil {
		return fmt.Errorf("registering active vehicles callback: %w", err)
	}
	return nil
}
