package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestNew_GlobalMeter(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	require.NotNil(t, m)

	ctx := context.Background()
	// The global provider is a no-op in tests; recording must not panic.
	m.RecordQuery(ctx, 12*time.Millisecond, 3, false, true)
	m.RecordCacheError(ctx, "get")
	m.RecordSeed(ctx, true)
}

func TestObserveActiveVehicles(t *testing.T) {
	m, err := NewWithMeter(noop.NewMeterProvider().Meter("test"))
	require.NoError(t, err)

	err = m.ObserveActiveVehicles(func(context.Context) (int, error) { return 7, nil })
	assert.NoError(t, err)
}
