package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func setupManualReader(t *testing.T) *sdkmetric.ManualReader {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	prev := otel.GetMeterProvider()
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(prev)
		_ = provider.Shutdown(context.Background())
	})
	return reader
}

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string, match attribute.KeyValue) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				if v, found := dp.Attributes.Value(match.Key); found && v == match.Value {
					total += dp.Value
				}
			}
		}
	}
	return total
}

func TestQueryMetrics_NilIsNoop(t *testing.T) {
	var m *QueryMetrics
	ctx := context.Background()
	assert.NotPanics(t, func() {
		m.RecordResolution(ctx, "Chat", "collection", "success", time.Millisecond, 3)
		m.RecordFilterRejected(ctx, "Chat")
		m.RecordStatement(ctx, "query", time.Millisecond, nil)
	})

	var g *GraphQLMetrics
	assert.NotPanics(t, func() {
		g.IncrementActiveRequests(ctx)
		g.RecordRequest(ctx, time.Millisecond, false, "query")
		g.DecrementActiveRequests(ctx)
	})
}

func TestQueryMetrics_RecordsResolutions(t *testing.T) {
	reader := setupManualReader(t)
	m, err := InitQueryMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordResolution(ctx, "Chat", "collection", "success", 2*time.Millisecond, 4)
	m.RecordResolution(ctx, "Chat", "record", "unauthorized", time.Millisecond, 0)
	m.RecordResolution(ctx, "User", "collection", "success", time.Millisecond, 2)

	assert.Equal(t, int64(2), counterTotal(t, reader, "graphql.resolutions.total", attribute.String("entity", "Chat")))
	assert.Equal(t, int64(1), counterTotal(t, reader, "graphql.resolutions.total", attribute.String("outcome", "unauthorized")))
}

func TestQueryMetrics_FilterRejectionsAndStatements(t *testing.T) {
	reader := setupManualReader(t)
	m, err := InitQueryMetrics()
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordFilterRejected(ctx, "Chat")
	m.RecordFilterRejected(ctx, "Chat")
	m.RecordStatement(ctx, "query", time.Millisecond, nil)
	m.RecordStatement(ctx, "exec", time.Millisecond, errors.New("boom"))

	assert.Equal(t, int64(2), counterTotal(t, reader, "graphql.filter.rejections.total", attribute.String("entity", "Chat")))
	assert.Equal(t, int64(1), counterTotal(t, reader, "db.statement.errors.total", attribute.String("operation", "exec")))
	assert.Equal(t, int64(0), counterTotal(t, reader, "db.statement.errors.total", attribute.String("operation", "query")))
}
