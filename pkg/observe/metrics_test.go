package observe

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// collectSum finds a counter by name in collected metrics and returns the
// sum of all its data points.
func collectSum(t *testing.T, reader *metric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestRecordLLMRetryAccumulates(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordLLMRetry(ctx, "gemini")
	m.RecordLLMRetry(ctx, "gemini")

	assert.Equal(t, int64(2), collectSum(t, reader, "deepread.llm.retries"))
}

func TestRecordSubmissionOutcomes(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordSubmission(ctx, "video", "created")
	m.RecordSubmission(ctx, "video", "queue_full")
	m.RecordLLMRequest(ctx, "gemini", "ok", 1.5)

	assert.Equal(t, int64(2), collectSum(t, reader, "deepread.tasks.submitted"))
	assert.Equal(t, int64(1), collectSum(t, reader, "deepread.llm.requests"))
}

func TestQueueGaugesGoUpAndDown(t *testing.T) {
	reader := metric.NewManualReader()
	mp := metric.NewMeterProvider(metric.WithReader(reader))
	m, err := NewMetrics(mp)
	require.NoError(t, err)

	ctx := context.Background()
	m.QueueDepth.Add(ctx, 3)
	m.QueueDepth.Add(ctx, -1)

	assert.Equal(t, int64(2), collectSum(t, reader, "deepread.queue.depth"))
}
