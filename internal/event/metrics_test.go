package event

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProducerMetrics(t *testing.T) {
	metrics := NewProducerMetrics("test")
	assert.NotNil(t, metrics.messagesProduced)
	assert.NotNil(t, metrics.bytesProduced)
	assert.NotNil(t, metrics.produceLatency)
	assert.NotNil(t, metrics.produceErrors)
	assert.NotNil(t, metrics.batchSize)
	assert.NotNil(t, metrics.retryCount)
}

func TestNewProducerMetrics_DefaultNamespace(t *testing.T) {
	metrics := NewProducerMetrics("")
	assert.NotNil(t, metrics)
}

func TestProducerMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewProducerMetrics("test")

	require.NoError(t, metrics.Register(reg))

	metrics.RecordMessagesProduced("logs.enriched", 1, true)

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestProducerMetrics_RecordMessagesProduced(t *testing.T) {
	metrics := NewProducerMetrics("test")

	metrics.RecordMessagesProduced("logs.enriched", 10, true)
	metrics.RecordMessagesProduced("logs.enriched", 5, false)

	assert.Equal(t, float64(10),
		testutil.ToFloat64(metrics.messagesProduced.WithLabelValues("logs.enriched", "success")))
	assert.Equal(t, float64(5),
		testutil.ToFloat64(metrics.messagesProduced.WithLabelValues("logs.enriched", "failure")))
}

func TestProducerMetrics_RecordBytesAndRetries(t *testing.T) {
	metrics := NewProducerMetrics("test")

	metrics.RecordBytesProduced("logs.enriched", 2048)
	metrics.RecordRetry("logs.enriched")
	metrics.RecordRetry("logs.enriched")
	metrics.RecordProduceError("logs.enriched", "broker_unavailable")
	metrics.RecordProduceLatency("logs.enriched", 0.005)
	metrics.RecordBatchSize("logs.enriched", 100)

	assert.Equal(t, float64(2048),
		testutil.ToFloat64(metrics.bytesProduced.WithLabelValues("logs.enriched")))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(metrics.retryCount.WithLabelValues("logs.enriched")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.produceErrors.WithLabelValues("logs.enriched", "broker_unavailable")))
}

func TestNewConsumerMetrics(t *testing.T) {
	metrics := NewConsumerMetrics("test")
	assert.NotNil(t, metrics.messagesConsumed)
	assert.NotNil(t, metrics.consumeErrors)
	assert.NotNil(t, metrics.offsetCommits)
	assert.NotNil(t, metrics.processingTime)
}

func TestConsumerMetrics_Register(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewConsumerMetrics("test")
	require.NoError(t, metrics.Register(reg))
}

func TestConsumerMetrics_Record(t *testing.T) {
	metrics := NewConsumerMetrics("test")

	metrics.RecordMessagesConsumed("logs.raw", "geopipe", 7, true)
	metrics.RecordMessagesConsumed("logs.raw", "geopipe", 2, false)
	metrics.RecordConsumeError("logs.raw", "geopipe", "deserialize_error")
	metrics.RecordOffsetCommit("logs.raw", "geopipe", true)
	metrics.RecordProcessingTime("logs.raw", "geopipe", 0.01)

	assert.Equal(t, float64(7),
		testutil.ToFloat64(metrics.messagesConsumed.WithLabelValues("logs.raw", "geopipe", "success")))
	assert.Equal(t, float64(2),
		testutil.ToFloat64(metrics.messagesConsumed.WithLabelValues("logs.raw", "geopipe", "failure")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.consumeErrors.WithLabelValues("logs.raw", "geopipe", "deserialize_error")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.offsetCommits.WithLabelValues("logs.raw", "geopipe", "success")))
}

func TestNewDLQMetrics(t *testing.T) {
	metrics := NewDLQMetrics("test")
	assert.NotNil(t, metrics.messagesRouted)
	assert.NotNil(t, metrics.routeLatency)
	assert.NotNil(t, metrics.routeErrors)
	assert.NotNil(t, metrics.retryAttempts)
}

func TestDLQMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewDLQMetrics("test")
	require.NoError(t, metrics.Register(reg))

	metrics.RecordMessageRouted("logs.raw", "deserialize_error")
	metrics.RecordRouteLatency("logs.raw", 0.002)
	metrics.RecordRouteError("logs.raw", "produce_failed")
	metrics.RecordRetryAttempt("logs.raw")

	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.messagesRouted.WithLabelValues("logs.raw", "deserialize_error")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.routeErrors.WithLabelValues("logs.raw", "produce_failed")))
	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.retryAttempts.WithLabelValues("logs.raw")))
}

func TestNewHealthMetrics(t *testing.T) {
	metrics := NewHealthMetrics("test")
	assert.NotNil(t, metrics.checkDuration)
	assert.NotNil(t, metrics.checkStatus)
	assert.NotNil(t, metrics.brokersUp)
}

func TestHealthMetrics_Record(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewHealthMetrics("test")
	require.NoError(t, metrics.Register(reg))

	metrics.RecordCheckDuration("full", 0.1)
	metrics.SetCheckStatus("kafka", true)
	metrics.SetBrokersUp(3)

	assert.Equal(t, float64(1),
		testutil.ToFloat64(metrics.checkStatus.WithLabelValues("kafka")))
	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.brokersUp))

	metrics.SetCheckStatus("kafka", false)
	assert.Equal(t, float64(0),
		testutil.ToFloat64(metrics.checkStatus.WithLabelValues("kafka")))
}

func TestMetrics_DoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewProducerMetrics("test")

	require.NoError(t, metrics.Register(reg))
	assert.Error(t, metrics.Register(reg))
}
