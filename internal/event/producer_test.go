package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestDefaultProducerConfig(t *testing.T) {
	cfg := DefaultProducerConfig()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, "logs.raw", cfg.Topic)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
}

func TestNewKafkaProducer(t *testing.T) {
	producer := NewKafkaProducer(&KafkaProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "logs.enriched",
	}, zaptest.NewLogger(t))
	require.NotNil(t, producer)
	defer producer.Close()

	assert.Equal(t, "logs.enriched", producer.topic)
}

func TestNewKafkaProducer_NilConfigAndLogger(t *testing.T) {
	producer := NewKafkaProducer(nil, nil)
	require.NotNil(t, producer)
	defer producer.Close()

	assert.Equal(t, "logs.raw", producer.topic)
	assert.NotNil(t, producer.logger)
}

func TestNewKafkaProducer_AppliesDefaults(t *testing.T) {
	cfg := &KafkaProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "logs.raw",
		BatchSize:    -1,
		BatchTimeout: -time.Second,
	}

	producer := NewKafkaProducer(cfg, zaptest.NewLogger(t))
	require.NotNil(t, producer)
	defer producer.Close()

	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BatchTimeout)
}

func TestKafkaProducer_ProduceEmpty(t *testing.T) {
	producer := NewKafkaProducer(&KafkaProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "logs.raw",
	}, zaptest.NewLogger(t))
	defer producer.Close()

	// Empty batch is a no-op, no broker contact required
	assert.NoError(t, producer.Produce(context.Background()))
}

func TestKafkaProducer_Close(t *testing.T) {
	producer := NewKafkaProducer(&KafkaProducerConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "logs.raw",
	}, zaptest.NewLogger(t))

	assert.NoError(t, producer.Close())
}
