// Package event 提供日志事件模型与 Kafka 收发能力
package event

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
	"go.uber.org/zap"
)

// Producer Kafka 生产者接口
type Producer interface {
	// Produce 写入一批消息
	Produce(ctx context.Context, msgs ...kafka.Message) error
	// Close 关闭连接
	Close() error
}

// KafkaProducer Kafka 生产者实现
type KafkaProducer struct {
	writer *kafka.Writer
	topic  string
	logger *zap.Logger
}

// KafkaProducerConfig Kafka 生产者配置
type KafkaProducerConfig struct {
	Brokers      []string      `json:"brokers" yaml:"brokers"`
	Topic        string        `json:"topic" yaml:"topic"`
	BatchSize    int           `json:"batch_size" yaml:"batch_size"`
	BatchTimeout time.Duration `json:"batch_timeout" yaml:"batch_timeout"`
}

// DefaultProducerConfig 返回默认配置
func DefaultProducerConfig() *KafkaProducerConfig {
	return &KafkaProducerConfig{
		Brokers:      []string{"localhost:9092"},
		Topic:        "logs.raw",
		BatchSize:    100,
		BatchTimeout: 5 * time.Second,
	}
}

// NewKafkaProducer 创建 Kafka 生产者
func NewKafkaProducer(cfg *KafkaProducerConfig, logger *zap.Logger) *KafkaProducer {
	if cfg == nil {
		cfg = DefaultProducerConfig()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 5 * time.Second
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{}, // 按 key 哈希分区，同一来源的日志有序
		RequiredAcks: kafka.RequireAll,
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		Compression:  compress.Snappy,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), zap.String("component", "kafka"))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), zap.String("component", "kafka"))
		}),
	}

	return &KafkaProducer{
		writer: writer,
		topic:  cfg.Topic,
		logger: logger,
	}
}

// Produce 写入一批消息
func (p *KafkaProducer) Produce(ctx context.Context, msgs ...kafka.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	return p.writeWithRetry(ctx, msgs, 3)
}

// writeWithRetry 带重试的写入
func (p *KafkaProducer) writeWithRetry(ctx context.Context, messages []kafka.Message, maxRetries int) error {
	var lastErr error
	backoff := 100 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := p.writer.WriteMessages(ctx, messages...)
		if err == nil {
			p.logger.Debug("kafka write success",
				zap.Int("message_count", len(messages)),
				zap.Int("attempt", attempt+1),
			)
			return nil
		}

		lastErr = err
		p.logger.Warn("kafka write failed, retrying",
			zap.Error(err),
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", maxRetries),
			zap.Duration("backoff", backoff),
		)

		// 检查 context 是否已取消
		select {
		case <-ctx.Done():
			return fmt.Errorf("context cancelled during retry: %w", ctx.Err())
		case <-time.After(backoff):
		}

		// 指数退避，最大 2 秒
		backoff *= 2
		if backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}

	return WrapProduceError(p.topic, lastErr, maxRetries)
}

// Close 关闭生产者
func (p *KafkaProducer) Close() error {
	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			p.logger.Error("failed to close kafka writer", zap.Error(err))
			return fmt.Errorf("close kafka writer: %w", err)
		}
		p.logger.Info("kafka producer closed")
	}
	return nil
}
