// Package event provides the Kafka consumer for the enrichment pipeline.
package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Consumer is the interface for Kafka consumers.
type Consumer interface {
	// Start starts the consumer and begins processing messages.
	Start(ctx context.Context) error
	// Messages returns a channel for receiving consumed messages.
	Messages() <-chan *Message
	// Errors returns a channel for receiving consumer errors.
	Errors() <-chan error
	// CommitMessages commits the offsets for the given messages.
	CommitMessages(ctx context.Context, msgs ...*Message) error
	// Close stops the consumer and releases resources.
	Close() error
}

// KafkaConsumerConfig configuration for KafkaConsumer.
type KafkaConsumerConfig struct {
	Brokers           []string      `yaml:"brokers"`
	Topic             string        `yaml:"topic"`
	GroupID           string        `yaml:"group_id"`
	MinBytes          int           `yaml:"min_bytes"`
	MaxBytes          int           `yaml:"max_bytes"`
	MaxWait           time.Duration `yaml:"max_wait"`
	CommitInterval    time.Duration `yaml:"commit_interval"`
	StartOffset       int64         `yaml:"start_offset"` // kafka.FirstOffset or kafka.LastOffset
	Concurrency       int           `yaml:"concurrency"`
	SessionTimeout    time.Duration `yaml:"session_timeout"`
	RebalanceTimeout  time.Duration `yaml:"rebalance_timeout"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`
	MessageBufferSize int           `yaml:"message_buffer_size"`
	ErrorBufferSize   int           `yaml:"error_buffer_size"`
}

// DefaultConsumerConfig returns default consumer configuration.
func DefaultConsumerConfig() *KafkaConsumerConfig {
	return &KafkaConsumerConfig{
		Brokers:           []string{"localhost:19092"},
		MinBytes:          1024,             // 1KB
		MaxBytes:          10 * 1024 * 1024, // 10MB
		MaxWait:           500 * time.Millisecond,
		CommitInterval:    time.Second,
		StartOffset:       kafka.LastOffset,
		Concurrency:       1,
		SessionTimeout:    30 * time.Second,
		RebalanceTimeout:  30 * time.Second,
		HeartbeatInterval: 3 * time.Second,
		MessageBufferSize: 1000,
		ErrorBufferSize:   100,
	}
}

// KafkaConsumer implements Consumer interface using segmentio/kafka-go.
type KafkaConsumer struct {
	reader *kafka.Reader
	config *KafkaConsumerConfig
	logger *zap.Logger
	dlq    *DeadLetterQueue

	messages chan *Message
	errors   chan error
	done     chan struct{}

	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
}

// NewKafkaConsumer creates a new Kafka consumer.
func NewKafkaConsumer(cfg *KafkaConsumerConfig, logger *zap.Logger) (*KafkaConsumer, error) {
	if cfg == nil {
		cfg = DefaultConsumerConfig()
	}
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("brokers list cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("topic cannot be empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("group_id cannot be empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Apply defaults for zero values
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1024
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10 * 1024 * 1024
	}
	if cfg.MaxWait == 0 {
		cfg.MaxWait = 500 * time.Millisecond
	}
	if cfg.CommitInterval == 0 {
		cfg.CommitInterval = time.Second
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}
	if cfg.MessageBufferSize == 0 {
		cfg.MessageBufferSize = 1000
	}
	if cfg.ErrorBufferSize == 0 {
		cfg.ErrorBufferSize = 100
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:           cfg.Brokers,
		Topic:             cfg.Topic,
		GroupID:           cfg.GroupID,
		MinBytes:          cfg.MinBytes,
		MaxBytes:          cfg.MaxBytes,
		MaxWait:           cfg.MaxWait,
		CommitInterval:    cfg.CommitInterval,
		StartOffset:       cfg.StartOffset,
		SessionTimeout:    cfg.SessionTimeout,
		RebalanceTimeout:  cfg.RebalanceTimeout,
		HeartbeatInterval: cfg.HeartbeatInterval,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...), zap.String("component", "kafka-consumer"))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), zap.String("component", "kafka-consumer"))
		}),
	})

	return &KafkaConsumer{
		reader:   reader,
		config:   cfg,
		logger:   logger,
		messages: make(chan *Message, cfg.MessageBufferSize),
		errors:   make(chan error, cfg.ErrorBufferSize),
		done:     make(chan struct{}),
	}, nil
}

// SetDeadLetterQueue routes undecodable messages to the given DLQ.
// Must be called before Start.
func (c *KafkaConsumer) SetDeadLetterQueue(dlq *DeadLetterQueue) {
	c.dlq = dlq
}

// Start starts the consumer goroutines.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return fmt.Errorf("consumer already started")
	}
	if c.closed.Load() {
		return ErrConsumerClosed
	}

	c.logger.Info("starting kafka consumer",
		zap.String("topic", c.config.Topic),
		zap.String("group_id", c.config.GroupID),
		zap.Int("concurrency", c.config.Concurrency),
	)

	for i := 0; i < c.config.Concurrency; i++ {
		c.wg.Add(1)
		go c.consumeLoop(ctx, i)
	}

	return nil
}

// consumeLoop is the main consume loop for a worker.
func (c *KafkaConsumer) consumeLoop(ctx context.Context, workerID int) {
	defer c.wg.Done()

	c.logger.Debug("consumer worker started", zap.Int("worker_id", workerID))

	for {
		select {
		case <-ctx.Done():
			c.logger.Debug("consumer worker stopped (context canceled)", zap.Int("worker_id", workerID))
			return
		case <-c.done:
			c.logger.Debug("consumer worker stopped (done signal)", zap.Int("worker_id", workerID))
			return
		default:
			msg, err := c.reader.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					// Context canceled, normal shutdown
					return
				}
				c.logger.Error("failed to fetch message",
					zap.Error(err),
					zap.Int("worker_id", workerID),
				)
				c.sendError(fmt.Errorf("fetch message: %w", err))
				continue
			}

			// Deserialize the log record
			record, err := c.deserializeMessage(msg)
			if err != nil {
				c.logger.Error("failed to deserialize message",
					zap.Error(err),
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Int("worker_id", workerID),
				)
				c.sendError(err)
				c.routeToDeadLetter(ctx, msg, err)
				// Still commit to avoid blocking on bad messages
				if commitErr := c.reader.CommitMessages(ctx, msg); commitErr != nil {
					c.logger.Error("failed to commit bad message", zap.Error(commitErr))
				}
				continue
			}

			select {
			case c.messages <- record:
				c.logger.Debug("message received",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Int("worker_id", workerID),
				)
			case <-ctx.Done():
				return
			case <-c.done:
				return
			}
		}
	}
}

// deserializeMessage deserializes a Kafka message into a log Message.
func (c *KafkaConsumer) deserializeMessage(msg kafka.Message) (*Message, error) {
	rec, err := ParseRecord(msg.Value)
	if err != nil {
		return nil, err
	}

	m := &Message{
		Record:  rec,
		Raw:     msg.Value,
		Headers: ParseHeaders(msg.Headers),
	}
	m.SetKafkaMessage(&msg)

	return m, nil
}

// routeToDeadLetter routes an undecodable message to the DLQ, if configured.
func (c *KafkaConsumer) routeToDeadLetter(ctx context.Context, msg kafka.Message, cause error) {
	if c.dlq == nil {
		return
	}

	dlqMsg := CreateDeadLetterMessage(
		c.config.Topic,
		string(msg.Key),
		msg.Value,
		ParseHeaders(msg.Headers),
		cause,
		"deserialize_error",
		"decode",
		0,
	)

	routeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := c.dlq.Route(routeCtx, dlqMsg); err != nil {
		c.logger.Error("failed to route bad message to DLQ",
			zap.Int("partition", msg.Partition),
			zap.Int64("offset", msg.Offset),
			zap.Error(err),
		)
	}
}

// sendError sends an error to the errors channel (non-blocking).
func (c *KafkaConsumer) sendError(err error) {
	select {
	case c.errors <- err:
	default:
		c.logger.Warn("error channel full, dropping error", zap.Error(err))
	}
}

// Messages returns the messages channel.
func (c *KafkaConsumer) Messages() <-chan *Message {
	return c.messages
}

// Errors returns the errors channel.
func (c *KafkaConsumer) Errors() <-chan error {
	return c.errors
}

// CommitMessages commits offsets for the given messages.
func (c *KafkaConsumer) CommitMessages(ctx context.Context, msgs ...*Message) error {
	if len(msgs) == 0 {
		return nil
	}

	kafkaMsgs := make([]kafka.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.kafkaMsg != nil {
			kafkaMsgs = append(kafkaMsgs, *msg.kafkaMsg)
		}
	}

	if len(kafkaMsgs) == 0 {
		return nil
	}

	if err := c.reader.CommitMessages(ctx, kafkaMsgs...); err != nil {
		return fmt.Errorf("%w: %v", ErrCommitFailed, err)
	}

	c.logger.Debug("messages committed", zap.Int("count", len(kafkaMsgs)))
	return nil
}

// Close stops the consumer and closes channels.
func (c *KafkaConsumer) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(c.done)
	c.wg.Wait()

	close(c.messages)
	close(c.errors)

	if err := c.reader.Close(); err != nil {
		return fmt.Errorf("close kafka reader: %w", err)
	}

	c.logger.Info("kafka consumer closed", zap.String("topic", c.config.Topic))
	return nil
}
