package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/houzhh15/geopipe/internal/event"
	"github.com/houzhh15/geopipe/internal/pipeline/writer"
)

// stubConsumer 测试用消费者
type stubConsumer struct {
	messages chan *event.Message
	errs     chan error
	commits  atomic.Int64
	closed   atomic.Bool
}

func newStubConsumer() *stubConsumer {
	return &stubConsumer{
		messages: make(chan *event.Message, 100),
		errs:     make(chan error, 10),
	}
}

func (s *stubConsumer) Start(ctx context.Context) error          { return nil }
func (s *stubConsumer) Messages() <-chan *event.Message          { return s.messages }
func (s *stubConsumer) Errors() <-chan error                     { return s.errs }
func (s *stubConsumer) CommitMessages(ctx context.Context, msgs ...*event.Message) error {
	s.commits.Add(int64(len(msgs)))
	return nil
}
func (s *stubConsumer) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		close(s.messages)
		close(s.errs)
	}
	return nil
}

// memWriter 内存写入器
type memWriter struct {
	mu      sync.Mutex
	records [][]byte
	failAll bool
	closed  bool
}

func (w *memWriter) Write(ctx context.Context, record []byte) error {
	return w.WriteBatch(ctx, [][]byte{record})
}

func (w *memWriter) WriteBatch(ctx context.Context, records [][]byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failAll {
		return errors.New("writer unavailable")
	}
	w.records = append(w.records, records...)
	return nil
}

func (w *memWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *memWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.records)
}

// stubDLQProducer 测试用 DLQ 生产者
type stubDLQProducer struct {
	mu       sync.Mutex
	produced []kafka.Message
}

func (p *stubDLQProducer) Produce(ctx context.Context, msgs ...kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.produced = append(p.produced, msgs...)
	return nil
}

func (p *stubDLQProducer) Close() error { return nil }

func (p *stubDLQProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.produced)
}

func testPipelineConfig() *PipelineConfig {
	cfg := DefaultPipelineConfig()
	cfg.Processing.BatchSize = 2
	cfg.Processing.BatchTimeout = 20 * time.Millisecond
	cfg.Processing.WorkerCount = 2
	return cfg
}

func TestNewPipeline_Validation(t *testing.T) {
	f := newPipelineTestFilter(t, &stubLookup{})
	consumer := newStubConsumer()

	if _, err := NewPipeline(nil, f, consumer, nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil config")
	}
	if _, err := NewPipeline(testPipelineConfig(), nil, consumer, nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil filter")
	}
	if _, err := NewPipeline(testPipelineConfig(), f, nil, nil, nil, nil, nil); err == nil {
		t.Error("expected error for nil consumer")
	}
	if _, err := NewPipeline(testPipelineConfig(), f, consumer, nil, nil, nil, nil); err == nil {
		t.Error("expected error for no writers")
	}
}

func TestPipeline_StartProcessStop(t *testing.T) {
	f := newPipelineTestFilter(t, &stubLookup{})
	consumer := newStubConsumer()
	sink := &memWriter{}

	p, err := NewPipeline(testPipelineConfig(), f, consumer,
		[]writer.Writer{sink}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	if p.IsRunning() {
		t.Error("IsRunning() before Start")
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !p.IsRunning() {
		t.Error("IsRunning() = false after Start")
	}
	if err := p.Start(context.Background()); err == nil {
		t.Error("second Start() should fail")
	}

	for i := 0; i < 4; i++ {
		consumer.messages <- messageWithIP("8.8.8.8")
	}

	// 等待批次被处理
	deadline := time.Now().Add(2 * time.Second)
	for sink.count() < 4 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if sink.count() != 4 {
		t.Errorf("written records = %d, want 4", sink.count())
	}
	if consumer.commits.Load() != 4 {
		t.Errorf("commits = %d, want 4", consumer.commits.Load())
	}
	if p.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestPipeline_WriteFailureRoutesToDLQ(t *testing.T) {
	f := newPipelineTestFilter(t, &stubLookup{})
	consumer := newStubConsumer()
	sink := &memWriter{failAll: true}

	producer := &stubDLQProducer{}
	dlq, err := event.NewDeadLetterQueue(producer, nil, nil)
	if err != nil {
		t.Fatalf("NewDeadLetterQueue() error = %v", err)
	}

	p, err := NewPipeline(testPipelineConfig(), f, consumer,
		[]writer.Writer{sink}, dlq, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	consumer.messages <- messageWithIP("8.8.8.8")
	consumer.messages <- messageWithIP("8.8.8.8")

	deadline := time.Now().Add(2 * time.Second)
	for producer.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	if producer.count() != 2 {
		t.Errorf("DLQ messages = %d, want 2", producer.count())
	}
}

func TestPipeline_StatsAndHealth(t *testing.T) {
	f := newPipelineTestFilter(t, &stubLookup{})
	consumer := newStubConsumer()
	sink := &memWriter{}

	p, err := NewPipeline(testPipelineConfig(), f, consumer,
		[]writer.Writer{sink}, nil, nil, nil)
	if err != nil {
		t.Fatalf("NewPipeline() error = %v", err)
	}

	if err := p.HealthCheck(); err == nil {
		t.Error("HealthCheck() should fail before Start")
	}

	stats := p.Stats()
	if stats.Running {
		t.Error("Stats().Running = true before Start")
	}

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := p.HealthCheck(); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if err := p.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
}
