// Package pipeline 提供日志富化管线主协调器
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/houzhh15/geopipe/internal/event"
	"github.com/houzhh15/geopipe/internal/filter"
	"github.com/houzhh15/geopipe/internal/pipeline/writer"
)

// Pipeline 日志富化管线
//
// 消费 -> 批次收集 -> 并行富化 -> 输出写入，写入失败的记录进入 DLQ。
type Pipeline struct {
	config    *PipelineConfig
	consumer  event.Consumer
	processor BatchProcessor
	writers   []writer.Writer
	dlq       *event.DeadLetterQueue
	collector *BatchCollector
	metrics   *PipelineMetrics
	logger    *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewPipeline 创建新的日志富化管线
func NewPipeline(
	config *PipelineConfig,
	f *filter.Filter,
	consumer event.Consumer,
	writers []writer.Writer,
	dlq *event.DeadLetterQueue,
	metrics *PipelineMetrics,
	logger *zap.Logger,
) (*Pipeline, error) {
	if config == nil {
		return nil, fmt.Errorf("pipeline config is nil")
	}
	if f == nil {
		return nil, fmt.Errorf("enrichment filter is nil")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is nil")
	}
	if len(writers) == 0 {
		return nil, fmt.Errorf("at least one writer is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	processorConfig := &BatchProcessorConfig{
		Workers:        config.Processing.WorkerCount,
		BatchSize:      config.Processing.BatchSize,
		BatchTimeout:   config.Processing.BatchTimeout,
		EnableParallel: config.Processing.WorkerCount > 1,
	}

	return &Pipeline{
		config:    config,
		consumer:  consumer,
		processor: NewDefaultBatchProcessor(processorConfig, f, metrics),
		writers:   writers,
		dlq:       dlq,
		collector: NewBatchCollector(processorConfig),
		metrics:   metrics,
		logger:    logger,
	}, nil
}

// Start 启动管线
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("pipeline is already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	if err := p.consumer.Start(p.ctx); err != nil {
		return fmt.Errorf("start consumer: %w", err)
	}

	p.wg.Add(1)
	go p.consumeLoop()

	p.wg.Add(1)
	go p.flushLoop()

	p.logger.Info("pipeline started",
		zap.String("input_topic", p.config.Input.Kafka.Topic),
		zap.Int("workers", p.config.Processing.WorkerCount),
		zap.Int("batch_size", p.config.Processing.BatchSize),
	)

	return nil
}

// Stop 停止管线
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()

	// 刷新剩余数据
	if batch := p.collector.Flush(); batch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		p.processBatch(ctx, batch)
	}

	if err := p.consumer.Close(); err != nil {
		return fmt.Errorf("close consumer: %w", err)
	}

	for _, w := range p.writers {
		if err := w.Close(); err != nil {
			return fmt.Errorf("close writer: %w", err)
		}
	}

	p.logger.Info("pipeline stopped")
	return nil
}

// consumeLoop 消费循环
func (p *Pipeline) consumeLoop() {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return

		case msg, ok := <-p.consumer.Messages():
			if !ok {
				return
			}

			if p.metrics != nil {
				p.metrics.RecordConsumed(p.config.Input.Kafka.Topic, 1)
				p.metrics.SetBufferSize("collector", p.collector.Size())
			}

			if batch := p.collector.Add(msg); batch != nil {
				p.processBatch(p.ctx, batch)
			}

			p.commitMessage(msg)

		case err, ok := <-p.consumer.Errors():
			if !ok {
				return
			}
			if p.metrics != nil {
				p.metrics.RecordError(StageConsume, "consumer_error")
			}
			p.logger.Warn("consumer error", zap.Error(err))
		}
	}
}

// flushLoop 定时刷新循环
func (p *Pipeline) flushLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.config.Processing.BatchTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			if batch := p.collector.Flush(); batch != nil {
				p.processBatch(p.ctx, batch)
			}
		}
	}
}

// processBatch 处理批次
func (p *Pipeline) processBatch(ctx context.Context, batch *Batch) {
	startTime := time.Now()

	result, err := p.processor.Process(ctx, batch)
	if err != nil {
		if p.metrics != nil {
			p.metrics.RecordError(StageBatch, "processing_failed")
		}
		p.logger.Error("batch processing failed",
			zap.String("batch_id", batch.ID),
			zap.Error(err),
		)
		return
	}

	if len(result.Skipped) > 0 {
		p.logger.Warn("batch partially processed",
			zap.String("batch_id", batch.ID),
			zap.Int("skipped", len(result.Skipped)),
		)
	}

	if len(result.Records) > 0 {
		p.writeRecords(ctx, result.Records)
	}

	if p.metrics != nil {
		p.metrics.RecordProcessingDuration("batch_total", time.Since(startTime).Seconds())
	}
}

// writeRecords 将富化后的记录写入所有输出
func (p *Pipeline) writeRecords(ctx context.Context, records []event.Record) {
	serialized := make([][]byte, 0, len(records))
	for _, rec := range records {
		data, err := rec.Encode()
		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordError(StageWrite, "serialize_failed")
			}
			continue
		}
		serialized = append(serialized, data)
	}

	for i, w := range p.writers {
		startTime := time.Now()
		err := w.WriteBatch(ctx, serialized)
		duration := time.Since(startTime)

		writerName := fmt.Sprintf("writer_%d", i)
		if p.metrics != nil {
			p.metrics.RecordWriterLatency(writerName, duration.Seconds())
			p.metrics.RecordWritten(writerName, len(serialized), err == nil)
		}

		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordError(StageWrite, "write_failed")
			}
			p.logger.Error("batch write failed",
				zap.String("writer", writerName),
				zap.Int("records", len(serialized)),
				zap.Error(err),
			)
			p.sendToDLQ(ctx, serialized, err)
		}
	}
}

// sendToDLQ 将写入失败的记录路由到死信队列
func (p *Pipeline) sendToDLQ(ctx context.Context, records [][]byte, cause error) {
	if p.dlq == nil {
		return
	}

	for _, data := range records {
		msg := event.CreateDeadLetterMessage(
			p.config.Input.Kafka.Topic,
			"",
			data,
			nil,
			cause,
			"write_failed",
			StageWrite,
			0,
		)

		routeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.dlq.Route(routeCtx, msg)
		cancel()

		if err != nil {
			if p.metrics != nil {
				p.metrics.RecordError(StageWrite, "dlq_route_failed")
			}
			p.logger.Error("DLQ route failed", zap.Error(err))
			continue
		}

		if p.metrics != nil {
			p.metrics.RecordDLQMessage("write_failed")
		}
	}
}

// commitMessage 提交消息偏移量
func (p *Pipeline) commitMessage(msg *event.Message) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.consumer.CommitMessages(ctx, msg); err != nil {
		if p.metrics != nil {
			p.metrics.RecordError(StageConsume, "commit_failed")
		}
		p.logger.Warn("offset commit failed",
			zap.Int("partition", msg.GetPartition()),
			zap.Int64("offset", msg.GetOffset()),
			zap.Error(err),
		)
	}
}

// IsRunning 返回管线是否正在运行
func (p *Pipeline) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// PipelineStats 管线统计信息
type PipelineStats struct {
	Running    bool `json:"running"`
	BufferSize int  `json:"buffer_size"`
}

// Stats 返回管线统计信息
func (p *Pipeline) Stats() *PipelineStats {
	return &PipelineStats{
		Running:    p.IsRunning(),
		BufferSize: p.collector.Size(),
	}
}

// HealthCheck 健康检查
func (p *Pipeline) HealthCheck() error {
	if !p.IsRunning() {
		return fmt.Errorf("pipeline is not running")
	}
	return nil
}
