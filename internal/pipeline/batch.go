// Package pipeline 提供日志富化管线核心功能
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/houzhh15/geopipe/internal/event"
	"github.com/houzhh15/geopipe/internal/filter"
)

// Batch 日志批次
type Batch struct {
	// Messages 待富化的消息列表
	Messages []*event.Message
	// StartTime 批次开始时间
	StartTime time.Time
	// ID 批次ID
	ID string
}

// ProcessedBatch 已处理的批次
type ProcessedBatch struct {
	// Records 富化后的记录（富化从不丢弃记录）
	Records []event.Record
	// Outcomes 按查询状态统计的富化结果
	Outcomes map[string]int
	// Skipped 因取消而未处理的消息
	Skipped []*event.Message
	// BatchID 批次ID
	BatchID string
	// ProcessingTime 处理耗时
	ProcessingTime time.Duration
}

// BatchProcessor 批处理器接口
type BatchProcessor interface {
	// Process 处理日志批次
	Process(ctx context.Context, batch *Batch) (*ProcessedBatch, error)
	// ProcessAsync 异步处理日志批次
	ProcessAsync(ctx context.Context, batch *Batch) <-chan *ProcessedBatch
}

// BatchProcessorConfig 批处理器配置
type BatchProcessorConfig struct {
	// Workers 工作协程数量
	Workers int
	// BatchSize 批次大小
	BatchSize int
	// BatchTimeout 批次超时时间
	BatchTimeout time.Duration
	// EnableParallel 是否启用并行处理
	EnableParallel bool
}

// DefaultBatchProcessor 默认批处理器实现
//
// 所有工作协程共享同一个 Filter，并发查询命中同一个解码缓存。
type DefaultBatchProcessor struct {
	config  *BatchProcessorConfig
	filter  *filter.Filter
	metrics *PipelineMetrics
}

// NewDefaultBatchProcessor 创建默认批处理器
func NewDefaultBatchProcessor(
	cfg *BatchProcessorConfig,
	f *filter.Filter,
	metrics *PipelineMetrics,
) *DefaultBatchProcessor {
	if cfg == nil {
		cfg = &BatchProcessorConfig{
			Workers:        4,
			BatchSize:      1000,
			BatchTimeout:   100 * time.Millisecond,
			EnableParallel: true,
		}
	}

	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1000
	}
	if cfg.BatchTimeout <= 0 {
		cfg.BatchTimeout = 100 * time.Millisecond
	}

	return &DefaultBatchProcessor{
		config:  cfg,
		filter:  f,
		metrics: metrics,
	}
}

// Process 处理日志批次
func (p *DefaultBatchProcessor) Process(ctx context.Context, batch *Batch) (*ProcessedBatch, error) {
	if batch == nil || len(batch.Messages) == 0 {
		return &ProcessedBatch{
			Records:  make([]event.Record, 0),
			Outcomes: make(map[string]int),
		}, nil
	}

	startTime := time.Now()

	var result *ProcessedBatch
	if p.config.EnableParallel && len(batch.Messages) > 1 {
		result = p.processParallel(ctx, batch.Messages)
	} else {
		result = p.processSequential(ctx, batch.Messages)
	}

	result.BatchID = batch.ID
	result.ProcessingTime = time.Since(startTime)

	if p.metrics != nil {
		for status, count := range result.Outcomes {
			for i := 0; i < count; i++ {
				p.metrics.RecordEnriched(status)
			}
		}
		p.metrics.RecordProcessingDuration("batch_processing", result.ProcessingTime.Seconds())
		p.metrics.RecordBatchSize("batch", len(batch.Messages))
	}

	return result, nil
}

// processSequential 串行处理
func (p *DefaultBatchProcessor) processSequential(ctx context.Context, msgs []*event.Message) *ProcessedBatch {
	result := &ProcessedBatch{
		Records:  make([]event.Record, 0, len(msgs)),
		Outcomes: make(map[string]int),
	}

	for i, msg := range msgs {
		select {
		case <-ctx.Done():
			result.Skipped = msgs[i:]
			return result
		default:
		}

		p.enrichOne(msg, result, nil)
	}

	return result
}

// processParallel 并行处理
func (p *DefaultBatchProcessor) processParallel(ctx context.Context, msgs []*event.Message) *ProcessedBatch {
	result := &ProcessedBatch{
		Records:  make([]event.Record, 0, len(msgs)),
		Outcomes: make(map[string]int),
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)

	msgCh := make(chan *event.Message, len(msgs))

	for i := 0; i < p.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range msgCh {
				select {
				case <-ctx.Done():
					mu.Lock()
					result.Skipped = append(result.Skipped, msg)
					mu.Unlock()
					continue
				default:
				}

				p.enrichOne(msg, result, &mu)
			}
		}()
	}

	for _, msg := range msgs {
		msgCh <- msg
	}
	close(msgCh)

	wg.Wait()
	return result
}

// enrichOne 富化单条记录并累计结果，mu 为 nil 时表示串行调用
func (p *DefaultBatchProcessor) enrichOne(msg *event.Message, result *ProcessedBatch, mu *sync.Mutex) {
	start := time.Now()
	outcome := p.filter.Process(msg.Record)

	if p.metrics != nil {
		p.metrics.RecordEnrichLatency("geoip", time.Since(start).Seconds())
	}

	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	result.Records = append(result.Records, msg.Record)
	result.Outcomes[outcome.Status.String()]++
}

// ProcessAsync 异步处理日志批次
func (p *DefaultBatchProcessor) ProcessAsync(ctx context.Context, batch *Batch) <-chan *ProcessedBatch {
	resultCh := make(chan *ProcessedBatch, 1)

	go func() {
		defer close(resultCh)
		result, err := p.Process(ctx, batch)
		if err != nil {
			result = &ProcessedBatch{
				Records:  make([]event.Record, 0),
				Outcomes: map[string]int{},
				BatchID:  batch.ID,
			}
		}
		select {
		case resultCh <- result:
		case <-ctx.Done():
		}
	}()

	return resultCh
}

// BatchCollector 批次收集器
type BatchCollector struct {
	config    *BatchProcessorConfig
	buffer    []*event.Message
	mu        sync.Mutex
	batchID   int64
	lastFlush time.Time
}

// NewBatchCollector 创建批次收集器
func NewBatchCollector(cfg *BatchProcessorConfig) *BatchCollector {
	return &BatchCollector{
		config:    cfg,
		buffer:    make([]*event.Message, 0, cfg.BatchSize),
		lastFlush: time.Now(),
	}
}

// Add 添加消息到收集器，满批时返回待处理批次
func (c *BatchCollector) Add(msg *event.Message) *Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.buffer = append(c.buffer, msg)

	if len(c.buffer) >= c.config.BatchSize || time.Since(c.lastFlush) >= c.config.BatchTimeout {
		return c.flush()
	}

	return nil
}

// Flush 强制刷新缓冲区
func (c *BatchCollector) Flush() *Batch {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flush()
}

// flush 内部刷新方法（需要持有锁）
func (c *BatchCollector) flush() *Batch {
	if len(c.buffer) == 0 {
		return nil
	}

	c.batchID++
	batch := &Batch{
		Messages:  c.buffer,
		StartTime: time.Now(),
		ID:        fmt.Sprintf("batch-%d", c.batchID),
	}

	c.buffer = make([]*event.Message, 0, c.config.BatchSize)
	c.lastFlush = time.Now()

	return batch
}

// Size 返回当前缓冲区大小
func (c *BatchCollector) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.buffer)
}
