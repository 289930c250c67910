// Package pipeline provides Prometheus metrics for the log enrichment pipeline.
package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics 管线指标
type PipelineMetrics struct {
	recordsConsumed    *prometheus.CounterVec
	recordsEnriched    *prometheus.CounterVec
	recordsWritten     *prometheus.CounterVec
	processingDuration *prometheus.HistogramVec
	batchSize          *prometheus.HistogramVec
	errorsTotal        *prometheus.CounterVec
	dlqMessages        *prometheus.CounterVec
	enrichLatency      *prometheus.HistogramVec
	writerLatency      *prometheus.HistogramVec
	bufferSize         *prometheus.GaugeVec
}

// NewPipelineMetrics 创建新的管线指标
func NewPipelineMetrics(namespace string) *PipelineMetrics {
	if namespace == "" {
		namespace = "geopipe"
	}

	return &PipelineMetrics{
		recordsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "records_consumed_total",
				Help:      "Total log records consumed from Kafka",
			},
			[]string{"topic"},
		),
		recordsEnriched: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "records_enriched_total",
				Help:      "Total records run through enrichment, by lookup status",
			},
			[]string{"status"},
		),
		recordsWritten: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "records_written_total",
				Help:      "Total records written to outputs",
			},
			[]string{"output", "status"},
		),
		processingDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "processing_duration_seconds",
				Help:      "Processing duration by stage",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"stage"},
		),
		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "batch_size",
				Help:      "Batch size histogram",
				Buckets:   []float64{1, 10, 50, 100, 250, 500, 1000, 2000},
			},
			[]string{"output"},
		),
		errorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "errors_total",
				Help:      "Total errors by stage and type",
			},
			[]string{"stage", "error_type"},
		),
		dlqMessages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "dlq_messages_total",
				Help:      "Total messages sent to DLQ",
			},
			[]string{"reason"},
		),
		enrichLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "enrich_latency_seconds",
				Help:      "Per-record enrichment latency in seconds",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"filter"},
		),
		writerLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "writer_latency_seconds",
				Help:      "Writer latency in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2},
			},
			[]string{"writer"},
		),
		bufferSize: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "buffer_size",
				Help:      "Current buffer size",
			},
			[]string{"buffer"},
		),
	}
}

// Register 注册所有指标
func (m *PipelineMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.recordsConsumed,
		m.recordsEnriched,
		m.recordsWritten,
		m.processingDuration,
		m.batchSize,
		m.errorsTotal,
		m.dlqMessages,
		m.enrichLatency,
		m.writerLatency,
		m.bufferSize,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister 注册所有指标（失败时 panic）
func (m *PipelineMetrics) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		m.recordsConsumed,
		m.recordsEnriched,
		m.recordsWritten,
		m.processingDuration,
		m.batchSize,
		m.errorsTotal,
		m.dlqMessages,
		m.enrichLatency,
		m.writerLatency,
		m.bufferSize,
	)
}

// RecordConsumed 记录消费的日志条数
func (m *PipelineMetrics) RecordConsumed(topic string, count int) {
	m.recordsConsumed.WithLabelValues(topic).Add(float64(count))
}

// RecordEnriched 按查询状态记录富化结果
func (m *PipelineMetrics) RecordEnriched(status string) {
	m.recordsEnriched.WithLabelValues(status).Inc()
}

// RecordWritten 记录写入结果
func (m *PipelineMetrics) RecordWritten(output string, count int, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.recordsWritten.WithLabelValues(output, status).Add(float64(count))
}

// RecordProcessingDuration 记录处理耗时
func (m *PipelineMetrics) RecordProcessingDuration(stage string, seconds float64) {
	m.processingDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordBatchSize 记录批量大小
func (m *PipelineMetrics) RecordBatchSize(output string, size int) {
	m.batchSize.WithLabelValues(output).Observe(float64(size))
}

// RecordError 记录错误
func (m *PipelineMetrics) RecordError(stage, errorType string) {
	m.errorsTotal.WithLabelValues(stage, errorType).Inc()
}

// RecordDLQMessage 记录 DLQ 消息
func (m *PipelineMetrics) RecordDLQMessage(reason string) {
	m.dlqMessages.WithLabelValues(reason).Inc()
}

// RecordEnrichLatency 记录单条富化延迟
func (m *PipelineMetrics) RecordEnrichLatency(filter string, seconds float64) {
	m.enrichLatency.WithLabelValues(filter).Observe(seconds)
}

// RecordWriterLatency 记录写入器延迟
func (m *PipelineMetrics) RecordWriterLatency(writer string, seconds float64) {
	m.writerLatency.WithLabelValues(writer).Observe(seconds)
}

// SetBufferSize 设置缓冲区大小
func (m *PipelineMetrics) SetBufferSize(buffer string, size int) {
	m.bufferSize.WithLabelValues(buffer).Set(float64(size))
}
