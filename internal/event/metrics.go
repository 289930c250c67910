// Package event provides Prometheus metrics for Kafka components.
package event

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ProducerMetrics contains Prometheus metrics for Kafka producer.
type ProducerMetrics struct {
	messagesProduced *prometheus.CounterVec
	bytesProduced    *prometheus.CounterVec
	produceLatency   *prometheus.HistogramVec
	produceErrors    *prometheus.CounterVec
	batchSize        *prometheus.HistogramVec
	retryCount       *prometheus.CounterVec
}

// NewProducerMetrics creates a new ProducerMetrics instance.
func NewProducerMetrics(namespace string) *ProducerMetrics {
	if namespace == "" {
		namespace = "geopipe"
	}

	return &ProducerMetrics{
		messagesProduced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka_producer",
				Name:      "messages_total",
				Help:      "Total number of messages produced",
			},
			[]string{"topic", "status"},
		),
		bytesProduced: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka_producer",
				Name:      "bytes_total",
				Help:      "Total bytes produced",
			},
			[]string{"topic"},
		),
		produceLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka_producer",
				Name:      "latency_seconds",
				Help:      "Produce latency in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"topic"},
		),
		produceErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka_producer",
				Name:      "errors_total",
				Help:      "Total produce errors",
			},
			[]string{"topic", "error_type"},
		),
		batchSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka_producer",
				Name:      "batch_size",
				Help:      "Batch size histogram",
				Buckets:   []float64{1, 10, 50, 100, 500, 1000},
			},
			[]string{"topic"},
		),
		retryCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka_producer",
				Name:      "retries_total",
				Help:      "Total retry attempts",
			},
			[]string{"topic"},
		),
	}
}

// Register registers all metrics with the given registerer.
func (m *ProducerMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.messagesProduced,
		m.bytesProduced,
		m.produceLatency,
		m.produceErrors,
		m.batchSize,
		m.retryCount,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordMessagesProduced records successful or failed message production.
func (m *ProducerMetrics) RecordMessagesProduced(topic string, count int, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.messagesProduced.WithLabelValues(topic, status).Add(float64(count))
}

// RecordBytesProduced records bytes produced to a topic.
func (m *ProducerMetrics) RecordBytesProduced(topic string, bytes int) {
	m.bytesProduced.WithLabelValues(topic).Add(float64(bytes))
}

// RecordProduceLatency records produce latency in seconds.
func (m *ProducerMetrics) RecordProduceLatency(topic string, seconds float64) {
	m.produceLatency.WithLabelValues(topic).Observe(seconds)
}

// RecordProduceError records a produce error.
func (m *ProducerMetrics) RecordProduceError(topic, errorType string) {
	m.produceErrors.WithLabelValues(topic, errorType).Inc()
}

// RecordBatchSize records the size of a produced batch.
func (m *ProducerMetrics) RecordBatchSize(topic string, size int) {
	m.batchSize.WithLabelValues(topic).Observe(float64(size))
}

// RecordRetry records a retry attempt.
func (m *ProducerMetrics) RecordRetry(topic string) {
	m.retryCount.WithLabelValues(topic).Inc()
}

// ConsumerMetrics contains Prometheus metrics for Kafka consumer.
type ConsumerMetrics struct {
	messagesConsumed *prometheus.CounterVec
	consumeErrors    *prometheus.CounterVec
	offsetCommits    *prometheus.CounterVec
	processingTime   *prometheus.HistogramVec
}

// NewConsumerMetrics creates a new ConsumerMetrics instance.
func NewConsumerMetrics(namespace string) *ConsumerMetrics {
	if namespace == "" {
		namespace = "geopipe"
	}

	return &ConsumerMetrics{
		messagesConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka_consumer",
				Name:      "messages_total",
				Help:      "Total messages consumed",
			},
			[]string{"topic", "group", "status"},
		),
		consumeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka_consumer",
				Name:      "errors_total",
				Help:      "Total consume errors",
			},
			[]string{"topic", "group", "error_type"},
		),
		offsetCommits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "kafka_consumer",
				Name:      "commits_total",
				Help:      "Total offset commits",
			},
			[]string{"topic", "group", "status"},
		),
		processingTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka_consumer",
				Name:      "processing_seconds",
				Help:      "Message processing time in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"topic", "group"},
		),
	}
}

// Register registers all metrics with the given registerer.
func (m *ConsumerMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.messagesConsumed,
		m.consumeErrors,
		m.offsetCommits,
		m.processingTime,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordMessagesConsumed records successful or failed message consumption.
func (m *ConsumerMetrics) RecordMessagesConsumed(topic, group string, count int, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.messagesConsumed.WithLabelValues(topic, group, status).Add(float64(count))
}

// RecordConsumeError records a consume error.
func (m *ConsumerMetrics) RecordConsumeError(topic, group, errorType string) {
	m.consumeErrors.WithLabelValues(topic, group, errorType).Inc()
}

// RecordOffsetCommit records an offset commit (success or failure).
func (m *ConsumerMetrics) RecordOffsetCommit(topic, group string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.offsetCommits.WithLabelValues(topic, group, status).Inc()
}

// RecordProcessingTime records message processing time in seconds.
func (m *ConsumerMetrics) RecordProcessingTime(topic, group string, seconds float64) {
	m.processingTime.WithLabelValues(topic, group).Observe(seconds)
}

// DLQMetrics contains Prometheus metrics for Dead Letter Queue.
type DLQMetrics struct {
	messagesRouted *prometheus.CounterVec
	routeLatency   *prometheus.HistogramVec
	routeErrors    *prometheus.CounterVec
	retryAttempts  *prometheus.CounterVec
}

// NewDLQMetrics creates a new DLQMetrics instance.
func NewDLQMetrics(namespace string) *DLQMetrics {
	if namespace == "" {
		namespace = "geopipe"
	}

	return &DLQMetrics{
		messagesRouted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dlq",
				Name:      "messages_total",
				Help:      "Total messages routed to DLQ",
			},
			[]string{"original_topic", "reason"},
		),
		routeLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "dlq",
				Name:      "route_latency_seconds",
				Help:      "DLQ route latency in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"original_topic"},
		),
		routeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dlq",
				Name:      "errors_total",
				Help:      "Total DLQ route errors",
			},
			[]string{"original_topic", "error_type"},
		),
		retryAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dlq",
				Name:      "retries_total",
				Help:      "Total DLQ retry attempts",
			},
			[]string{"original_topic"},
		),
	}
}

// Register registers all metrics with the given registerer.
func (m *DLQMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.messagesRouted,
		m.routeLatency,
		m.routeErrors,
		m.retryAttempts,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordMessageRouted records a message routed to DLQ.
func (m *DLQMetrics) RecordMessageRouted(originalTopic, reason string) {
	m.messagesRouted.WithLabelValues(originalTopic, reason).Inc()
}

// RecordRouteLatency records DLQ route latency in seconds.
func (m *DLQMetrics) RecordRouteLatency(originalTopic string, seconds float64) {
	m.routeLatency.WithLabelValues(originalTopic).Observe(seconds)
}

// RecordRouteError records a DLQ route error.
func (m *DLQMetrics) RecordRouteError(originalTopic, errorType string) {
	m.routeErrors.WithLabelValues(originalTopic, errorType).Inc()
}

// RecordRetryAttempt records a DLQ retry attempt.
func (m *DLQMetrics) RecordRetryAttempt(originalTopic string) {
	m.retryAttempts.WithLabelValues(originalTopic).Inc()
}

// HealthMetrics contains Prometheus metrics for Kafka health checks.
type HealthMetrics struct {
	checkDuration *prometheus.HistogramVec
	checkStatus   *prometheus.GaugeVec
	brokersUp     prometheus.Gauge
}

// NewHealthMetrics creates a new HealthMetrics instance.
func NewHealthMetrics(namespace string) *HealthMetrics {
	if namespace == "" {
		namespace = "geopipe"
	}

	return &HealthMetrics{
		checkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "kafka_health",
				Name:      "check_duration_seconds",
				Help:      "Health check duration in seconds",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"check_type"},
		),
		checkStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "kafka_health",
				Name:      "status",
				Help:      "Health status by component (1=healthy, 0=unhealthy)",
			},
			[]string{"component"},
		),
		brokersUp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "kafka_health",
				Name:      "brokers_up",
				Help:      "Number of reachable brokers",
			},
		),
	}
}

// Register registers all metrics with the given registerer.
func (m *HealthMetrics) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		m.checkDuration,
		m.checkStatus,
		m.brokersUp,
	}

	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// RecordCheckDuration records a health check duration.
func (m *HealthMetrics) RecordCheckDuration(checkType string, seconds float64) {
	m.checkDuration.WithLabelValues(checkType).Observe(seconds)
}

// SetCheckStatus sets the health status for a component.
func (m *HealthMetrics) SetCheckStatus(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	m.checkStatus.WithLabelValues(component).Set(v)
}

// SetBrokersUp sets the number of reachable brokers.
func (m *HealthMetrics) SetBrokersUp(count int) {
	m.brokersUp.Set(float64(count))
}
