// Package pipeline provides the log enrichment pipeline service.
package pipeline

import (
	"time"

	"go.uber.org/zap"

	"github.com/houzhh15/geopipe/internal/filter"
	"github.com/houzhh15/geopipe/internal/pipeline/writer"
)

// PipelineConfig 管线服务配置
type PipelineConfig struct {
	Input         InputConfig         `yaml:"input"`
	Processing    ProcessingConfig    `yaml:"processing"`
	Enrichment    filter.Config       `yaml:"enrichment"`
	Output        OutputConfig        `yaml:"output"`
	ErrorHandling ErrorConfig         `yaml:"error_handling"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// InputConfig 输入配置
type InputConfig struct {
	Kafka KafkaInputConfig `yaml:"kafka"`
}

// KafkaInputConfig Kafka输入配置
type KafkaInputConfig struct {
	Brokers        []string      `yaml:"brokers"`
	Topic          string        `yaml:"topic"`
	ConsumerGroup  string        `yaml:"consumer_group"`
	Concurrency    int           `yaml:"concurrency"`
	MinBytes       int           `yaml:"min_bytes"`
	MaxBytes       int           `yaml:"max_bytes"`
	MaxWait        time.Duration `yaml:"max_wait"`
	CommitInterval time.Duration `yaml:"commit_interval"`
}

// ProcessingConfig 处理配置
type ProcessingConfig struct {
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	WorkerCount  int           `yaml:"worker_count"`
}

// OutputConfig 输出配置
type OutputConfig struct {
	Kafka KafkaOutputConfig    `yaml:"kafka"`
	Bulk  BulkHTTPOutputConfig `yaml:"bulk"`
}

// KafkaOutputConfig Kafka输出配置
type KafkaOutputConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	BatchSize    int           `yaml:"batch_size"`
	BatchTimeout time.Duration `yaml:"batch_timeout"`
	Compression  string        `yaml:"compression"`
}

// BulkHTTPOutputConfig Elasticsearch 兼容批量输出配置
type BulkHTTPOutputConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Addresses     []string      `yaml:"addresses"`
	Index         string        `yaml:"index"`
	IndexRotation string        `yaml:"index_rotation"`
	BulkSize      int           `yaml:"bulk_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	Username      string        `yaml:"username"`
	Password      string        `yaml:"password"`
	TLSEnabled    bool          `yaml:"tls_enabled"`
	TLSSkipVerify bool          `yaml:"tls_skip_verify"`
}

// ErrorConfig 错误处理配置
type ErrorConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	MaxBackoff   time.Duration `yaml:"max_backoff"`
	DLQEnabled   bool          `yaml:"dlq_enabled"`
	DLQTopic     string        `yaml:"dlq_topic"`
}

// ObservabilityConfig 可观测性配置
type ObservabilityConfig struct {
	ListenAddr  string `yaml:"listen_addr"`
	MetricsPath string `yaml:"metrics_path"`
	ServiceName string `yaml:"service_name"`
}

// DefaultPipelineConfig 返回默认配置
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		Input: InputConfig{
			Kafka: KafkaInputConfig{
				Brokers:        []string{"localhost:19092"},
				Topic:          "logs.raw",
				ConsumerGroup:  "geopipe-enricher",
				Concurrency:    1,
				MinBytes:       1024,             // 1KB
				MaxBytes:       10 * 1024 * 1024, // 10MB
				MaxWait:        500 * time.Millisecond,
				CommitInterval: time.Second,
			},
		},
		Processing: ProcessingConfig{
			BatchSize:    1000,
			BatchTimeout: 100 * time.Millisecond,
			WorkerCount:  8,
		},
		Enrichment: filter.Config{
			Database:  "/data/GeoLite2-City.mmdb",
			Source:    "client_ip",
			Target:    filter.DefaultTarget,
			CacheSize: 1000,
		},
		Output: OutputConfig{
			Kafka: KafkaOutputConfig{
				Enabled:      true,
				Brokers:      []string{"localhost:19092"},
				Topic:        "logs.enriched",
				BatchSize:    100,
				BatchTimeout: 5 * time.Second,
				Compression:  "snappy",
			},
			Bulk: BulkHTTPOutputConfig{
				Enabled:       false,
				Addresses:     []string{"http://localhost:9200"},
				Index:         "logs-enriched",
				IndexRotation: "daily",
				BulkSize:      1000,
				FlushInterval: time.Second,
				TLSEnabled:    false,
				TLSSkipVerify: true,
			},
		},
		ErrorHandling: ErrorConfig{
			MaxRetries:   3,
			RetryBackoff: 100 * time.Millisecond,
			MaxBackoff:   2 * time.Second,
			DLQEnabled:   true,
			DLQTopic:     "logs.dlq",
		},
		Observability: ObservabilityConfig{
			ListenAddr:  ":9600",
			MetricsPath: "/metrics",
			ServiceName: "geopipe",
		},
	}
}

// Validate 验证配置
func (c *PipelineConfig) Validate() error {
	if len(c.Input.Kafka.Brokers) == 0 {
		return &ConfigError{Field: "input.kafka.brokers", Message: "brokers list cannot be empty"}
	}
	if c.Input.Kafka.Topic == "" {
		return &ConfigError{Field: "input.kafka.topic", Message: "topic cannot be empty"}
	}
	if c.Input.Kafka.ConsumerGroup == "" {
		return &ConfigError{Field: "input.kafka.consumer_group", Message: "consumer_group cannot be empty"}
	}
	if c.Processing.BatchSize <= 0 {
		return &ConfigError{Field: "processing.batch_size", Message: "batch_size must be positive"}
	}
	if c.Processing.WorkerCount <= 0 {
		return &ConfigError{Field: "processing.worker_count", Message: "worker_count must be positive"}
	}
	if err := c.Enrichment.Validate(); err != nil {
		return &ConfigError{Field: "enrichment", Message: err.Error()}
	}
	if !c.Output.Kafka.Enabled && !c.Output.Bulk.Enabled {
		return &ConfigError{Field: "output", Message: "at least one output must be enabled"}
	}
	if c.Output.Kafka.Enabled {
		if len(c.Output.Kafka.Brokers) == 0 {
			return &ConfigError{Field: "output.kafka.brokers", Message: "brokers list cannot be empty"}
		}
		if c.Output.Kafka.Topic == "" {
			return &ConfigError{Field: "output.kafka.topic", Message: "topic cannot be empty"}
		}
	}
	if c.Output.Bulk.Enabled {
		if len(c.Output.Bulk.Addresses) == 0 {
			return &ConfigError{Field: "output.bulk.addresses", Message: "addresses list cannot be empty"}
		}
		if c.Output.Bulk.Index == "" {
			return &ConfigError{Field: "output.bulk.index", Message: "index cannot be empty"}
		}
	}
	return nil
}

// BuildWriters 根据输出配置构造写入器列表
func (c *PipelineConfig) BuildWriters(logger *zap.Logger) ([]writer.Writer, error) {
	var writers []writer.Writer

	if c.Output.Kafka.Enabled {
		kw, err := writer.NewKafkaWriter(&writer.KafkaWriterConfig{
			Brokers:      c.Output.Kafka.Brokers,
			Topic:        c.Output.Kafka.Topic,
			BatchSize:    c.Output.Kafka.BatchSize,
			BatchTimeout: c.Output.Kafka.BatchTimeout,
			RequiredAcks: -1,
			Compression:  c.Output.Kafka.Compression,
			MaxRetries:   c.ErrorHandling.MaxRetries,
			RetryBackoff: c.ErrorHandling.RetryBackoff,
		})
		if err != nil {
			return nil, err
		}
		writers = append(writers, kw)
	}

	if c.Output.Bulk.Enabled {
		bw, err := writer.NewBulkHTTPWriter(&writer.BulkHTTPConfig{
			Addresses:     c.Output.Bulk.Addresses,
			Username:      c.Output.Bulk.Username,
			Password:      c.Output.Bulk.Password,
			Index:         c.Output.Bulk.Index,
			IndexRotation: c.Output.Bulk.IndexRotation,
			BatchSize:     c.Output.Bulk.BulkSize,
			FlushInterval: c.Output.Bulk.FlushInterval,
			TLSEnabled:    c.Output.Bulk.TLSEnabled,
			TLSInsecure:   c.Output.Bulk.TLSSkipVerify,
			MaxRetries:    c.ErrorHandling.MaxRetries,
			RetryBackoff:  c.ErrorHandling.RetryBackoff,
		}, logger)
		if err != nil {
			return nil, err
		}
		writers = append(writers, bw)
	}

	return writers, nil
}

// ConfigError 配置错误
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error: " + e.Field + ": " + e.Message
}
