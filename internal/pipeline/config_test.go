package pipeline

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestDefaultPipelineConfig(t *testing.T) {
	cfg := DefaultPipelineConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}

	if cfg.Input.Kafka.Topic != "logs.raw" {
		t.Errorf("input topic = %s, want logs.raw", cfg.Input.Kafka.Topic)
	}
	if cfg.Output.Kafka.Topic != "logs.enriched" {
		t.Errorf("output topic = %s, want logs.enriched", cfg.Output.Kafka.Topic)
	}
	if cfg.ErrorHandling.DLQTopic != "logs.dlq" {
		t.Errorf("dlq topic = %s, want logs.dlq", cfg.ErrorHandling.DLQTopic)
	}
	if cfg.Enrichment.Target != "geoip" {
		t.Errorf("enrichment target = %s, want geoip", cfg.Enrichment.Target)
	}
	if cfg.Enrichment.CacheSize != 1000 {
		t.Errorf("cache size = %d, want 1000", cfg.Enrichment.CacheSize)
	}
	if !cfg.Output.Kafka.Enabled || cfg.Output.Bulk.Enabled {
		t.Error("defaults should enable kafka output only")
	}
}

func TestPipelineConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *PipelineConfig)
		field  string
	}{
		{
			name:   "empty input brokers",
			mutate: func(cfg *PipelineConfig) { cfg.Input.Kafka.Brokers = nil },
			field:  "input.kafka.brokers",
		},
		{
			name:   "empty input topic",
			mutate: func(cfg *PipelineConfig) { cfg.Input.Kafka.Topic = "" },
			field:  "input.kafka.topic",
		},
		{
			name:   "empty consumer group",
			mutate: func(cfg *PipelineConfig) { cfg.Input.Kafka.ConsumerGroup = "" },
			field:  "input.kafka.consumer_group",
		},
		{
			name:   "zero batch size",
			mutate: func(cfg *PipelineConfig) { cfg.Processing.BatchSize = 0 },
			field:  "processing.batch_size",
		},
		{
			name:   "zero workers",
			mutate: func(cfg *PipelineConfig) { cfg.Processing.WorkerCount = 0 },
			field:  "processing.worker_count",
		},
		{
			name:   "missing enrichment source",
			mutate: func(cfg *PipelineConfig) { cfg.Enrichment.Source = "" },
			field:  "enrichment",
		},
		{
			name: "no output enabled",
			mutate: func(cfg *PipelineConfig) {
				cfg.Output.Kafka.Enabled = false
				cfg.Output.Bulk.Enabled = false
			},
			field: "output",
		},
		{
			name: "kafka output without topic",
			mutate: func(cfg *PipelineConfig) {
				cfg.Output.Kafka.Topic = ""
			},
			field: "output.kafka.topic",
		},
		{
			name: "bulk output without index",
			mutate: func(cfg *PipelineConfig) {
				cfg.Output.Bulk.Enabled = true
				cfg.Output.Bulk.Index = ""
			},
			field: "output.bulk.index",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultPipelineConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() expected error")
			}

			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("error type = %T, want *ConfigError", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Field = %s, want %s", cfgErr.Field, tt.field)
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("Error() = %q should mention field", err.Error())
			}
		})
	}
}

func TestPipelineConfig_BuildWriters(t *testing.T) {
	logger := zaptest.NewLogger(t)

	cfg := DefaultPipelineConfig()
	writers, err := cfg.BuildWriters(logger)
	if err != nil {
		t.Fatalf("BuildWriters() error = %v", err)
	}
	if len(writers) != 1 {
		t.Fatalf("writers = %d, want 1 (kafka only)", len(writers))
	}
	for _, w := range writers {
		_ = w.Close()
	}

	cfg.Output.Bulk.Enabled = true
	writers, err = cfg.BuildWriters(logger)
	if err != nil {
		t.Fatalf("BuildWriters() with bulk error = %v", err)
	}
	if len(writers) != 2 {
		t.Fatalf("writers = %d, want 2", len(writers))
	}
	for _, w := range writers {
		_ = w.Close()
	}
}
