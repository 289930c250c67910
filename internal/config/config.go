// Package config provides configuration loading for the geopipe service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/houzhh15/geopipe/internal/event"
	"github.com/houzhh15/geopipe/internal/pipeline"
)

// ServiceConfig 服务顶层配置
type ServiceConfig struct {
	Pipeline pipeline.PipelineConfig `yaml:"pipeline"`
	Topics   TopicsConfig            `yaml:"topics"`
	Logging  LoggingConfig           `yaml:"logging"`
}

// TopicsConfig Topic 配置集合
type TopicsConfig struct {
	AutoCreate bool        `yaml:"auto_create"`
	Raw        TopicConfig `yaml:"raw"`
	Enriched   TopicConfig `yaml:"enriched"`
	DLQ        TopicConfig `yaml:"dlq"`
}

// TopicConfig 单个 Topic 配置
type TopicConfig struct {
	Name              string `yaml:"name"`
	Partitions        int    `yaml:"partitions"`
	ReplicationFactor int    `yaml:"replication_factor"`
	RetentionMs       int64  `yaml:"retention_ms"`
	CleanupPolicy     string `yaml:"cleanup_policy"`
}

// LoggingConfig 日志配置
type LoggingConfig struct {
	Level       string `yaml:"level"`       // debug, info, warn, error
	Development bool   `yaml:"development"` // console encoder with stacktraces
}

// DefaultServiceConfig 返回默认服务配置
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Pipeline: *pipeline.DefaultPipelineConfig(),
		Topics: TopicsConfig{
			AutoCreate: true,
			Raw: TopicConfig{
				Name:              "logs.raw",
				Partitions:        12,
				ReplicationFactor: 1,
				RetentionMs:       7 * 24 * 60 * 60 * 1000, // 7 days
				CleanupPolicy:     "delete",
			},
			Enriched: TopicConfig{
				Name:              "logs.enriched",
				Partitions:        12,
				ReplicationFactor: 1,
				RetentionMs:       7 * 24 * 60 * 60 * 1000,
				CleanupPolicy:     "delete",
			},
			DLQ: TopicConfig{
				Name:              "logs.dlq",
				Partitions:        3,
				ReplicationFactor: 1,
				RetentionMs:       30 * 24 * 60 * 60 * 1000, // 30 days
				CleanupPolicy:     "delete",
			},
		},
		Logging: LoggingConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Load 从文件加载服务配置，未设置的字段回落到默认值
func Load(path string) (*ServiceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultServiceConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults 补齐零值字段
func (c *ServiceConfig) applyDefaults() {
	if c.Topics.Raw.Name == "" {
		c.Topics.Raw.Name = "logs.raw"
	}
	if c.Topics.Enriched.Name == "" {
		c.Topics.Enriched.Name = "logs.enriched"
	}
	if c.Topics.DLQ.Name == "" {
		c.Topics.DLQ.Name = "logs.dlq"
	}

	for _, t := range []*TopicConfig{&c.Topics.Raw, &c.Topics.Enriched, &c.Topics.DLQ} {
		if t.Partitions == 0 {
			t.Partitions = 1
		}
		if t.ReplicationFactor == 0 {
			t.ReplicationFactor = 1
		}
		if t.RetentionMs == 0 {
			t.RetentionMs = 7 * 24 * 60 * 60 * 1000
		}
		if t.CleanupPolicy == "" {
			t.CleanupPolicy = "delete"
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// Validate 验证服务配置
func (c *ServiceConfig) Validate() error {
	if err := c.Pipeline.Validate(); err != nil {
		return err
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging: level must be one of: debug, info, warn, error")
	}

	for _, t := range c.AllTopics() {
		if t.Name == "" {
			return fmt.Errorf("topics: topic name cannot be empty")
		}
		if t.Partitions <= 0 {
			return fmt.Errorf("topics: topic %s partitions must be positive", t.Name)
		}
		if t.ReplicationFactor <= 0 {
			return fmt.Errorf("topics: topic %s replication_factor must be positive", t.Name)
		}
	}

	return nil
}

// AllTopics 返回所有 Topic 配置
func (c *ServiceConfig) AllTopics() []TopicConfig {
	return []TopicConfig{c.Topics.Raw, c.Topics.Enriched, c.Topics.DLQ}
}

// TopicManagerConfig 转换为 TopicManager 可用的配置
func (c *ServiceConfig) TopicManagerConfig() *event.TopicManagerConfig {
	topicConfigs := make(map[string]event.TopicDefinition, 3)
	for _, t := range c.AllTopics() {
		topicConfigs[t.Name] = event.TopicDefinition{
			Partitions:        t.Partitions,
			ReplicationFactor: t.ReplicationFactor,
			RetentionMs:       t.RetentionMs,
			CleanupPolicy:     t.CleanupPolicy,
		}
	}

	return &event.TopicManagerConfig{
		Brokers:      c.Pipeline.Input.Kafka.Brokers,
		TopicConfigs: topicConfigs,
		AutoCreate:   c.Topics.AutoCreate,
		DialTimeout:  10 * time.Second,
	}
}
