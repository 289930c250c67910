// Package main 是 geopipe 服务的入口点
//
// geopipe 负责：
//   - 从 Kafka 消费原始日志
//   - GeoIP 地理位置富化
//   - 写入下游 Kafka / Elasticsearch 兼容存储
//   - 失败消息路由到死信队列
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/houzhh15/geopipe/internal/config"
	"github.com/houzhh15/geopipe/internal/event"
	"github.com/houzhh15/geopipe/internal/filter"
	"github.com/houzhh15/geopipe/internal/geoip"
	"github.com/houzhh15/geopipe/internal/ops"
	"github.com/houzhh15/geopipe/internal/pipeline"
)

// 版本信息，构建时通过 ldflags 注入
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to service config file (yaml)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("geopipe %s (commit %s, built %s)\n", Version, GitCommit, BuildTime)
		return
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("geopipe starting",
		zap.String("version", Version),
		zap.String("commit", GitCommit),
		zap.String("input_topic", cfg.Pipeline.Input.Kafka.Topic),
		zap.String("geoip_database", cfg.Pipeline.Enrichment.Database),
	)

	if err := run(cfg, logger); err != nil {
		logger.Fatal("geopipe failed", zap.Error(err))
	}

	logger.Info("geopipe stopped")
}

// loadConfig 加载配置文件，路径为空时使用默认配置
func loadConfig(path string) (*config.ServiceConfig, error) {
	if path == "" {
		cfg := config.DefaultServiceConfig()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

// buildLogger 根据日志配置构建 zap logger
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var zapCfg zap.Config
	if cfg.Development {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

func run(cfg *config.ServiceConfig, logger *zap.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 指标
	registry := prometheus.NewRegistry()

	pipelineMetrics := pipeline.NewPipelineMetrics(cfg.Pipeline.Observability.ServiceName)
	if err := pipelineMetrics.Register(registry); err != nil {
		return fmt.Errorf("register pipeline metrics: %w", err)
	}

	readerMetrics := geoip.NewReaderMetrics(cfg.Pipeline.Observability.ServiceName)
	if err := readerMetrics.Register(registry); err != nil {
		return fmt.Errorf("register geoip metrics: %w", err)
	}

	dlqMetrics := event.NewDLQMetrics(cfg.Pipeline.Observability.ServiceName)
	if err := dlqMetrics.Register(registry); err != nil {
		return fmt.Errorf("register dlq metrics: %w", err)
	}

	healthMetrics := event.NewHealthMetrics(cfg.Pipeline.Observability.ServiceName)
	if err := healthMetrics.Register(registry); err != nil {
		return fmt.Errorf("register health metrics: %w", err)
	}

	// GeoIP 数据库：打不开直接终止启动
	geoRegistry := geoip.NewRegistry(logger)
	defer geoRegistry.Close()

	reader, err := geoRegistry.Reader(cfg.Pipeline.Enrichment.Database, cfg.Pipeline.Enrichment.CacheSize)
	if err != nil {
		return fmt.Errorf("open geoip database: %w", err)
	}
	reader.SetMetrics(readerMetrics)

	f, err := filter.New(&cfg.Pipeline.Enrichment, geoRegistry, logger)
	if err != nil {
		return fmt.Errorf("create enrichment filter: %w", err)
	}

	// Topic 管理：broker 暂时不可达不阻止启动，消费者会自行重试
	topicManager, err := event.NewTopicManager(cfg.TopicManagerConfig(), logger)
	if err != nil {
		return fmt.Errorf("create topic manager: %w", err)
	}
	ensureCtx, ensureCancel := context.WithTimeout(ctx, 30*time.Second)
	if err := topicManager.EnsureTopics(ensureCtx); err != nil {
		logger.Warn("failed to ensure topics", zap.Error(err))
	}
	ensureCancel()

	// 消费者
	consumer, err := event.NewKafkaConsumer(&event.KafkaConsumerConfig{
		Brokers:        cfg.Pipeline.Input.Kafka.Brokers,
		Topic:          cfg.Pipeline.Input.Kafka.Topic,
		GroupID:        cfg.Pipeline.Input.Kafka.ConsumerGroup,
		Concurrency:    cfg.Pipeline.Input.Kafka.Concurrency,
		MinBytes:       cfg.Pipeline.Input.Kafka.MinBytes,
		MaxBytes:       cfg.Pipeline.Input.Kafka.MaxBytes,
		MaxWait:        cfg.Pipeline.Input.Kafka.MaxWait,
		CommitInterval: cfg.Pipeline.Input.Kafka.CommitInterval,
	}, logger)
	if err != nil {
		return fmt.Errorf("create kafka consumer: %w", err)
	}

	// 死信队列
	var dlq *event.DeadLetterQueue
	if cfg.Pipeline.ErrorHandling.DLQEnabled {
		dlqProducer := event.NewKafkaProducer(&event.KafkaProducerConfig{
			Brokers: cfg.Pipeline.Input.Kafka.Brokers,
			Topic:   cfg.Pipeline.ErrorHandling.DLQTopic,
		}, logger)
		defer dlqProducer.Close()

		dlq, err = event.NewDeadLetterQueue(dlqProducer, &event.DeadLetterQueueConfig{
			Enabled:      true,
			Topic:        cfg.Pipeline.ErrorHandling.DLQTopic,
			MaxRetries:   cfg.Pipeline.ErrorHandling.MaxRetries,
			RetryBackoff: cfg.Pipeline.ErrorHandling.RetryBackoff,
		}, logger)
		if err != nil {
			return fmt.Errorf("create dead letter queue: %w", err)
		}
		dlq.SetMetrics(dlqMetrics)
		consumer.SetDeadLetterQueue(dlq)
	}

	// 输出写入器
	writers, err := cfg.Pipeline.BuildWriters(logger)
	if err != nil {
		return fmt.Errorf("build output writers: %w", err)
	}

	// 管线
	p, err := pipeline.NewPipeline(&cfg.Pipeline, f, consumer, writers, dlq, pipelineMetrics, logger)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	// 运维端点
	health := event.NewHealthChecker(cfg.Pipeline.Input.Kafka.Brokers, 5*time.Second, logger)
	health.SetMetrics(healthMetrics)

	opsServer := ops.NewServer(&ops.Config{
		ListenAddr:  cfg.Pipeline.Observability.ListenAddr,
		MetricsPath: cfg.Pipeline.Observability.MetricsPath,
		ServiceName: cfg.Pipeline.Observability.ServiceName,
		Build: ops.BuildInfo{
			Version:   Version,
			GitCommit: GitCommit,
			BuildTime: BuildTime,
		},
	}, p, f, health, registry, logger)

	if err := p.Start(ctx); err != nil {
		return fmt.Errorf("start pipeline: %w", err)
	}
	opsServer.Start()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := opsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("ops server shutdown failed", zap.Error(err))
	}
	if err := p.Stop(); err != nil {
		logger.Error("pipeline shutdown failed", zap.Error(err))
	}
	if err := topicManager.Close(); err != nil {
		logger.Error("topic manager close failed", zap.Error(err))
	}

	return nil
}
