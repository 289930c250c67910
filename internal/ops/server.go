// Package ops 提供服务的运维 HTTP 端点：健康检查、指标和调试查询
package ops

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/houzhh15/geopipe/internal/event"
	"github.com/houzhh15/geopipe/internal/filter"
)

// Pipeline 管线状态的最小接口
type Pipeline interface {
	HealthCheck() error
	IsRunning() bool
}

// BuildInfo 构建信息，由入口通过 ldflags 注入
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
}

// Config 运维服务配置
type Config struct {
	ListenAddr  string    `yaml:"listen_addr"`
	MetricsPath string    `yaml:"metrics_path"`
	ServiceName string    `yaml:"service_name"`
	Build       BuildInfo `yaml:"-"`
}

// DefaultConfig 返回默认运维服务配置
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:  ":9600",
		MetricsPath: "/metrics",
		ServiceName: "geopipe",
		Build: BuildInfo{
			Version:   "0.1.0",
			GitCommit: "unknown",
			BuildTime: "unknown",
		},
	}
}

// Server 运维 HTTP 服务
type Server struct {
	config   *Config
	engine   *gin.Engine
	srv      *http.Server
	pipeline Pipeline
	filter   *filter.Filter
	kafka    *event.HealthChecker
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// NewServer 创建运维服务
//
// pipeline、f、kafka、gatherer 均可为 nil，对应端点降级为不可用。
func NewServer(
	cfg *Config,
	pl Pipeline,
	f *filter.Filter,
	kafka *event.HealthChecker,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":9600"
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		config:   cfg,
		engine:   engine,
		pipeline: pl,
		filter:   f,
		kafka:    kafka,
		gatherer: gatherer,
		logger:   logger,
	}
	s.registerRoutes()

	s.srv = &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: engine,
	}

	return s
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/stats", s.handleStats)
	s.engine.GET("/version", s.handleVersion)

	if s.gatherer != nil {
		handler := promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})
		s.engine.GET(s.config.MetricsPath, gin.WrapH(handler))
	}

	debug := s.engine.Group("/debug")
	{
		debug.GET("/lookup/:ip", s.handleLookup)
	}
}

// handleHealth 汇总管线和 Kafka 的健康状态
func (s *Server) handleHealth(c *gin.Context) {
	resp := gin.H{
		"service": s.config.ServiceName,
		"version": s.config.Build.Version,
	}

	healthy := true

	if s.pipeline != nil {
		if err := s.pipeline.HealthCheck(); err != nil {
			healthy = false
			resp["pipeline"] = gin.H{"healthy": false, "error": err.Error()}
		} else {
			resp["pipeline"] = gin.H{"healthy": true}
		}
	}

	if s.kafka != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		status := s.kafka.Check(ctx)
		resp["kafka"] = status
		if !status.Healthy {
			healthy = false
		}
	}

	resp["healthy"] = healthy

	code := http.StatusOK
	if !healthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// handleStats 返回管线运行状态
func (s *Server) handleStats(c *gin.Context) {
	if s.pipeline == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "pipeline not attached"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"running": s.pipeline.IsRunning(),
	})
}

// handleVersion 返回构建信息
func (s *Server) handleVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service":    s.config.ServiceName,
		"version":    s.config.Build.Version,
		"git_commit": s.config.Build.GitCommit,
		"build_time": s.config.Build.BuildTime,
	})
}

// handleLookup 对单个 IP 执行一次富化，用于调试字段投影配置
func (s *Server) handleLookup(c *gin.Context) {
	if s.filter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "enrichment filter not attached"})
		return
	}

	ip := c.Param("ip")
	rec := event.Record{s.filter.Source(): ip}
	outcome := s.filter.Process(rec)

	resp := gin.H{
		"ip":      ip,
		"status":  outcome.Status.String(),
		"matched": outcome.Matched,
	}
	if target, ok := rec.Get(s.filter.Target()); ok {
		resp[s.filter.Target()] = target
	}

	code := http.StatusOK
	if !outcome.Matched {
		code = http.StatusNotFound
	}
	c.JSON(code, resp)
}

// Start 启动 HTTP 服务（非阻塞）
func (s *Server) Start() {
	go func() {
		s.logger.Info("ops server listening", zap.String("addr", s.config.ListenAddr))
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("ops server failed", zap.Error(err))
		}
	}()
}

// Shutdown 优雅关闭 HTTP 服务
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	return nil
}

// Handler 返回底层 HTTP 处理器，供测试使用
func (s *Server) Handler() http.Handler {
	return s.engine
}
