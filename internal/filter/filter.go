// Package filter provides GeoIP enrichment for log records.
package filter

import (
	"fmt"
	"net"

	"go.uber.org/zap"

	"github.com/houzhh15/geopipe/internal/event"
	"github.com/houzhh15/geopipe/internal/geoip"
)

// DefaultTarget 默认写入的目标字段
const DefaultTarget = "geoip"

// Config 富化过滤器配置
type Config struct {
	Database  string   `yaml:"database"`
	Source    string   `yaml:"source"`
	Target    string   `yaml:"target"`
	Fields    []string `yaml:"fields"`
	CacheSize int      `yaml:"cache_size"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Target:    DefaultTarget,
		CacheSize: geoip.DefaultCacheSize,
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Source == "" {
		return fmt.Errorf("filter: source field cannot be empty")
	}
	if c.Database == "" {
		return fmt.Errorf("filter: database path cannot be empty")
	}
	return nil
}

// Lookuper 执行 GeoIP 查询，由 *geoip.Reader 实现
type Lookuper interface {
	Lookup(ip net.IP) geoip.Result
}

// Outcome Process 的结果：是否命中及查询状态
//
// Process 从不返回 error，失败细节放在 Err 中仅供记录日志。
type Outcome struct {
	Matched bool
	Status  geoip.Status
	Err     error
}

// Filter 对单条日志记录做 GeoIP 富化
//
// 多个 goroutine 可并发调用 Process，底层 Reader 的解码缓存是共享且
// 并发安全的。
type Filter struct {
	source string
	target string
	fields []string
	lookup Lookuper
	logger *zap.Logger
}

// New 创建过滤器，通过 Registry 获取（或复用）数据库读取器
func New(cfg *Config, registry *geoip.Registry, logger *zap.Logger) (*Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	reader, err := registry.Reader(cfg.Database, cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("filter: open database: %w", err)
	}

	return NewWithLookuper(cfg, reader, logger)
}

// NewWithLookuper 使用给定的 Lookuper 创建过滤器
func NewWithLookuper(cfg *Config, lookup Lookuper, logger *zap.Logger) (*Filter, error) {
	if cfg.Source == "" {
		return nil, fmt.Errorf("filter: source field cannot be empty")
	}
	if lookup == nil {
		return nil, fmt.Errorf("filter: lookuper cannot be nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	target := cfg.Target
	if target == "" {
		target = DefaultTarget
	}

	return &Filter{
		source: cfg.Source,
		target: target,
		fields: resolveFields(cfg.Fields),
		lookup: lookup,
		logger: logger,
	}, nil
}

// Source 返回来源字段名
func (f *Filter) Source() string { return f.source }

// Target 返回目标字段名
func (f *Filter) Target() string { return f.target }

// Fields 返回生效的投影字段
func (f *Filter) Fields() []string { return f.fields }

// Process 富化一条日志记录
//
// 失败（来源缺失、非 IP、库中无记录、解码出错）时目标字段写入空对象
// 并返回未命中的 Outcome，绝不向上抛错。
func (f *Filter) Process(rec event.Record) Outcome {
	raw, ok := rec.Get(f.source)
	if !ok {
		rec.Set(f.target, map[string]any{})
		f.logger.Debug("source field missing",
			zap.String("source", f.source),
		)
		return Outcome{Status: geoip.StatusInvalidInput}
	}

	ipStr, ok := sourceValue(raw)
	if !ok {
		rec.Set(f.target, map[string]any{})
		f.logger.Debug("source field is not a string",
			zap.String("source", f.source),
		)
		return Outcome{Status: geoip.StatusInvalidInput}
	}

	// 只接受 IP 字面量，不做主机名解析
	ip := net.ParseIP(ipStr)
	if ip == nil {
		rec.Set(f.target, map[string]any{})
		f.logger.Debug("source value is not an IP address",
			zap.String("source", f.source),
			zap.String("value", ipStr),
		)
		return Outcome{Status: geoip.StatusInvalidInput}
	}

	result := f.lookup.Lookup(ip)
	switch result.Status {
	case geoip.StatusFound:
		rec.Set(f.target, f.project(result.Record, ip))
		return Outcome{Matched: true, Status: geoip.StatusFound}

	case geoip.StatusNotFound:
		rec.Set(f.target, map[string]any{})
		f.logger.Debug("no geo data for address",
			zap.String("ip", ip.String()),
		)
		return Outcome{Status: geoip.StatusNotFound}

	case geoip.StatusDatabaseError:
		rec.Set(f.target, map[string]any{})
		f.logger.Error("geoip database lookup failed",
			zap.String("ip", ip.String()),
			zap.Error(result.Err),
		)
		return Outcome{Status: geoip.StatusDatabaseError, Err: result.Err}

	default:
		rec.Set(f.target, map[string]any{})
		return Outcome{Status: result.Status, Err: result.Err}
	}
}

// project 按配置的字段子集投影数据库记录
func (f *Filter) project(dbRec *geoip.Record, ip net.IP) map[string]any {
	out := make(map[string]any, len(f.fields))
	for _, name := range f.fields {
		out[name] = fieldAccessors[name](dbRec, ip)
	}
	return out
}

// sourceValue 提取来源字段的字符串值，切片取第一个元素
func sourceValue(raw any) (string, bool) {
	if values, ok := raw.([]any); ok {
		if len(values) == 0 {
			return "", false
		}
		raw = values[0]
	}
	s, ok := raw.(string)
	return s, ok
}
