package geoip

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Registry 按数据库路径共享 Reader 实例
//
// 多个过滤器配置同一数据库路径时复用同一个 Reader 和解码缓存，
// 首次请求时打开，进程退出时统一关闭。通过初始化参数显式传递，
// 不使用包级全局状态。
type Registry struct {
	mu      sync.Mutex
	readers map[string]*Reader
	logger  *zap.Logger

	// open 可在测试中替换
	open func(path string, cacheSize int, logger *zap.Logger) (*Reader, error)
}

// NewRegistry 创建 Reader 注册表
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		readers: make(map[string]*Reader),
		logger:  logger,
		open:    Open,
	}
}

// Reader 返回指定数据库路径的共享 Reader
//
// 首次请求打开数据库并分配缓存，之后的请求复用同一实例，
// 此时 cacheSize 被忽略（缓存归首次打开者所有）。
func (g *Registry) Reader(path string, cacheSize int) (*Reader, error) {
	if path == "" {
		return nil, fmt.Errorf("geoip database path is empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if r, ok := g.readers[path]; ok {
		return r, nil
	}

	r, err := g.open(path, cacheSize, g.logger)
	if err != nil {
		return nil, err
	}
	g.readers[path] = r

	return r, nil
}

// Close 关闭所有已打开的 Reader
func (g *Registry) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	var lastErr error
	for path, r := range g.readers {
		if err := r.Close(); err != nil {
			g.logger.Error("failed to close geoip reader",
				zap.String("path", path),
				zap.Error(err),
			)
			lastErr = err
		}
		delete(g.readers, path)
	}
	return lastErr
}
