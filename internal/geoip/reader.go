package geoip

import (
	"fmt"
	"net"
	"time"

	"github.com/oschwald/maxminddb-golang"
	"go.uber.org/zap"
)

// DefaultCacheSize 解码缓存默认容量
const DefaultCacheSize = 1000

// geoDatabase 底层二进制数据库的最小接口，*maxminddb.Reader 直接满足
type geoDatabase interface {
	LookupNetwork(ip net.IP, result interface{}) (*net.IPNet, bool, error)
	Close() error
}

// Reader 包装一个已打开的地理位置数据库
//
// 独占持有数据库句柄和解码缓存，多个 goroutine 可并发调用 Lookup。
// 同一数据库路径应通过 Registry 共享一个 Reader 实例，
// 以提高缓存命中率并约束总内存。
type Reader struct {
	db      geoDatabase
	cache   *decodeCache
	logger  *zap.Logger
	metrics *ReaderMetrics
}

// Open 打开数据库文件并分配解码缓存
//
// 路径不存在或文件不是合法的 MMDB 格式时返回错误，调用方应视为致命。
// cacheSize 不合法时使用 DefaultCacheSize。
func Open(path string, cacheSize int, logger *zap.Logger) (*Reader, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := maxminddb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}

	logger.Info("geoip database opened",
		zap.String("path", path),
		zap.Int("cache_size", effectiveCacheSize(cacheSize)),
	)

	return &Reader{
		db:     db,
		cache:  newDecodeCache(cacheSize),
		logger: logger,
	}, nil
}

func effectiveCacheSize(n int) int {
	if n <= 0 {
		return DefaultCacheSize
	}
	return n
}

// SetMetrics 设置指标收集器
func (r *Reader) SetMetrics(m *ReaderMetrics) {
	r.metrics = m
}

// Lookup 查询一个已解析的 IP 地址
//
// 先查缓存，未命中时从数据库解码；成功和未找到的结果都会
// 在容量允许时写入缓存。解码错误不缓存，避免掩盖暂时性的
// 数据库问题。主机名解析必须在调用前完成，主机名不是合法
// 的缓存键。
func (r *Reader) Lookup(ip net.IP) Result {
	key := ip.To16()
	if key == nil {
		r.observe(StatusInvalidInput, false, 0)
		return Result{Status: StatusInvalidInput}
	}

	if cached, ok := r.cache.get(string(key)); ok {
		r.observe(cached.Status, true, 0)
		return cached
	}

	start := time.Now()
	record := &Record{}
	_, found, err := r.db.LookupNetwork(ip, record)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Error("geoip database lookup failed",
			zap.String("ip", ip.String()),
			zap.Error(err),
		)
		r.observe(StatusDatabaseError, false, elapsed)
		return Result{Status: StatusDatabaseError, Err: err}
	}

	result := Result{Status: StatusNotFound}
	if found {
		result = Result{Status: StatusFound, Record: record}
	}

	r.cache.put(string(key), result)
	r.observe(result.Status, false, elapsed)

	return result
}

// CacheLen 当前缓存条目数
func (r *Reader) CacheLen() int {
	return r.cache.len()
}

// Close 关闭数据库句柄，之后不可再调用 Lookup
func (r *Reader) Close() error {
	return r.db.Close()
}

func (r *Reader) observe(status Status, cacheHit bool, elapsed time.Duration) {
	if r.metrics == nil {
		return
	}
	r.metrics.RecordLookup(status.String(), cacheHit, elapsed.Seconds())
	r.metrics.SetCacheEntries(float64(r.cache.len()))
}
