package writer

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// BulkHTTPConfig Elasticsearch 兼容批量写入配置
type BulkHTTPConfig struct {
	// Addresses 节点地址列表
	Addresses []string `yaml:"addresses"`
	// Username 用户名
	Username string `yaml:"username"`
	// Password 密码
	Password string `yaml:"password"`
	// Index 索引名称模板
	Index string `yaml:"index"`
	// IndexRotation 索引轮转策略: daily, weekly, monthly
	IndexRotation string `yaml:"index_rotation"`
	// BatchSize 批量写入大小
	BatchSize int `yaml:"batch_size"`
	// FlushInterval 刷新间隔
	FlushInterval time.Duration `yaml:"flush_interval"`
	// TLS配置
	TLSEnabled  bool `yaml:"tls_enabled"`
	TLSInsecure bool `yaml:"tls_insecure"`
	// 重试配置
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
	// 超时配置
	Timeout time.Duration `yaml:"timeout"`
}

// BulkHTTPWriter 通过 _bulk API 写入 Elasticsearch 兼容存储
type BulkHTTPWriter struct {
	config    *BulkHTTPConfig
	client    *http.Client
	transport *http.Transport
	logger    *zap.Logger
	buffer    [][]byte
	mu        sync.Mutex
	closed    bool
	ticker    *time.Ticker
	stopCh    chan struct{}
	indexFunc func() string
	addrIdx   atomic.Uint32
}

// NewBulkHTTPWriter 创建批量HTTP写入器
func NewBulkHTTPWriter(cfg *BulkHTTPConfig, logger *zap.Logger) (*BulkHTTPWriter, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bulk http config is nil")
	}
	if len(cfg.Addresses) == 0 {
		return nil, fmt.Errorf("bulk http addresses is empty")
	}
	if cfg.Index == "" {
		return nil, fmt.Errorf("bulk http index is empty")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// 设置默认值
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	transport := &http.Transport{
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.TLSInsecure,
		},
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
	}

	writer := &BulkHTTPWriter{
		config:    cfg,
		client:    client,
		transport: transport,
		logger:    logger,
		buffer:    make([][]byte, 0, cfg.BatchSize),
		stopCh:    make(chan struct{}),
		indexFunc: createIndexFunc(cfg.Index, cfg.IndexRotation),
	}

	// 启动定时刷新
	writer.ticker = time.NewTicker(cfg.FlushInterval)
	go writer.flushLoop()

	return writer, nil
}

// createIndexFunc 创建索引名称生成函数
func createIndexFunc(baseIndex, rotation string) func() string {
	switch rotation {
	case "daily":
		return func() string {
			return fmt.Sprintf("%s-%s", baseIndex, time.Now().UTC().Format("2006.01.02"))
		}
	case "weekly":
		return func() string {
			year, week := time.Now().UTC().ISOWeek()
			return fmt.Sprintf("%s-%d.%02d", baseIndex, year, week)
		}
	case "monthly":
		return func() string {
			return fmt.Sprintf("%s-%s", baseIndex, time.Now().UTC().Format("2006.01"))
		}
	default:
		return func() string {
			return baseIndex
		}
	}
}

// flushLoop 定时刷新循环
func (w *BulkHTTPWriter) flushLoop() {
	for {
		select {
		case <-w.ticker.C:
			if err := w.Flush(context.Background()); err != nil {
				w.logger.Error("bulk flush failed", zap.Error(err))
			}
		case <-w.stopCh:
			return
		}
	}
}

// Write 写入单条记录（缓冲，满批时触发写出）
func (w *BulkHTTPWriter) Write(ctx context.Context, record []byte) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("bulk http writer is closed")
	}

	w.buffer = append(w.buffer, record)

	if len(w.buffer) >= w.config.BatchSize {
		records := make([][]byte, len(w.buffer))
		copy(records, w.buffer)
		w.buffer = w.buffer[:0]
		w.mu.Unlock()
		return w.writeBulk(ctx, records)
	}

	w.mu.Unlock()
	return nil
}

// WriteBatch 批量写入记录
func (w *BulkHTTPWriter) WriteBatch(ctx context.Context, records [][]byte) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("bulk http writer is closed")
	}
	w.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	return w.writeBulk(ctx, records)
}

// writeBulk 执行批量写入
func (w *BulkHTTPWriter) writeBulk(ctx context.Context, records [][]byte) error {
	if len(records) == 0 {
		return nil
	}

	index := w.indexFunc()

	// 构建 Bulk API 请求体
	var buf bytes.Buffer
	for _, record := range records {
		meta := map[string]interface{}{
			"index": map[string]interface{}{
				"_index": index,
			},
		}
		metaBytes, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal bulk meta: %w", err)
		}
		buf.Write(metaBytes)
		buf.WriteByte('\n')
		buf.Write(record)
		buf.WriteByte('\n')
	}

	var lastErr error
	for i := 0; i <= w.config.MaxRetries; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.RetryBackoff * time.Duration(i)):
			}
		}

		err := w.doBulkRequest(ctx, buf.Bytes())
		if err == nil {
			return nil
		}
		lastErr = err
		w.logger.Warn("bulk request failed, retrying",
			zap.Error(err),
			zap.Int("attempt", i+1),
		)
	}

	return fmt.Errorf("bulk write failed after %d retries: %w", w.config.MaxRetries, lastErr)
}

// doBulkRequest 执行单次Bulk请求
func (w *BulkHTTPWriter) doBulkRequest(ctx context.Context, body []byte) error {
	// 轮询选择地址
	idx := int(w.addrIdx.Add(1)) % len(w.config.Addresses)
	url := fmt.Sprintf("%s/_bulk", w.config.Addresses[idx])

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-ndjson")

	if w.config.Username != "" && w.config.Password != "" {
		req.SetBasicAuth(w.config.Username, w.config.Password)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return fmt.Errorf("bulk endpoint error: status=%d body=%s", resp.StatusCode, string(respBody))
	}

	// 逐项检查部分失败
	var bulkResp BulkResponse
	if err := json.Unmarshal(respBody, &bulkResp); err != nil {
		return fmt.Errorf("parse bulk response: %w", err)
	}

	if bulkResp.Errors {
		var errs []string
		for _, item := range bulkResp.Items {
			if item.Index.Error != nil {
				errs = append(errs, fmt.Sprintf("type=%s reason=%s", item.Index.Error.Type, item.Index.Error.Reason))
			}
		}
		if len(errs) > 0 {
			return fmt.Errorf("bulk response has errors: %v", errs)
		}
	}

	return nil
}

// BulkResponse Bulk API响应
type BulkResponse struct {
	Took   int        `json:"took"`
	Errors bool       `json:"errors"`
	Items  []BulkItem `json:"items"`
}

// BulkItem Bulk操作结果项
type BulkItem struct {
	Index BulkItemResult `json:"index"`
}

// BulkItemResult Bulk操作单项结果
type BulkItemResult struct {
	Index   string     `json:"_index"`
	ID      string     `json:"_id"`
	Version int        `json:"_version"`
	Result  string     `json:"result"`
	Status  int        `json:"status"`
	Error   *BulkError `json:"error,omitempty"`
}

// BulkError Bulk操作错误
type BulkError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// Flush 刷新缓冲区
func (w *BulkHTTPWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}

	if len(w.buffer) == 0 {
		w.mu.Unlock()
		return nil
	}

	records := make([][]byte, len(w.buffer))
	copy(records, w.buffer)
	w.buffer = w.buffer[:0]
	w.mu.Unlock()

	return w.writeBulk(ctx, records)
}

// Close 关闭写入器
func (w *BulkHTTPWriter) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true

	if w.ticker != nil {
		w.ticker.Stop()
		close(w.stopCh)
	}

	// 带走剩余缓冲，在锁外写出
	remaining := w.buffer
	w.buffer = nil
	w.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.writeBulk(ctx, remaining); err != nil {
		return fmt.Errorf("flush on close: %w", err)
	}

	w.transport.CloseIdleConnections()
	return nil
}

// BufferSize 返回当前缓冲区大小
func (w *BulkHTTPWriter) BufferSize() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.buffer)
}

// CurrentIndex 返回当前索引名称
func (w *BulkHTTPWriter) CurrentIndex() string {
	return w.indexFunc()
}
