// Package event 提供日志事件模型与 Kafka 收发能力
package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// Record 半结构化日志事件：一个 JSON 对象的字段映射
//
// 富化过程只读写顶层字段，字段值保持 json.Unmarshal 的原生类型
// （string、float64、[]any、map[string]any 等）。
type Record map[string]any

// ParseRecord 从原始字节解析日志事件
func ParseRecord(data []byte) (Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeserializeFailed, err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrDeserializeFailed)
	}
	return rec, nil
}

// Get 读取顶层字段
func (r Record) Get(field string) (any, bool) {
	v, ok := r[field]
	return v, ok
}

// Set 写入顶层字段，覆盖已有值
func (r Record) Set(field string, v any) {
	r[field] = v
}

// Encode 序列化为 JSON 字节
func (r Record) Encode() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// Message 从 Kafka 消费到的一条日志事件及其位点信息
type Message struct {
	Record  Record
	Raw     []byte
	Headers *MessageHeaders

	// 内部字段，供消费者提交偏移量
	kafkaMsg  *kafka.Message
	partition int
	offset    int64
}

// SetKafkaMessage 设置原始 Kafka 消息（供消费者使用）
func (m *Message) SetKafkaMessage(msg *kafka.Message) {
	m.kafkaMsg = msg
	if msg != nil {
		m.partition = msg.Partition
		m.offset = msg.Offset
	}
}

// GetPartition 获取分区号
func (m *Message) GetPartition() int {
	return m.partition
}

// GetOffset 获取偏移量
func (m *Message) GetOffset() int64 {
	return m.offset
}

// MessageHeaders Kafka 消息头
type MessageHeaders struct {
	SchemaVersion string `json:"schema_version"`
	ContentType   string `json:"content_type"`
	TraceID       string `json:"trace_id,omitempty"`
	SourceStream  string `json:"source_stream,omitempty"`
}

// ParseHeaders 从 kafka.Header 切片解析 MessageHeaders
func ParseHeaders(headers []kafka.Header) *MessageHeaders {
	h := &MessageHeaders{}
	for _, header := range headers {
		switch header.Key {
		case "schema_version":
			h.SchemaVersion = string(header.Value)
		case "content_type":
			h.ContentType = string(header.Value)
		case "trace_id":
			h.TraceID = string(header.Value)
		case "source_stream":
			h.SourceStream = string(header.Value)
		}
	}
	return h
}

// ToKafkaHeaders 将 MessageHeaders 转换为 kafka.Header 切片
func (h *MessageHeaders) ToKafkaHeaders() []kafka.Header {
	headers := []kafka.Header{
		{Key: "schema_version", Value: []byte(h.SchemaVersion)},
		{Key: "content_type", Value: []byte(h.ContentType)},
	}
	if h.TraceID != "" {
		headers = append(headers, kafka.Header{Key: "trace_id", Value: []byte(h.TraceID)})
	}
	if h.SourceStream != "" {
		headers = append(headers, kafka.Header{Key: "source_stream", Value: []byte(h.SourceStream)})
	}
	return headers
}

// DefaultMessageHeaders 返回默认消息头，trace_id 随机生成
func DefaultMessageHeaders(stream string) *MessageHeaders {
	return &MessageHeaders{
		SchemaVersion: "v1",
		ContentType:   "application/json",
		TraceID:       uuid.NewString(),
		SourceStream:  stream,
	}
}
