// Package pipeline provides error handling for the log enrichment pipeline.
package pipeline

import (
	"errors"
	"fmt"
	"net"
)

// PipelineError 管线错误
type PipelineError struct {
	Stage     string // consume, decode, enrich, write
	Err       error
	Retryable bool
}

// Error 实现 error 接口
func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at %s: %v", e.Stage, e.Err)
}

// Unwrap 返回原始错误
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// NewPipelineError 创建新的管线错误
func NewPipelineError(stage string, err error, retryable bool) *PipelineError {
	return &PipelineError{
		Stage:     stage,
		Err:       err,
		Retryable: retryable,
	}
}

// Error stages
const (
	StageConsume = "consume"
	StageDecode  = "decode"
	StageEnrich  = "enrich"
	StageWrite   = "write"
	StageBatch   = "batch"
)

// Predefined errors
var (
	ErrInvalidRecord  = errors.New("invalid record data")
	ErrWriteFailed    = errors.New("write failed")
	ErrPipelineClosed = errors.New("pipeline is closed")
)

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	// 检查是否是 PipelineError
	var pErr *PipelineError
	if errors.As(err, &pErr) {
		return pErr.Retryable
	}

	// 网络超时错误可重试
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	if errors.Is(err, net.ErrClosed) {
		return false
	}

	// 默认假设不可重试
	return false
}

// WrapDecodeError 包装解码错误，格式错误不可重试
func WrapDecodeError(err error) *PipelineError {
	return &PipelineError{
		Stage:     StageDecode,
		Err:       err,
		Retryable: false,
	}
}

// WrapEnrichError 包装富化错误
func WrapEnrichError(err error) *PipelineError {
	return &PipelineError{
		Stage:     StageEnrich,
		Err:       err,
		Retryable: IsRetryable(err),
	}
}

// WrapWriteError 包装写入错误
func WrapWriteError(err error) *PipelineError {
	return &PipelineError{
		Stage:     StageWrite,
		Err:       err,
		Retryable: IsRetryable(err),
	}
}
