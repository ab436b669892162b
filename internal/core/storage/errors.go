package storage

import (
	"errors"

	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
)

// 重导出 engine 包的错误
var (
	// ErrNotFound 键不存在
	ErrNotFound = engine.ErrNotFound

	// ErrClosed 引擎已关闭
	ErrClosed = engine.ErrClosed

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = engine.ErrInvalidConfig

	// ErrUnavailable 引擎不可用
	ErrUnavailable = engine.ErrUnavailable

	// ErrDisabled 持久层被配置关闭
	ErrDisabled = errors.New("storage: persistence disabled")
)

// 重导出错误检查函数
var (
	IsNotFound    = engine.IsNotFound
	IsClosed      = engine.IsClosed
	IsUnavailable = engine.IsUnavailable
)
