package capmesh

import "errors"

// 公共错误定义
var (
	// ErrNotStarted 尚未启动
	ErrNotStarted = errors.New("capmesh: not started")

	// ErrAlreadyStarted 已启动
	ErrAlreadyStarted = errors.New("capmesh: already started")

	// ErrClosed 已关闭
	ErrClosed = errors.New("capmesh: closed")
)
