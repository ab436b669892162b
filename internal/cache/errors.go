package cache

import "errors"

var (
	// ErrMiss 持久层没有该键
	ErrMiss = errors.New("cache: miss")

	// ErrClosed 缓存已关闭
	ErrClosed = errors.New("cache: closed")
)
