package local

import "errors"

var (
	// ErrInvalidName 服务名为空或包含空白
	ErrInvalidName = errors.New("local: invalid service name")

	// ErrPointersClosed 指针表已关闭
	ErrPointersClosed = errors.New("local: pointer table closed")
)
