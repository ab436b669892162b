package expose

import "errors"

var (
	// ErrClosed 管理器已关闭
	ErrClosed = errors.New("expose: manager closed")

	// ErrAlreadyExposed 同名服务已暴露
	ErrAlreadyExposed = errors.New("expose: service already exposed")

	// ErrNotExposed 服务未暴露
	ErrNotExposed = errors.New("expose: service not exposed")

	// ErrNilInstance 实例为空
	ErrNilInstance = errors.New("expose: nil instance")

	// ErrMethodNotFound 方法不存在
	ErrMethodNotFound = errors.New("method not available")

	// ErrBadArguments 参数与方法签名不匹配
	ErrBadArguments = errors.New("bad arguments")
)
