package mdns

import (
	"errors"
	"fmt"
)

// 预定义错误
var (
	// ErrClosed 宣告器已关闭
	ErrClosed = errors.New("mdns: announcer closed")

	// ErrDisabled 网络宣告已禁用
	ErrDisabled = errors.New("mdns: network announcement disabled")

	// ErrInvalidName 服务名无法构成合法的 DNS 实例名
	ErrInvalidName = errors.New("mdns: invalid service name")

	// ErrInvalidConfig 无效配置
	ErrInvalidConfig = errors.New("mdns: invalid config")

	// ErrNoPort 无法分配端口
	ErrNoPort = errors.New("mdns: no port available")
)

// AnnounceError 宣告在重试耗尽后仍失败
type AnnounceError struct {
	Name     string // 服务名
	Attempts int    // 尝试次数
	Err      error  // 最后一次错误
}

// Error 实现 error 接口
func (e *AnnounceError) Error() string {
	return fmt.Sprintf("mdns: announce %q failed after %d attempts: %v", e.Name, e.Attempts, e.Err)
}

// Unwrap 支持 errors.Unwrap
func (e *AnnounceError) Unwrap() error {
	return e.Err
}

// IsAnnounceError 检查是否为宣告失败
func IsAnnounceError(err error) bool {
	var ae *AnnounceError
	return errors.As(err, &ae)
}
