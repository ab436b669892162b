package remote

import (
	"time"

	"github.com/dep2p/go-capmesh/config"
)

// Config 代理配置
type Config struct {
	// Timeout ask/tell/do 调用超时
	Timeout time.Duration

	// InfoTimeout GET / 超时
	InfoTimeout time.Duration

	// Timeouts 按方法覆盖的超时
	Timeouts map[string]time.Duration

	// MaxResponseBytes 响应体上限
	MaxResponseBytes int64
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Timeout:          30 * time.Second,
		InfoTimeout:      5 * time.Second,
		MaxResponseBytes: 32 << 20,
	}
}

// ConfigFromUnified 从统一配置创建代理配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	c.Timeout = cfg.Proxy.Timeout.Duration()
	c.InfoTimeout = cfg.Proxy.InfoTimeout.Duration()
	if len(cfg.Proxy.Timeouts) > 0 {
		c.Timeouts = make(map[string]time.Duration, len(cfg.Proxy.Timeouts))
		for m, d := range cfg.Proxy.Timeouts {
			c.Timeouts[m] = d.Duration()
		}
	}
	return c
}

// timeoutFor 返回方法的超时
func (c Config) timeoutFor(method string) time.Duration {
	if d, ok := c.Timeouts[method]; ok && d > 0 {
		return d
	}
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultConfig().Timeout
}
