package locator

import (
	"errors"
	"time"

	"github.com/dep2p/go-capmesh/config"
)

// Config 定位器配置
type Config struct {
	// WrapCache 是否用缓存包装器包装 Resolve 返回的句柄
	WrapCache bool

	// BuildTimeout 单次本地构建的超时
	BuildTimeout time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		WrapCache:    true,
		BuildTimeout: 30 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建定位器配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg != nil {
		c.WrapCache = cfg.Cache.Enabled
	}
	return c
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.BuildTimeout < 0 {
		return errors.New("locator: build timeout cannot be negative")
	}
	return nil
}
