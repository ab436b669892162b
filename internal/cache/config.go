package cache

import (
	"errors"
	"fmt"
	"time"

	"github.com/dep2p/go-capmesh/config"
)

// Config 缓存配置
type Config struct {
	// Enabled 定位器是否用缓存包装解析出的句柄
	Enabled bool

	// MaxRAMEntries 内存层最大条目数
	MaxRAMEntries int

	// Eviction 内存层淘汰策略：lru（默认）或 arc
	Eviction string

	// DefaultTTL 未指定 TTL 时使用的过期时间
	DefaultTTL time.Duration

	// SweepInterval 后台清理过期条目的间隔，0 表示不清理
	SweepInterval time.Duration

	// Persistent 是否使用持久层
	Persistent bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		MaxRAMEntries: 10000,
		Eviction:      EvictionLRU,
		DefaultTTL:    time.Hour,
		SweepInterval: 10 * time.Minute,
		Persistent:    true,
	}
}

// ConfigFromUnified 从统一配置创建缓存配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	return Config{
		Enabled:       cfg.Cache.Enabled,
		MaxRAMEntries: cfg.Cache.MaxRAMEntries,
		Eviction:      cfg.Cache.Eviction,
		DefaultTTL:    cfg.Cache.DefaultTTL.Duration(),
		SweepInterval: cfg.Cache.SweepInterval.Duration(),
		Persistent:    cfg.Cache.Persistent,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.MaxRAMEntries <= 0 {
		return errors.New("cache: max ram entries must be positive")
	}
	switch c.Eviction {
	case "", EvictionLRU, EvictionARC:
	default:
		return fmt.Errorf("cache: unknown eviction policy %q", c.Eviction)
	}
	if c.DefaultTTL <= 0 {
		return errors.New("cache: default ttl must be positive")
	}
	if c.SweepInterval < 0 {
		return errors.New("cache: sweep interval cannot be negative")
	}
	return nil
}
