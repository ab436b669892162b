package config

import (
	"errors"
	"fmt"
	"time"
)

// CacheConfig 两级缓存配置
type CacheConfig struct {
	// Enabled 定位器返回的句柄是否经过缓存包装
	Enabled bool `json:"enabled"`

	// MaxRAMEntries 内存层最大条目数
	MaxRAMEntries int `json:"max_ram_entries"`

	// Eviction 内存层淘汰策略："lru" 或 "arc"
	Eviction string `json:"eviction,omitempty"`

	// DefaultTTL 默认过期时间
	DefaultTTL Duration `json:"default_ttl"`

	// SweepInterval 过期清理间隔，0 表示不做后台清理
	SweepInterval Duration `json:"sweep_interval,omitempty"`

	// Persistent 是否启用持久层
	Persistent bool `json:"persistent"`
}

// DefaultCacheConfig 返回默认缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:       true,
		MaxRAMEntries: 10000,
		Eviction:      "lru",
		DefaultTTL:    Duration(time.Hour),
		SweepInterval: Duration(10 * time.Minute),
		Persistent:    true,
	}
}

// Validate 验证缓存配置
func (c *CacheConfig) Validate() error {
	if c.MaxRAMEntries <= 0 {
		return errors.New("cache: max_ram_entries must be positive")
	}
	switch c.Eviction {
	case "", "lru", "arc":
	default:
		return fmt.Errorf("cache: unknown eviction %q", c.Eviction)
	}
	if c.DefaultTTL <= 0 {
		return errors.New("cache: default_ttl must be positive")
	}
	if c.SweepInterval < 0 {
		return errors.New("cache: sweep_interval cannot be negative")
	}
	return nil
}
