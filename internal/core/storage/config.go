package storage

import (
	"time"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
)

// Config Storage 模块配置
//
// 测试代码应使用 t.TempDir() 作为 Path。
type Config struct {
	// Enabled 是否打开持久化数据库
	Enabled bool

	// Path BadgerDB 数据库目录
	Path string

	// SyncWrites 是否同步写入
	SyncWrites bool

	// GCInterval 值日志 GC 间隔
	GCInterval time.Duration
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		Path:       "./data/capmesh.db",
		GCInterval: 10 * time.Minute,
	}
}

// ConfigFromUnified 从统一配置创建 Storage 配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}

	c.Enabled = cfg.Cache.Persistent
	c.SyncWrites = cfg.Storage.SyncWrites
	if cfg.Storage.DataDir != "" {
		c.Path = cfg.Storage.DBPath()
	}
	return c
}

// ToEngineConfig 转换为引擎配置
func (c *Config) ToEngineConfig() *engine.Config {
	ec := engine.DefaultConfig(c.Path)
	ec.SyncWrites = c.SyncWrites
	ec.GCInterval = c.GCInterval
	return ec
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Enabled && c.Path == "" {
		return ErrInvalidConfig
	}
	if c.GCInterval != 0 && c.GCInterval < time.Minute {
		c.GCInterval = time.Minute
	}
	return nil
}

// WithPath 设置存储路径
func (c Config) WithPath(path string) Config {
	c.Path = path
	return c
}
