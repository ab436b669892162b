package engine

import (
	"os"
	"path/filepath"
	"time"
)

// Config 引擎配置
type Config struct {
	// Path 数据库目录
	Path string

	// SyncWrites 每次写入同步落盘
	SyncWrites bool

	// ReadOnly 只读打开
	ReadOnly bool

	// MemTableSize 内存表大小
	MemTableSize int64

	// ValueLogFileSize 值日志文件大小
	ValueLogFileSize int64

	// BlockCacheSize 块缓存大小
	BlockCacheSize int64

	// GCInterval 值日志 GC 间隔，0 表示不启动 GC
	GCInterval time.Duration

	// GCDiscardRatio 值日志 GC 丢弃比例
	GCDiscardRatio float64
}

// DefaultConfig 返回默认配置
//
// 缓存条目与指针表都是小值，内存参数比 BadgerDB 默认值保守。
func DefaultConfig(path string) *Config {
	return &Config{
		Path:             path,
		MemTableSize:     16 << 20,  // 16MB
		ValueLogFileSize: 128 << 20, // 128MB
		BlockCacheSize:   32 << 20,  // 32MB
		GCInterval:       10 * time.Minute,
		GCDiscardRatio:   0.5,
	}
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.Path == "" {
		return ErrInvalidConfig
	}
	if c.MemTableSize < 1<<20 || c.ValueLogFileSize < 1<<20 {
		return ErrInvalidConfig
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio > 1 {
		return ErrInvalidConfig
	}
	return nil
}

// EnsureDir 规范化路径并创建目录
func (c *Config) EnsureDir() error {
	abs, err := filepath.Abs(c.Path)
	if err != nil {
		return err
	}
	c.Path = abs
	return os.MkdirAll(c.Path, 0o755)
}
