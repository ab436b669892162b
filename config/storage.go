package config

import (
	"fmt"
	"path/filepath"
)

// StorageConfig 存储配置
//
// 持久缓存层使用 BadgerDB（单进程独占），服务指针表需要多进程共享，
// 单独存放在 SQLite 中：
//
//	${DataDir}/
//	├── capmesh.db/         # BadgerDB 缓存库
//	└── pointers.db         # SQLite 服务指针表
type StorageConfig struct {
	// DataDir 数据目录路径
	// 默认值: "./data"
	DataDir string `json:"data_dir"`

	// SyncWrites 每次写入同步落盘
	SyncWrites bool `json:"sync_writes,omitempty"`
}

// DefaultStorageConfig 返回默认的存储配置
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		DataDir: "./data",
	}
}

// Validate 验证存储配置的有效性
func (c *StorageConfig) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("storage: data_dir cannot be empty")
	}
	return nil
}

// DBPath 返回 BadgerDB 数据库路径
func (c *StorageConfig) DBPath() string {
	return filepath.Join(c.DataDir, "capmesh.db")
}

// PointerDBPath 返回服务指针表路径
func (c *StorageConfig) PointerDBPath() string {
	return filepath.Join(c.DataDir, "pointers.db")
}
