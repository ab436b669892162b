package main

import (
	"os"
	"strings"

	"github.com/dep2p/go-capmesh/config"
)

// ============================================================================
//                              环境变量（CLI 专用）
// ============================================================================

const (
	envPrefix     = "CAPMESH_"
	envPreset     = "PRESET"
	envDataDir    = "DATA_DIR"
	envEnableMDNS = "ENABLE_MDNS"
	envPersistent = "PERSISTENT_CACHE"
	envExposeHost = "EXPOSE_HOST"
)

// applyEnvOverrides 应用环境变量覆盖配置，返回环境变量指定的预设
//
// 支持的环境变量：
//   - CAPMESH_PRESET: 预设名称
//   - CAPMESH_DATA_DIR: 数据目录
//   - CAPMESH_ENABLE_MDNS: 启用 mDNS
//   - CAPMESH_PERSISTENT_CACHE: 启用持久缓存
//   - CAPMESH_EXPOSE_HOST: 暴露服务监听地址
//
// 日志级别由 CAPMESH_LOG_LEVEL 直接控制，不经过这里。
func applyEnvOverrides(cfg *config.Config) string {
	if v := os.Getenv(envPrefix + envDataDir); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv(envPrefix + envEnableMDNS); v != "" {
		cfg.Discovery.EnableMDNS = parseBool(v)
	}
	if v := os.Getenv(envPrefix + envPersistent); v != "" {
		cfg.Cache.Persistent = parseBool(v)
	}
	if v := os.Getenv(envPrefix + envExposeHost); v != "" {
		cfg.Exposure.Host = v
	}
	return os.Getenv(envPrefix + envPreset)
}

// parseBool 解析布尔值字符串
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
