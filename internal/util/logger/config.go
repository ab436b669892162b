package logger

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定子系统的日志级别
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	return c.DefaultLevel
}

var (
	configCache *Config
	configOnce  sync.Once
)

// ConfigFromEnv 从环境变量解析配置（只解析一次）
//
// 环境变量:
//   - CAPMESH_LOG_LEVEL: 子系统=级别,...,默认级别，例如 cache=debug,mdns=warn,info
//   - CAPMESH_LOG_FORMAT: text 或 json
//   - CAPMESH_LOG_ADD_SOURCE: true 或 false
func ConfigFromEnv() *Config {
	configOnce.Do(func() {
		configCache = parseConfig(os.Getenv)
	})
	return configCache
}

func parseConfig(getenv func(string) string) *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	if s := getenv("CAPMESH_LOG_LEVEL"); s != "" {
		if def, ok := parseLevelConfig(cfg.SubsystemLevels, s); ok {
			cfg.DefaultLevel = def
		}
	}

	if strings.EqualFold(getenv("CAPMESH_LOG_FORMAT"), "json") {
		cfg.Format = FormatJSON
	}

	if s := getenv("CAPMESH_LOG_ADD_SOURCE"); s != "" {
		cfg.AddSource = s != "false" && s != "0"
	}

	return cfg
}

// parseLevelConfig 解析 subsystem=level,...,default 格式
//
// 子系统级别写入 subs；返回默认级别以及是否出现了默认级别。
func parseLevelConfig(subs map[string]slog.Level, spec string) (slog.Level, bool) {
	var (
		def    slog.Level
		hasDef bool
	)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if name, lvl, found := strings.Cut(part, "="); found {
			if level, ok := parseLevel(strings.TrimSpace(lvl)); ok {
				subs[strings.TrimSpace(name)] = level
			}
			continue
		}

		if level, ok := parseLevel(part); ok {
			def, hasDef = level, true
		}
	}
	return def, hasDef
}

func parseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResetConfig 重置配置缓存（仅用于测试）
func ResetConfig() {
	configOnce = sync.Once{}
	configCache = nil
}
