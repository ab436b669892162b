// Package logger 提供 capmesh 的统一日志系统
//
// 基于标准库 log/slog，支持：
//   - 按子系统配置日志级别
//   - 环境变量配置（CAPMESH_LOG_LEVEL, CAPMESH_LOG_FORMAT）
//   - 运行时调整级别
//
// 使用示例:
//
//	var log = logger.Logger("cache")
//
//	func foo() {
//	    log.Info("entry stored", "service", svc, "ttl", ttl)
//	    log.Debug("ram hit", "key", key)
//	}
//
// 环境变量配置:
//
//	# 所有子系统 info，locator 为 debug
//	CAPMESH_LOG_LEVEL=locator=debug,info
//
//	# JSON 输出
//	CAPMESH_LOG_FORMAT=json
package logger

import (
	"io"
	"log/slog"
	"sync"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// levels 各子系统的动态级别
	levels sync.Map // map[string]*slog.LevelVar

	globalLogger     *slog.Logger
	globalLoggerOnce sync.Once
)

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	cfg := ConfigFromEnv()
	lv := levelVar(subsystem, cfg.LevelForSubsystem(subsystem))

	l := slog.New(newHandler(subsystem, lv, cfg))
	actual, _ := loggers.LoadOrStore(subsystem, l)
	return actual.(*slog.Logger)
}

// GlobalLogger 返回不属于特定子系统的 Logger
func GlobalLogger() *slog.Logger {
	globalLoggerOnce.Do(func() {
		globalLogger = Logger("capmesh")
	})
	return globalLogger
}

func levelVar(subsystem string, initial slog.Level) *slog.LevelVar {
	lv := new(slog.LevelVar)
	lv.Set(initial)
	actual, _ := levels.LoadOrStore(subsystem, lv)
	return actual.(*slog.LevelVar)
}

// SetLevel 动态设置子系统的日志级别
//
// 子系统尚未创建 Logger 时，级别会在创建时生效。
func SetLevel(subsystem string, level slog.Level) {
	if lv, ok := levels.Load(subsystem); ok {
		lv.(*slog.LevelVar).Set(level)
		return
	}
	levelVar(subsystem, level)
}

// SetGlobalLevel 设置所有已知子系统的日志级别
func SetGlobalLevel(level slog.Level) {
	levels.Range(func(_, value any) bool {
		value.(*slog.LevelVar).Set(level)
		return true
	})
}

// ApplyLevels 按 "subsystem=level,...,default" 格式调整级别
//
// 与 CAPMESH_LOG_LEVEL 的格式相同，用于从配置文件覆盖环境变量。
func ApplyLevels(spec string) {
	subs := make(map[string]slog.Level)
	if def, ok := parseLevelConfig(subs, spec); ok {
		SetGlobalLevel(def)
	}
	for sub, lvl := range subs {
		SetLevel(sub, lvl)
	}
}

// Discard 返回丢弃所有日志的 Logger，用于测试
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// With 创建带有预设属性的 Logger
func With(subsystem string, args ...any) *slog.Logger {
	return Logger(subsystem).With(args...)
}

// SetOutput 设置全局日志输出目标
//
// 已创建的 Logger 同样会重定向到新的输出。
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}
