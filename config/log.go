package config

// LogConfig 日志配置
type LogConfig struct {
	// Level 级别设置，格式同 CAPMESH_LOG_LEVEL，例如 "cache=debug,info"
	// 为空时只使用环境变量
	Level string `json:"level,omitempty"`

	// FxEvents 是否输出依赖注入容器的生命周期事件
	FxEvents bool `json:"fx_events,omitempty"`
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{}
}
