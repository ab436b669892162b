package expose

import (
	"errors"
	"time"

	"github.com/dep2p/go-capmesh/config"
)

// Config 网络暴露配置
type Config struct {
	// Host 监听地址
	Host string

	// AdvertiseHost 写入示例文本的主机名
	AdvertiseHost string

	// ReadTimeout HTTP 读超时
	ReadTimeout time.Duration

	// WriteTimeout HTTP 写超时
	WriteTimeout time.Duration

	// ShutdownTimeout 停止服务时等待请求完成的时间
	ShutdownTimeout time.Duration

	// EnableMetrics 是否挂载 /metrics
	EnableMetrics bool
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Host:            "0.0.0.0",
		AdvertiseHost:   "localhost",
		ReadTimeout:     10 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 5 * time.Second,
	}
}

// ConfigFromUnified 从统一配置创建暴露配置
func ConfigFromUnified(cfg *config.Config) Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if cfg.Exposure.Host != "" {
		c.Host = cfg.Exposure.Host
	}
	if cfg.Exposure.AdvertiseHost != "" {
		c.AdvertiseHost = cfg.Exposure.AdvertiseHost
	}
	if d := cfg.Exposure.ReadTimeout.Duration(); d > 0 {
		c.ReadTimeout = d
	}
	if d := cfg.Exposure.WriteTimeout.Duration(); d > 0 {
		c.WriteTimeout = d
	}
	c.EnableMetrics = cfg.Exposure.EnableMetrics
	return c
}

// Validate 验证配置
func (c *Config) Validate() error {
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("expose: timeouts must be positive")
	}
	return nil
}
