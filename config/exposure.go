package config

import (
	"errors"
	"time"
)

// ExposureConfig 网络暴露配置
type ExposureConfig struct {
	// Host 监听地址，默认所有网卡
	Host string `json:"host"`

	// AdvertiseHost 宣告给其他进程的主机名，为空时使用本机主机名
	AdvertiseHost string `json:"advertise_host,omitempty"`

	// ReadTimeout HTTP 读超时
	ReadTimeout Duration `json:"read_timeout"`

	// WriteTimeout HTTP 写超时
	WriteTimeout Duration `json:"write_timeout"`

	// EnableMetrics 是否在每个暴露的服务上挂载 /metrics
	EnableMetrics bool `json:"enable_metrics,omitempty"`
}

// DefaultExposureConfig 返回默认暴露配置
func DefaultExposureConfig() ExposureConfig {
	return ExposureConfig{
		Host:         "0.0.0.0",
		ReadTimeout:  Duration(10 * time.Second),
		WriteTimeout: Duration(60 * time.Second),
	}
}

// Validate 验证暴露配置
func (c *ExposureConfig) Validate() error {
	if c.ReadTimeout <= 0 || c.WriteTimeout <= 0 {
		return errors.New("exposure: timeouts must be positive")
	}
	return nil
}
