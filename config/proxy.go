package config

import (
	"errors"
	"time"
)

// ProxyConfig 远程服务代理配置
type ProxyConfig struct {
	// Timeout ask/tell/do 调用超时
	Timeout Duration `json:"timeout"`

	// InfoTimeout 元数据查询（GET /）超时
	InfoTimeout Duration `json:"info_timeout"`

	// Timeouts 按方法覆盖的超时，用于已知的慢操作
	Timeouts map[string]Duration `json:"timeouts,omitempty"`
}

// DefaultProxyConfig 返回默认代理配置
func DefaultProxyConfig() ProxyConfig {
	return ProxyConfig{
		Timeout:     Duration(30 * time.Second),
		InfoTimeout: Duration(5 * time.Second),
	}
}

// Validate 验证代理配置
func (c *ProxyConfig) Validate() error {
	if c.Timeout <= 0 || c.InfoTimeout <= 0 {
		return errors.New("proxy: timeouts must be positive")
	}
	for method, d := range c.Timeouts {
		if d <= 0 {
			return errors.New("proxy: timeout for " + method + " must be positive")
		}
	}
	return nil
}
