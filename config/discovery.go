package config

import (
	"errors"
	"time"
)

// DiscoveryConfig 服务发现配置
type DiscoveryConfig struct {
	// EnableMDNS 是否启用 mDNS 网络宣告与浏览
	EnableMDNS bool `json:"enable_mdns"`

	// EnablePointers 是否启用跨进程服务指针表
	EnablePointers bool `json:"enable_pointers"`

	// MDNS mDNS 配置
	MDNS MDNSConfig `json:"mdns,omitempty"`
}

// MDNSConfig mDNS 配置
type MDNSConfig struct {
	// ServiceType 服务类型，如 "_capmesh._tcp"
	ServiceType string `json:"service_type,omitempty"`

	// Domain 域名，默认 "local."
	Domain string `json:"domain,omitempty"`

	// QueryInterval 浏览间隔
	QueryInterval Duration `json:"query_interval,omitempty"`

	// QueryTimeout 单次查询超时
	QueryTimeout Duration `json:"query_timeout,omitempty"`

	// MaxRetries 宣告最大尝试次数
	MaxRetries int `json:"max_retries,omitempty"`

	// RetryBackoff 宣告重试退避基数，第 n 次重试等待 RetryBackoff*n
	RetryBackoff Duration `json:"retry_backoff,omitempty"`

	// EnableIPv6 是否支持 IPv6
	EnableIPv6 bool `json:"enable_ipv6,omitempty"`
}

// DefaultDiscoveryConfig 返回默认发现配置
func DefaultDiscoveryConfig() DiscoveryConfig {
	return DiscoveryConfig{
		EnableMDNS:     true,
		EnablePointers: true,
		MDNS: MDNSConfig{
			ServiceType:   "_capmesh._tcp",
			Domain:        "local.",
			QueryInterval: Duration(30 * time.Second),
			QueryTimeout:  Duration(2 * time.Second),
			MaxRetries:    3,
			RetryBackoff:  Duration(100 * time.Millisecond),
		},
	}
}

// Validate 验证发现配置
func (c *DiscoveryConfig) Validate() error {
	if !c.EnableMDNS {
		return nil
	}
	if c.MDNS.ServiceType == "" {
		return errors.New("discovery: mdns service_type cannot be empty")
	}
	if c.MDNS.MaxRetries < 1 {
		return errors.New("discovery: mdns max_retries must be at least 1")
	}
	if c.MDNS.QueryTimeout < 0 || c.MDNS.QueryInterval < 0 {
		return errors.New("discovery: mdns durations cannot be negative")
	}
	return nil
}
