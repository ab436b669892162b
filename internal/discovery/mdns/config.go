package mdns

import (
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/dep2p/go-capmesh/config"
)

const (
	// DefaultServiceType mDNS 服务类型
	DefaultServiceType = "_capmesh._tcp"

	// DefaultDomain mDNS 域名
	DefaultDomain = "local."

	// DefaultQueryInterval 浏览间隔
	DefaultQueryInterval = 30 * time.Second

	// DefaultQueryTimeout 单次查询超时
	DefaultQueryTimeout = 2 * time.Second
)

// Config mDNS 宣告器配置
type Config struct {
	// Enabled 是否启用网络宣告与浏览
	Enabled bool

	// ServiceType 服务类型，如 "_capmesh._tcp"
	ServiceType string

	// Domain 域名，默认 "local."
	Domain string

	// QueryInterval 浏览间隔，0 表示只在启动时查询一次
	QueryInterval time.Duration

	// QueryTimeout 单次查询超时
	QueryTimeout time.Duration

	// MaxRetries 宣告最大尝试次数
	MaxRetries int

	// RetryBackoff 退避基数
	RetryBackoff time.Duration

	// EnableIPv6 是否使用 IPv6
	EnableIPv6 bool

	// Interface 指定网络接口（空表示所有接口）
	Interface string
}

// DefaultConfig 返回默认配置
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		ServiceType:   DefaultServiceType,
		Domain:        DefaultDomain,
		QueryInterval: DefaultQueryInterval,
		QueryTimeout:  DefaultQueryTimeout,
		MaxRetries:    3,
		RetryBackoff:  100 * time.Millisecond,
	}
}

// ConfigFromUnified 从统一配置创建 mDNS 配置
func ConfigFromUnified(cfg *config.Config) Config {
	if cfg == nil {
		return DefaultConfig()
	}
	m := cfg.Discovery.MDNS
	return Config{
		Enabled:       cfg.Discovery.EnableMDNS,
		ServiceType:   m.ServiceType,
		Domain:        m.Domain,
		QueryInterval: m.QueryInterval.Duration(),
		QueryTimeout:  m.QueryTimeout.Duration(),
		MaxRetries:    m.MaxRetries,
		RetryBackoff:  m.RetryBackoff.Duration(),
		EnableIPv6:    m.EnableIPv6,
	}
}

// Validate 验证配置
//
// 服务类型必须是 "_名称._tcp" 或 "_名称._udp" 形式，域名必须合法。
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("%w: max retries must be at least 1", ErrInvalidConfig)
	}
	if c.QueryInterval < 0 || c.QueryTimeout < 0 || c.RetryBackoff < 0 {
		return fmt.Errorf("%w: durations cannot be negative", ErrInvalidConfig)
	}
	labels := strings.Split(c.ServiceType, ".")
	if len(labels) != 2 || !strings.HasPrefix(labels[0], "_") || (labels[1] != "_tcp" && labels[1] != "_udp") {
		return fmt.Errorf("%w: service type %q", ErrInvalidConfig, c.ServiceType)
	}
	if _, ok := dns.IsDomainName(c.Domain); !ok || c.Domain == "" {
		return fmt.Errorf("%w: domain %q", ErrInvalidConfig, c.Domain)
	}
	return nil
}

// fqdnService 返回 "<service>.<domain>."
func (c *Config) fqdnService() string {
	return dns.Fqdn(c.ServiceType + "." + strings.Trim(c.Domain, "."))
}
