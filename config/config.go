// Package config 提供统一的配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义，
// 支持从 JSON 文件加载。
//
// 使用示例：
//
//	cfg := config.NewConfig()
//	cfg.Storage.DataDir = "/var/lib/capmesh"
//	cfg.Cache.DefaultTTL = config.Duration(10 * time.Minute)
//
//	// 从文件加载（未出现的字段保留默认值）
//	cfg, err := config.LoadFile("capmesh.json")
package config

// Config 是 capmesh 的完整配置结构
//
// 按功能模块组织：
//   - Storage: 持久化目录（持久缓存层与进程指针表）
//   - Discovery: 本地注册表与 mDNS 宣告
//   - Cache: 两级缓存
//   - Proxy: 远程服务代理
//   - Exposure: 网络暴露服务
//   - Log: 日志
type Config struct {
	// Storage 存储配置
	Storage StorageConfig `json:"storage"`

	// Discovery 服务发现配置
	Discovery DiscoveryConfig `json:"discovery"`

	// Cache 缓存配置
	Cache CacheConfig `json:"cache"`

	// Proxy 远程代理配置
	Proxy ProxyConfig `json:"proxy"`

	// Exposure 网络暴露配置
	Exposure ExposureConfig `json:"exposure"`

	// Log 日志配置
	Log LogConfig `json:"log"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Storage:   DefaultStorageConfig(),
		Discovery: DefaultDiscoveryConfig(),
		Cache:     DefaultCacheConfig(),
		Proxy:     DefaultProxyConfig(),
		Exposure:  DefaultExposureConfig(),
		Log:       DefaultLogConfig(),
	}
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Discovery.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Proxy.Validate(); err != nil {
		return err
	}
	return c.Exposure.Validate()
}
