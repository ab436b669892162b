package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// FromJSON 从 JSON 数据创建配置
//
// 未出现的字段保留默认值。
//
// 示例 JSON:
//
//	{
//	  "storage": {"data_dir": "/var/lib/capmesh"},
//	  "cache": {"default_ttl": "10m", "max_ram_entries": 5000},
//	  "proxy": {"timeouts": {"generate_report": "2m"}}
//	}
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// LoadFile 从 JSON 文件加载并验证配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := FromJSON(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyPreset 应用预设配置
//
// 支持的预设：
//   - "local": 仅进程内，关闭 mDNS 与持久层
//   - "server": 长驻服务，开启指标并放宽代理超时
func ApplyPreset(cfg *Config, presetName string) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	switch presetName {
	case "local":
		cfg.Discovery.EnableMDNS = false
		cfg.Cache.Persistent = false
	case "server":
		cfg.Exposure.EnableMetrics = true
		cfg.Proxy.Timeout = cfg.Proxy.Timeout * 2
	default:
		return fmt.Errorf("unknown preset: %s", presetName)
	}
	return nil
}

// CloneConfig 克隆配置
func CloneConfig(cfg *Config) *Config {
	if cfg == nil {
		return nil
	}

	cloned := *cfg
	if cfg.Proxy.Timeouts != nil {
		cloned.Proxy.Timeouts = make(map[string]Duration, len(cfg.Proxy.Timeouts))
		for k, v := range cfg.Proxy.Timeouts {
			cloned.Proxy.Timeouts[k] = v
		}
	}
	return &cloned
}
