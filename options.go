package capmesh

import (
	"fmt"

	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/capability"
)

// Option 配置选项函数
type Option func(*options) error

// options 内部选项结构
type options struct {
	// config 统一配置，未设置时使用 config.NewConfig()
	config *config.Config

	// 在 config 之上逐项覆盖
	preset     string
	dataDir    string
	mdns       *bool
	persistent *bool
	fxEvents   *bool

	capabilities []capability.Capability

	// 用户自定义 Fx 选项
	userFxOptions []fx.Option
}

func newOptions() *options {
	return &options{}
}

// toConfig 合并选项，返回验证后的配置
func (o *options) toConfig() (*config.Config, error) {
	cfg := config.CloneConfig(o.config)
	if cfg == nil {
		cfg = config.NewConfig()
	}

	if o.preset != "" {
		if err := config.ApplyPreset(cfg, o.preset); err != nil {
			return nil, err
		}
	}
	if o.dataDir != "" {
		cfg.Storage.DataDir = o.dataDir
	}
	if o.mdns != nil {
		cfg.Discovery.EnableMDNS = *o.mdns
	}
	if o.persistent != nil {
		cfg.Cache.Persistent = *o.persistent
	}
	if o.fxEvents != nil {
		cfg.Log.FxEvents = *o.fxEvents
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              配置来源
// ════════════════════════════════════════════════════════════════════════════

// WithConfig 使用给定的统一配置（会被复制）
func WithConfig(cfg *config.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return fmt.Errorf("config is nil")
		}
		o.config = cfg
		return nil
	}
}

// WithConfigFile 从 JSON 文件加载统一配置
func WithConfigFile(path string) Option {
	return func(o *options) error {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		o.config = cfg
		return nil
	}
}

// WithPreset 应用预设（"local" 或 "server"）
func WithPreset(name string) Option {
	return func(o *options) error {
		o.preset = name
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              单项覆盖
// ════════════════════════════════════════════════════════════════════════════

// WithDataDir 设置数据目录（持久缓存层与服务指针表）
func WithDataDir(dir string) Option {
	return func(o *options) error {
		if dir == "" {
			return fmt.Errorf("data dir is empty")
		}
		o.dataDir = dir
		return nil
	}
}

// WithMDNS 启用或禁用 mDNS 网络宣告与浏览
func WithMDNS(enable bool) Option {
	return func(o *options) error {
		o.mdns = &enable
		return nil
	}
}

// WithPersistentCache 启用或禁用持久缓存层
func WithPersistentCache(enable bool) Option {
	return func(o *options) error {
		o.persistent = &enable
		return nil
	}
}

// WithFxEvents 输出依赖注入容器的生命周期事件
func WithFxEvents(enable bool) Option {
	return func(o *options) error {
		o.fxEvents = &enable
		return nil
	}
}

// ════════════════════════════════════════════════════════════════════════════
//                              能力与扩展
// ════════════════════════════════════════════════════════════════════════════

// WithCapability 注册一个能力
func WithCapability(c Capability) Option {
	return func(o *options) error {
		if c.Recipe == nil {
			return fmt.Errorf("capability %q: missing recipe", c.Name)
		}
		o.capabilities = append(o.capabilities, c)
		return nil
	}
}

// WithCapabilities 注册多个能力
func WithCapabilities(caps ...Capability) Option {
	return func(o *options) error {
		for _, c := range caps {
			if err := WithCapability(c)(o); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithFxOption 追加自定义 Fx 选项
//
// 可用于向 "capabilities" 值组提供依赖其他组件的能力，或替换内部组件。
func WithFxOption(opts ...fx.Option) Option {
	return func(o *options) error {
		o.userFxOptions = append(o.userFxOptions, opts...)
		return nil
	}
}
