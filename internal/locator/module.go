package locator

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/cache"
	"github.com/dep2p/go-capmesh/internal/capability"
	"github.com/dep2p/go-capmesh/internal/discovery/local"
	"github.com/dep2p/go-capmesh/internal/discovery/mdns"
	"github.com/dep2p/go-capmesh/internal/expose"
	"github.com/dep2p/go-capmesh/internal/remote"
)

// Params 定位器依赖
type Params struct {
	fx.In

	UnifiedCfg   *config.Config `optional:"true"`
	Capabilities *capability.Registry
	Local        *local.Registry
	Proxies      *remote.Factory
	Network      *mdns.Announcer `optional:"true"`
	Exposer      *expose.Manager `optional:"true"`
	Cache        *cache.Manager  `optional:"true"`
}

// Module 返回定位器 Fx 模块
//
// 提供:
//   - *Locator: 进程内唯一的定位器
//
// 生命周期:
//   - OnStop: 清空记忆表
func Module() fx.Option {
	return fx.Module("locator",
		fx.Provide(ProvideLocator),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideLocator 创建定位器
func ProvideLocator(p Params) (*Locator, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := []Option{WithProxies(p.Proxies)}
	if p.Network != nil {
		opts = append(opts, WithNetwork(p.Network))
	}
	if p.Exposer != nil {
		opts = append(opts, WithExposer(p.Exposer))
	}
	if p.Cache != nil {
		opts = append(opts, WithCache(p.Cache))
	}
	return New(cfg, p.Capabilities, p.Local, opts...), nil
}

func registerLifecycle(lc fx.Lifecycle, l *Locator) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			l.ClearCache()
			return nil
		},
	})
}
