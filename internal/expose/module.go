package expose

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/internal/discovery/mdns"
)

// Params 暴露管理器依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config   `optional:"true"`
	Network    *mdns.Announcer  `optional:"true"`
	Reporter   metrics.Reporter `optional:"true"`
}

// Module 返回网络暴露 Fx 模块
//
// 提供:
//   - *Manager
func Module() fx.Option {
	return fx.Module("expose",
		fx.Provide(ProvideManager),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideManager 提供暴露管理器
func ProvideManager(p Params) *Manager {
	opts := []Option{WithReporter(p.Reporter)}
	if p.Network != nil {
		opts = append(opts, WithPublisher(p.Network))
	}
	return NewManager(ConfigFromUnified(p.UnifiedCfg), opts...)
}

func registerLifecycle(lc fx.Lifecycle, m *Manager) {
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return m.Close()
		},
	})
}
