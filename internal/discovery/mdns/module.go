package mdns

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/config"
)

// Params mDNS 模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回 mDNS Fx 模块
//
// 提供:
//   - *Announcer: 网络宣告器（配置禁用时 Announce 返回 ErrDisabled）
//
// 生命周期:
//   - OnStart: 启动浏览循环
//   - OnStop: 注销全部宣告
func Module() fx.Option {
	return fx.Module("discovery/mdns",
		fx.Provide(ProvideAnnouncer),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideAnnouncer 创建宣告器
func ProvideAnnouncer(p Params) (*Announcer, error) {
	return New(ConfigFromUnified(p.UnifiedCfg))
}

func registerLifecycle(lc fx.Lifecycle, a *Announcer) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return a.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			return a.Close()
		},
	})
}
