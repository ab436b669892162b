package remote

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/core/metrics"
)

// Params 代理工厂依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config   `optional:"true"`
	Reporter   metrics.Reporter `optional:"true"`
}

// Module 返回远程代理 Fx 模块
//
// 提供:
//   - *Factory
func Module() fx.Option {
	return fx.Module("remote",
		fx.Provide(func(p Params) *Factory {
			return NewFactory(ConfigFromUnified(p.UnifiedCfg), p.Reporter)
		}),
	)
}
