package hybrid

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/internal/discovery/local"
	"github.com/dep2p/go-capmesh/internal/discovery/mdns"
)

// Params 混合宣告器依赖
type Params struct {
	fx.In

	Local   *local.Registry
	Network *mdns.Announcer `optional:"true"`
}

// Module 返回混合宣告 Fx 模块
//
// 依赖 local.Module() 与（可选的）mdns.Module()。
func Module() fx.Option {
	return fx.Module("discovery/hybrid",
		fx.Provide(func(p Params) *Announcer { return New(p.Local, p.Network) }),
	)
}
