package capability

import (
	"context"

	"go.uber.org/fx"
)

// Params 能力注册表依赖
type Params struct {
	fx.In

	Capabilities []Capability `group:"capabilities"`
}

// Module 返回能力注册表 Fx 模块
//
// 提供:
//   - *Registry: 汇集 "capabilities" 值组中的全部能力
//
// 生命周期:
//   - OnStart: 冻结注册表
func Module() fx.Option {
	return fx.Module("capability",
		fx.Provide(func(p Params) (*Registry, error) { return NewRegistry(p.Capabilities...) }),
		fx.Invoke(registerLifecycle),
	)
}

// Provide 把一个能力加入 "capabilities" 值组
func Provide(c Capability) fx.Option {
	return fx.Provide(fx.Annotate(
		func() Capability { return c },
		fx.ResultTags(`group:"capabilities"`),
	))
}

func registerLifecycle(lc fx.Lifecycle, r *Registry) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.Freeze()
			return nil
		},
	})
}
