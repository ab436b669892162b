package local

import (
	"context"
	"os"

	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-capmesh/config"
)

// Params 本地发现模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Module 返回本地发现 Fx 模块
//
// 提供:
//   - *Registry: 进程内注册表（指针表可用时附带指针表）
//
// 生命周期:
//   - OnStop: 删除本进程写入的指针，关闭指针表
func Module() fx.Option {
	return fx.Module("discovery/local",
		fx.Provide(ProvideRegistry),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideRegistry 创建注册表
//
// 指针表打不开时只记录警告，注册表退化为纯进程内模式。
func ProvideRegistry(p Params) *Registry {
	cfg := p.UnifiedCfg
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if !cfg.Discovery.EnablePointers {
		return NewRegistry()
	}

	path := cfg.Storage.PointerDBPath()
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		log.Warn("无法创建数据目录，跨进程指针已禁用", "dir", cfg.Storage.DataDir, "error", err)
		return NewRegistry()
	}
	ptrs, err := OpenPointers(path)
	if err != nil {
		log.Warn("无法打开服务指针表，跨进程指针已禁用", "path", path, "error", err)
		return NewRegistry()
	}
	return NewRegistry(WithPointers(ptrs))
}

func registerLifecycle(lc fx.Lifecycle, r *Registry) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			err := r.Cleanup(ctx)
			if p := r.Pointers(); p != nil {
				err = multierr.Append(err, p.Close())
			}
			return err
		},
	})
}
