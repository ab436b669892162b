package cache

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/core/storage"
	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
)

// Params 缓存模块依赖
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
	Engine     engine.Engine  `optional:"true"`
}

// Module 返回缓存 Fx 模块
//
// 提供:
//   - *Cache: 两级缓存（存储引擎不可用时仅内存）
//   - *Manager: 缓存包装器管理器
//
// 生命周期:
//   - OnStart: 启动过期清理
//   - OnStop: 停止过期清理
func Module() fx.Option {
	return fx.Module("cache",
		fx.Provide(
			ProvideCache,
			NewManager,
		),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideCache 按配置创建缓存
func ProvideCache(p Params) (*Cache, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)

	var opts []Option
	switch {
	case !cfg.Persistent:
		log.Info("持久缓存层已关闭")
	case p.Engine == nil:
		log.Info("没有存储引擎，缓存仅使用内存")
	default:
		if _, err := p.Engine.Has([]byte("cache/")); storage.IsUnavailable(err) {
			log.Warn("存储引擎不可用，缓存仅使用内存", "error", err)
		} else {
			opts = append(opts, WithBackend(NewEngineBackend(p.Engine)))
		}
	}
	return New(cfg, opts...)
}

func registerLifecycle(lc fx.Lifecycle, c *Cache) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return c.Start(ctx)
		},
		OnStop: func(context.Context) error {
			return c.Close()
		},
	})
}
