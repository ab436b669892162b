package storage

import (
	"context"
	"errors"

	"go.uber.org/fx"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
	"github.com/dep2p/go-capmesh/internal/core/storage/engine/badger"
	"github.com/dep2p/go-capmesh/internal/core/storage/kv"
	"github.com/dep2p/go-capmesh/internal/util/logger"
)

var log = logger.Logger("storage")

// Params Storage 模块依赖参数
type Params struct {
	fx.In

	UnifiedCfg *config.Config `optional:"true"`
}

// Result Storage 模块提供的结果
type Result struct {
	fx.Out

	Engine engine.Engine
	Config Config
}

// Module 返回 Storage Fx 模块
//
// 提供:
//   - engine.Engine: 存储引擎（数据库无法打开时为不可用引擎）
//   - Config: 存储配置
//
// 生命周期:
//   - OnStart: 启动引擎 GC
//   - OnStop: 刷盘后关闭引擎
func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(ProvideStorage),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideStorage 提供存储引擎和配置
//
// 配置非法时返回错误；数据库打不开时只记录警告并提供不可用引擎，
// 依赖它的缓存持久层会降级为仅内存。
func ProvideStorage(p Params) (Result, error) {
	cfg := ConfigFromUnified(p.UnifiedCfg)
	if err := cfg.Validate(); err != nil {
		return Result{}, err
	}

	if !cfg.Enabled {
		log.Info("持久层已禁用")
		return Result{Engine: engine.Unavailable(ErrDisabled), Config: cfg}, nil
	}

	eng, err := NewEngine(cfg)
	if err != nil {
		log.Warn("存储引擎不可用，持久层降级", "path", cfg.Path, "error", err)
		return Result{Engine: engine.Unavailable(err), Config: cfg}, nil
	}
	return Result{Engine: eng, Config: cfg}, nil
}

func registerLifecycle(lc fx.Lifecycle, eng engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			return eng.Start()
		},
		OnStop: func(_ context.Context) error {
			if err := eng.Sync(); err != nil && !errors.Is(err, engine.ErrClosed) {
				log.Debug("存储引擎同步失败", "error", err)
			}
			if err := eng.Close(); err != nil {
				log.Warn("存储引擎关闭失败", "error", err)
				return err
			}
			log.Debug("存储引擎已关闭")
			return nil
		},
	})
}

// NewEngine 根据配置创建存储引擎
func NewEngine(cfg Config) (engine.Engine, error) {
	log.Debug("创建存储引擎", "path", cfg.Path)
	return badger.New(cfg.ToEngineConfig())
}

// New 使用默认配置在 path 创建持久化存储引擎
func New(path string) (engine.Engine, error) {
	return NewEngine(DefaultConfig().WithPath(path))
}

// NewKVStore 创建带前缀的 KVStore
func NewKVStore(eng engine.Engine, prefix []byte) *kv.Store {
	return kv.New(eng, prefix)
}

// KVStore 是 kv.Store 的类型别名
type KVStore = kv.Store
