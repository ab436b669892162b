package capmesh

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/cache"
	"github.com/dep2p/go-capmesh/internal/capability"
	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/internal/core/storage"
	"github.com/dep2p/go-capmesh/internal/discovery/hybrid"
	"github.com/dep2p/go-capmesh/internal/discovery/local"
	"github.com/dep2p/go-capmesh/internal/discovery/mdns"
	"github.com/dep2p/go-capmesh/internal/expose"
	"github.com/dep2p/go-capmesh/internal/locator"
	"github.com/dep2p/go-capmesh/internal/remote"
	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

var fxLogger = logger.Logger("capmesh/fx")

// 内置能力名
const (
	// DiscoveryCapability 本地发现注册表
	DiscoveryCapability = "discovery"

	// CacheCapability 缓存管理器
	CacheCapability = "cache"
)

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 基础: Storage → Metrics
//  2. 发现: Local → mDNS（可选） → Hybrid
//  3. 调用: Remote → Expose → Cache
//  4. 定位: Capability → Locator
func buildFxApp(cfg *config.Config, o *options, m *Mesh) *fx.App {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置注入与基础模块
	// ════════════════════════════════════════════════════════════════════════
	modules := []fx.Option{
		fx.Supply(cfg),
		storage.Module(),
		metrics.Module(),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 2. 发现层
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, local.Module())
	if cfg.Discovery.EnableMDNS {
		modules = append(modules, mdns.Module())
	}
	modules = append(modules, hybrid.Module())

	// ════════════════════════════════════════════════════════════════════════
	// 3. 调用层与缓存
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		remote.Module(),
		expose.Module(),
		cache.Module(),
	)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 能力与定位
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		capability.Module(),
		builtinCapabilities(),
		locator.Module(),
	)
	for _, c := range o.capabilities {
		modules = append(modules, capability.Provide(c))
	}

	// ════════════════════════════════════════════════════════════════════════
	// 5. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, o.userFxOptions...)

	// ════════════════════════════════════════════════════════════════════════
	// 6. Mesh 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Invoke(injectMeshComponents(m)))

	// ════════════════════════════════════════════════════════════════════════
	// 7. Fx 配置
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules,
		fx.StartTimeout(initializeTimeout),
		fx.StopTimeout(shutdownTimeout),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: fxZapLogger(cfg.Log.FxEvents)}
		}),
	)

	return fx.New(modules...)
}

// fxZapLogger 未开启容器事件日志时返回 Nop
func fxZapLogger(enabled bool) *zap.Logger {
	if !enabled {
		return zap.NewNop()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		fxLogger.Warn("无法创建容器事件日志", "error", err)
		return zap.NewNop()
	}
	return l
}

// ════════════════════════════════════════════════════════════════════════════
// 内置能力
// ════════════════════════════════════════════════════════════════════════════

// builtinCapabilities 把本地发现注册表与缓存管理器注册为能力
//
// 两者的结果随时变化，不经过缓存。
func builtinCapabilities() fx.Option {
	uncached := types.CachePolicies{
		types.VerbAsk:  {Enabled: false},
		types.VerbTell: {Enabled: false},
	}
	return fx.Provide(
		fx.Annotate(
			func(reg *local.Registry) capability.Capability {
				return capability.Capability{
					Name:          DiscoveryCapability,
					Description:   "ask() - List and find services announced in this process",
					Recipe:        func(context.Context) (interfaces.Service, error) { return reg, nil },
					CachePolicies: uncached,
				}
			},
			fx.ResultTags(`group:"capabilities"`),
		),
		fx.Annotate(
			func(mgr *cache.Manager) capability.Capability {
				return capability.Capability{
					Name:          CacheCapability,
					Description:   "ask() - Report cache statistics",
					Recipe:        func(context.Context) (interfaces.Service, error) { return mgr, nil },
					CachePolicies: uncached,
				}
			},
			fx.ResultTags(`group:"capabilities"`),
		),
	)
}

// ════════════════════════════════════════════════════════════════════════════
// 组件注入
// ════════════════════════════════════════════════════════════════════════════

// meshInjectParams Mesh 组件注入参数
type meshInjectParams struct {
	fx.In

	Locator *locator.Locator
	Local   *local.Registry
	Hybrid  *hybrid.Announcer
	Network *mdns.Announcer `optional:"true"`
	Exposer *expose.Manager
	Cache   *cache.Manager
	Proxies *remote.Factory
	Traffic *metrics.TrafficCounter `optional:"true"`
}

func injectMeshComponents(m *Mesh) func(meshInjectParams) {
	return func(p meshInjectParams) {
		m.locator = p.Locator
		m.local = p.Local
		m.hybrid = p.Hybrid
		m.network = p.Network
		m.exposer = p.Exposer
		m.cache = p.Cache
		m.proxies = p.Proxies
		m.traffic = p.Traffic
	}
}

// 生命周期超时
const (
	initializeTimeout = 30 * time.Second
	shutdownTimeout   = 30 * time.Second
)
