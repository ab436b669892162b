package capmesh

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/fx"
	"golang.org/x/sync/errgroup"

	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/cache"
	"github.com/dep2p/go-capmesh/internal/core/metrics"
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

var log = logger.Logger("capmesh")

// healthConcurrency 健康检查的并发上限
const healthConcurrency = 8

// Mesh 进程内的定位、发现、暴露与缓存入口
//
// 所有注册表都由 Mesh 持有的 Fx 容器创建，进程内通常只有一个 Mesh。
type Mesh struct {
	config *config.Config
	app    *fx.App

	// 由 Fx 注入
	locator *locator.Locator
	local   *local.Registry
	hybrid  *hybrid.Announcer
	network *mdns.Announcer
	exposer *expose.Manager
	cache   *cache.Manager
	proxies *remote.Factory
	traffic *metrics.TrafficCounter

	mu      sync.Mutex
	started bool
	closed  bool
}

// ════════════════════════════════════════════════════════════════════════════
//                              构造与生命周期
// ════════════════════════════════════════════════════════════════════════════

// New 创建 Mesh，需要调用 Start 启动
func New(opts ...Option) (*Mesh, error) {
	o := newOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}
	cfg, err := o.toConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Log.Level != "" {
		logger.ApplyLevels(cfg.Log.Level)
	}

	m := &Mesh{config: cfg}
	m.app = buildFxApp(cfg, o, m)
	if err := m.app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return m, nil
}

// Start 快捷启动函数，等价于 New + Start
func Start(ctx context.Context, opts ...Option) (*Mesh, error) {
	m, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := m.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mesh: %w", err)
	}
	return m, nil
}

// Start 启动全部组件
//
// 启动后能力注册表被冻结。
func (m *Mesh) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.started {
		return ErrAlreadyStarted
	}

	if err := m.app.Start(ctx); err != nil {
		log.Error("启动失败", "error", err)
		return fmt.Errorf("initialize failed: %w", err)
	}
	m.started = true
	log.Info("capmesh 已启动",
		"capabilities", len(m.locator.Capabilities().Names()),
		"mdns", m.network != nil,
		"persistent_cache", m.cache.Cache().Persistent())
	return nil
}

// Close 停止全部组件并释放资源，不可重新启动
//
// 停止顺序与启动相反：暴露的服务先下线，最后关闭存储引擎。
func (m *Mesh) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	if !m.started {
		return nil
	}
	m.started = false

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := m.app.Stop(ctx); err != nil {
		log.Warn("停止 Fx 应用失败", "error", err)
		return err
	}
	log.Info("capmesh 已关闭")
	return nil
}

// Config 返回生效的配置
func (m *Mesh) Config() *config.Config {
	return m.config
}

func (m *Mesh) running() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.closed:
		return ErrClosed
	case !m.started:
		return ErrNotStarted
	}
	return nil
}

// ════════════════════════════════════════════════════════════════════════════
//                              定位
// ════════════════════════════════════════════════════════════════════════════

// Resolve 解析能力，返回经过缓存包装的句柄
//
// 无法解析时返回 nil，调用方应视为能力不可用。
func (m *Mesh) Resolve(ctx context.Context, name string, preferNetwork bool) interfaces.Service {
	if err := m.running(); err != nil {
		log.Debug("未运行，无法解析能力", "capability", name, "error", err)
		return nil
	}
	return m.locator.Resolve(ctx, name, preferNetwork)
}

// ResolveDirect 解析能力，不经过缓存
func (m *Mesh) ResolveDirect(ctx context.Context, name string, preferNetwork bool) interfaces.Service {
	if err := m.running(); err != nil {
		log.Debug("未运行，无法解析能力", "capability", name, "error", err)
		return nil
	}
	return m.locator.ResolveDirect(ctx, name, preferNetwork)
}

// Register 注册能力，只能在 Start 之前调用
func (m *Mesh) Register(c Capability) error {
	return m.locator.Register(c)
}

// ClearCache 丢弃定位器记忆的全部句柄
func (m *Mesh) ClearCache() {
	m.locator.ClearCache()
}

// SetCaching 运行时开关 Resolve 的缓存包装，关闭后 Resolve 等同于 ResolveDirect
func (m *Mesh) SetCaching(on bool) {
	m.locator.SetCaching(on)
}

// Caching 返回 Resolve 当前是否经过缓存包装器
func (m *Mesh) Caching() bool {
	return m.locator.Caching()
}

// Available 返回已注册的能力以及两份发现视图
func (m *Mesh) Available() Availability {
	return m.locator.Available()
}

// Connect 为宣告创建远程代理，不经过定位器
func (m *Mesh) Connect(ann types.ServiceAnnouncement) *remote.Proxy {
	return m.proxies.New(ann)
}

// ════════════════════════════════════════════════════════════════════════════
//                              宣告与发现
// ════════════════════════════════════════════════════════════════════════════

// Announce 宣告服务，返回实际采用的路由
func (m *Mesh) Announce(name string, capabilities, examples []string, port int, route Route) (Route, error) {
	if err := m.running(); err != nil {
		return route, err
	}
	return m.hybrid.Announce(name, capabilities, examples, port, route)
}

// Discover 按名称查找宣告，本地优先
func (m *Mesh) Discover(name string) (types.ServiceAnnouncement, bool) {
	return m.hybrid.Lookup(name)
}

// DiscoverAll 返回本地与网络两份视图
func (m *Mesh) DiscoverAll() DiscoveryView {
	return m.hybrid.DiscoverAll()
}

// DiscoverySummary 以文本形式返回发现视图
func (m *Mesh) DiscoverySummary() string {
	return m.hybrid.Summary()
}

// Browse 立即执行一轮 mDNS 浏览，返回新发现的服务数
//
// 未启用 mDNS 时返回 0。
func (m *Mesh) Browse(ctx context.Context) int {
	if m.network == nil {
		return 0
	}
	return m.network.Browse(ctx)
}

// OnAnnounce 注册宣告监听器，本地宣告与网络发现都会触发
func (m *Mesh) OnAnnounce(fn func(types.ServiceAnnouncement)) {
	m.hybrid.AddListener(fn)
}

// ════════════════════════════════════════════════════════════════════════════
//                              网络暴露
// ════════════════════════════════════════════════════════════════════════════

// Expose 通过 HTTP 暴露实例并宣告到网络
func (m *Mesh) Expose(ctx context.Context, name string, instance any, opts ...ExposeOption) (*ExposedService, error) {
	if err := m.running(); err != nil {
		return nil, err
	}
	return m.exposer.Expose(ctx, name, instance, opts...)
}

// Unexpose 停止暴露服务
func (m *Mesh) Unexpose(name string) error {
	return m.exposer.Stop(name)
}

// Exposed 返回本进程暴露的服务
func (m *Mesh) Exposed() map[string]expose.Info {
	return m.exposer.List()
}

// ════════════════════════════════════════════════════════════════════════════
//                              缓存
// ════════════════════════════════════════════════════════════════════════════

// Cache 返回缓存管理器
func (m *Mesh) Cache() *cache.Manager {
	return m.cache
}

// CacheStats 返回全局缓存统计
func (m *Mesh) CacheStats() CacheStats {
	return m.cache.Cache().Stats()
}

// ClearServiceCache 清除服务的缓存结果，返回删除的条目数
func (m *Mesh) ClearServiceCache(name string) int {
	return m.cache.ClearService(name)
}

// ClearExpiredCache 清理过期缓存，返回删除的条目数
func (m *Mesh) ClearExpiredCache() int {
	return m.cache.ClearExpired()
}

// ════════════════════════════════════════════════════════════════════════════
//                              健康与流量
// ════════════════════════════════════════════════════════════════════════════

// Health 并发探测网络视图中每个服务，返回服务名到是否可达的映射
func (m *Mesh) Health(ctx context.Context) map[string]bool {
	anns := m.networkAnnouncements()

	var mu sync.Mutex
	out := make(map[string]bool, len(anns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(healthConcurrency)
	for _, ann := range anns {
		g.Go(func() error {
			ok := m.proxies.New(ann).Ping(gctx)
			mu.Lock()
			out[ann.Name] = ok
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// networkAnnouncements 合并 mDNS 视图与本进程暴露的服务，按名称排序
func (m *Mesh) networkAnnouncements() []types.ServiceAnnouncement {
	byName := make(map[string]types.ServiceAnnouncement)
	for _, name := range m.exposer.Names() {
		if svc, ok := m.exposer.Get(name); ok {
			byName[name] = svc.Announcement()
		}
	}
	if m.network != nil {
		for name, ann := range m.network.DiscoverAll() {
			if ann.Port > 0 {
				byName[name] = ann
			}
		}
	}

	out := make([]types.ServiceAnnouncement, 0, len(byName))
	for _, ann := range byName {
		out = append(out, ann)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Traffic 返回服务的代理与暴露流量统计
func (m *Mesh) Traffic(name string) metrics.Stats {
	if m.traffic == nil {
		return metrics.Stats{}
	}
	return m.traffic.ForService(name)
}
