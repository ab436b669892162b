package locator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/dep2p/go-capmesh/internal/cache"
	"github.com/dep2p/go-capmesh/internal/capability"
	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/internal/discovery/local"
	"github.com/dep2p/go-capmesh/internal/expose"
	"github.com/dep2p/go-capmesh/internal/remote"
	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

var log = logger.Logger("locator")

// 解析结果标签
const (
	outcomeLocal   = "local"
	outcomeNetwork = "network"
	outcomeNone    = "none"
)

// Directory 网络发现视图
//
// *mdns.Announcer 实现此接口。
type Directory interface {
	Discover(name string) (types.ServiceAnnouncement, bool)
	FindCapability(query string) []types.ServiceAnnouncement
	DiscoverAll() map[string]types.ServiceAnnouncement
}

// memoKey 记忆表键
type memoKey struct {
	name          string
	preferNetwork bool
	direct        bool
}

func (k memoKey) String() string {
	return fmt.Sprintf("%s|%t|%t", k.name, k.preferNetwork, k.direct)
}

// Availability 当前可用的能力与服务
type Availability struct {
	// Capabilities 已注册的能力名
	Capabilities []string `json:"capabilities"`

	// Local 本地注册表中的宣告
	Local []types.ServiceAnnouncement `json:"local"`

	// Network 网络发现的宣告，按名称排序
	Network []types.ServiceAnnouncement `json:"network"`
}

// Locator 服务定位器
type Locator struct {
	cfg     Config
	caps    *capability.Registry
	local   *local.Registry
	network Directory
	exposer *expose.Manager
	proxies *remote.Factory
	cache   *cache.Manager

	group   singleflight.Group
	caching atomic.Bool

	mu   sync.RWMutex
	memo map[memoKey]interfaces.Service
}

// Option 定位器选项
type Option func(*Locator)

// WithNetwork 设置网络发现视图
func WithNetwork(d Directory) Option {
	return func(l *Locator) { l.network = d }
}

// WithExposer 设置暴露管理器，ExposeOverNetwork 的能力构建后经它暴露
func WithExposer(m *expose.Manager) Option {
	return func(l *Locator) { l.exposer = m }
}

// WithCache 设置缓存管理器
func WithCache(m *cache.Manager) Option {
	return func(l *Locator) { l.cache = m }
}

// WithProxies 设置远程代理工厂
func WithProxies(f *remote.Factory) Option {
	return func(l *Locator) { l.proxies = f }
}

// New 创建定位器
func New(cfg Config, caps *capability.Registry, reg *local.Registry, opts ...Option) *Locator {
	l := &Locator{
		cfg:   cfg,
		caps:  caps,
		local: reg,
		memo:  make(map[memoKey]interfaces.Service),
	}
	l.caching.Store(cfg.WrapCache)
	for _, opt := range opts {
		opt(l)
	}
	if l.proxies == nil {
		l.proxies = remote.NewFactory(remote.DefaultConfig(), nil)
	}
	return l
}

// Capabilities 返回能力注册表
func (l *Locator) Capabilities() *capability.Registry {
	return l.caps
}

// Register 注册能力，注册表冻结后返回 capability.ErrFrozen
func (l *Locator) Register(c capability.Capability) error {
	return l.caps.Register(c)
}

// ============================================================================
//                              解析
// ============================================================================

// Resolve 解析能力
//
// 返回的句柄在启用缓存时经过缓存包装器。同一 (name, preferNetwork)
// 在 ClearCache 之前总是返回同一句柄。无法解析时返回 nil。
// SetCaching(false) 之后等同于 ResolveDirect。
func (l *Locator) Resolve(ctx context.Context, name string, preferNetwork bool) interfaces.Service {
	return l.resolve(ctx, memoKey{name: name, preferNetwork: preferNetwork, direct: !l.caching.Load()})
}

// SetCaching 运行时开关缓存包装，不影响已返回的句柄
func (l *Locator) SetCaching(on bool) {
	if l.caching.Swap(on) != on {
		log.Info("定位器缓存包装已切换", "enabled", on)
	}
}

// Caching 返回 Resolve 当前是否经过缓存包装器
func (l *Locator) Caching() bool {
	return l.caching.Load()
}

// ResolveDirect 解析能力但不经过缓存包装器
func (l *Locator) ResolveDirect(ctx context.Context, name string, preferNetwork bool) interfaces.Service {
	return l.resolve(ctx, memoKey{name: name, preferNetwork: preferNetwork, direct: true})
}

func (l *Locator) resolve(ctx context.Context, key memoKey) interfaces.Service {
	if svc, ok := l.memoized(key); ok {
		return svc
	}

	v, _, _ := l.group.Do(key.String(), func() (any, error) {
		if svc, ok := l.memoized(key); ok {
			return svc, nil
		}
		svc := l.build(ctx, key)
		if svc != nil {
			l.mu.Lock()
			l.memo[key] = svc
			l.mu.Unlock()
		}
		return svc, nil
	})
	svc, _ := v.(interfaces.Service)
	return svc
}

func (l *Locator) memoized(key memoKey) (interfaces.Service, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	svc, ok := l.memo[key]
	return svc, ok
}

// build 按偏好顺序尝试本地与网络路径
func (l *Locator) build(ctx context.Context, key memoKey) interfaces.Service {
	paths := []func(context.Context, string) interfaces.Service{l.resolveLocal, l.resolveNetwork}
	outcomes := []string{outcomeLocal, outcomeNetwork}
	if key.preferNetwork {
		paths[0], paths[1] = paths[1], paths[0]
		outcomes[0], outcomes[1] = outcomes[1], outcomes[0]
	}

	for i, path := range paths {
		svc := path(ctx, key.name)
		if svc == nil {
			continue
		}
		metrics.RecordResolution(key.name, outcomes[i])
		log.Debug("能力已解析", "capability", key.name, "via", outcomes[i], "direct", key.direct)
		if key.direct {
			return svc
		}
		return l.wrap(key.name, svc)
	}

	metrics.RecordResolution(key.name, outcomeNone)
	log.Info("能力不可用", "capability", key.name, "preferNetwork", key.preferNetwork)
	return nil
}

// resolveLocal 本地构建
//
// 另一个存活进程托管该能力时不构建。构建成功后宣告到本地注册表、
// 写入指针，ExposeOverNetwork 的能力同时通过 HTTP 暴露。
func (l *Locator) resolveLocal(ctx context.Context, name string) interfaces.Service {
	c, ok := l.caps.Lookup(name)
	if !ok {
		return nil
	}
	if pid, elsewhere := l.local.HostedElsewhere(ctx, name); elsewhere {
		log.Debug("能力由其他进程托管，跳过本地构建", "capability", name, "pid", pid)
		return nil
	}

	buildCtx := ctx
	if l.cfg.BuildTimeout > 0 {
		var cancel context.CancelFunc
		buildCtx, cancel = context.WithTimeout(ctx, l.cfg.BuildTimeout)
		defer cancel()
	}
	svc, err := l.caps.Instance(buildCtx, name)
	if err != nil {
		log.Warn("本地构建失败", "capability", name, "error", err)
		return nil
	}

	if _, err := l.local.Announce(name, c.Announced(), c.Examples); err != nil {
		log.Debug("本地宣告失败", "capability", name, "error", err)
	}
	if err := l.local.Claim(ctx, name); err != nil {
		log.Debug("写入服务指针失败", "capability", name, "error", err)
	}
	if c.ExposeOverNetwork {
		l.expose(ctx, c, svc)
	}
	return svc
}

func (l *Locator) expose(ctx context.Context, c capability.Capability, svc interfaces.Service) {
	if l.exposer == nil {
		log.Debug("未配置暴露管理器，能力仅在本地可用", "capability", c.Name)
		return
	}
	opts := []expose.ExposeOption{expose.WithPort(c.Port)}
	if len(c.Capabilities) > 0 {
		opts = append(opts, expose.WithCapabilities(c.Capabilities...))
	}
	_, err := l.exposer.Expose(ctx, c.Name, svc, opts...)
	switch {
	case err == nil, errors.Is(err, expose.ErrAlreadyExposed):
	default:
		log.Warn("暴露能力失败", "capability", c.Name, "error", err)
	}
}

// resolveNetwork 查找宣告并包装为远程代理
func (l *Locator) resolveNetwork(_ context.Context, name string) interfaces.Service {
	ann, ok := l.findAnnouncement(name)
	if !ok {
		return nil
	}
	return l.proxies.New(ann)
}

// findAnnouncement 依次按精确名称、本进程暴露的服务、能力描述查找
//
// 只接受带端口的宣告。
func (l *Locator) findAnnouncement(name string) (types.ServiceAnnouncement, bool) {
	if l.network != nil {
		if ann, ok := l.network.Discover(name); ok && ann.Port > 0 {
			return ann, true
		}
	}
	if l.exposer != nil {
		if svc, ok := l.exposer.Get(name); ok {
			return svc.Announcement(), true
		}
	}
	if l.network != nil {
		for _, ann := range l.network.FindCapability(name) {
			if ann.Port > 0 {
				return ann, true
			}
		}
	}
	return types.ServiceAnnouncement{}, false
}

// wrap 用缓存包装器包装句柄
func (l *Locator) wrap(name string, svc interfaces.Service) interfaces.Service {
	if l.cache == nil {
		return svc
	}
	policies := capability.PoliciesFor(name)
	if c, ok := l.caps.Lookup(name); ok {
		policies = c.Policies()
	}
	return l.cache.Wrap(name, svc, policies)
}

// ============================================================================
//                              记忆表
// ============================================================================

// ClearCache 丢弃全部记忆的句柄，下次 Resolve 重新解析
//
// 已构建的本地实例保留在能力注册表中。
func (l *Locator) ClearCache() {
	l.mu.Lock()
	n := len(l.memo)
	l.memo = make(map[memoKey]interfaces.Service)
	l.mu.Unlock()
	log.Debug("定位器记忆表已清空", "count", n)
}

// Memoized 返回记忆表中的句柄数量
func (l *Locator) Memoized() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.memo)
}

// Available 返回已注册的能力以及两份发现视图
func (l *Locator) Available() Availability {
	a := Availability{
		Capabilities: l.caps.Names(),
		Local:        l.local.List(),
	}
	if l.network != nil {
		all := l.network.DiscoverAll()
		a.Network = make([]types.ServiceAnnouncement, 0, len(all))
		for _, ann := range all {
			a.Network = append(a.Network, ann)
		}
		sort.Slice(a.Network, func(i, j int) bool { return a.Network[i].Name < a.Network[j].Name })
	}
	return a
}
