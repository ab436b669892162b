package local

import (
	"context"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/types"
)

var log = logger.Logger("discovery/local")

// Listener 宣告监听器，每次宣告后同步调用
type Listener func(types.ServiceAnnouncement)

type listenerEntry struct {
	id string
	fn Listener
}

// Registry 进程内服务注册表
type Registry struct {
	mu        sync.RWMutex
	services  map[string]types.ServiceAnnouncement
	listeners []listenerEntry

	pointers *Pointers
	pid      int
	clock    clock.Clock
}

// Option 注册表选项
type Option func(*Registry)

// WithPointers 启用跨进程指针表
func WithPointers(p *Pointers) Option {
	return func(r *Registry) { r.pointers = p }
}

// WithClock 替换时钟（测试用）
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// NewRegistry 创建注册表
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		services: make(map[string]types.ServiceAnnouncement),
		pid:      os.Getpid(),
		clock:    clock.New(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ============================================================================
//                              宣告与查询
// ============================================================================

// Announce 宣告本进程提供的服务
//
// 同名宣告覆盖旧记录。返回前所有监听器已被调用；监听器 panic 会被
// 记录并吞掉，不影响其他监听器。
func (r *Registry) Announce(name string, capabilities, examples []string) (types.ServiceAnnouncement, error) {
	if !validName(name) {
		return types.ServiceAnnouncement{}, ErrInvalidName
	}

	ann := types.ServiceAnnouncement{
		Name:         name,
		Capabilities: append([]string(nil), capabilities...),
		Examples:     append([]string(nil), examples...),
		PID:          r.pid,
		Source:       types.SourceLocal,
		DiscoveredAt: r.clock.Now(),
	}

	r.mu.Lock()
	r.services[name] = ann
	listeners := append([]listenerEntry(nil), r.listeners...)
	r.mu.Unlock()

	log.Debug("本地服务已宣告", "service", name, "capabilities", len(capabilities))

	for _, l := range listeners {
		r.notify(l, ann.Clone())
	}
	return ann.Clone(), nil
}

func (r *Registry) notify(l listenerEntry, ann types.ServiceAnnouncement) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Warn("宣告监听器 panic", "listener", l.id, "service", ann.Name, "panic", rec)
		}
	}()
	l.fn(ann)
}

// Discover 按精确名称查找
func (r *Registry) Discover(name string) (types.ServiceAnnouncement, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ann, ok := r.services[name]
	if !ok {
		return types.ServiceAnnouncement{}, false
	}
	return ann.Clone(), true
}

// FindCapability 返回能力描述包含 query（不区分大小写）的服务，按名称排序
func (r *Registry) FindCapability(query string) []types.ServiceAnnouncement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []types.ServiceAnnouncement
	for _, ann := range r.services {
		if ann.HasCapability(query) {
			out = append(out, ann.Clone())
		}
	}
	sortByName(out)
	return out
}

// List 返回全部服务，按名称排序
func (r *Registry) List() []types.ServiceAnnouncement {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ServiceAnnouncement, 0, len(r.services))
	for _, ann := range r.services {
		out = append(out, ann.Clone())
	}
	sortByName(out)
	return out
}

// Len 返回服务数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.services)
}

// Remove 移除服务，返回是否存在
func (r *Registry) Remove(name string) bool {
	r.mu.Lock()
	_, ok := r.services[name]
	delete(r.services, name)
	r.mu.Unlock()

	if ok && r.pointers != nil {
		if err := r.pointers.Remove(context.Background(), name); err != nil {
			log.Debug("删除服务指针失败", "service", name, "error", err)
		}
	}
	return ok
}

// ============================================================================
//                              监听器
// ============================================================================

// AddListener 注册宣告监听器，返回监听器 ID
func (r *Registry) AddListener(fn Listener) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.listeners = append(r.listeners, listenerEntry{id: id, fn: fn})
	r.mu.Unlock()
	return id
}

// RemoveListener 注销监听器
func (r *Registry) RemoveListener(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, l := range r.listeners {
		if l.id == id {
			r.listeners = append(r.listeners[:i], r.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// ============================================================================
//                              跨进程指针
// ============================================================================

// Claim 在指针表中记录本进程托管 name
//
// 未启用指针表时为空操作。
func (r *Registry) Claim(ctx context.Context, name string) error {
	if r.pointers == nil {
		return nil
	}
	return r.pointers.Register(ctx, name, r.pid)
}

// HostedElsewhere 检查 name 是否由另一个存活进程托管
//
// 指针表不可用或出错时返回 false，调用方按本地路径处理。
func (r *Registry) HostedElsewhere(ctx context.Context, name string) (int, bool) {
	if r.pointers == nil {
		return 0, false
	}
	pid, ok, err := r.pointers.Owner(ctx, name)
	if err != nil {
		log.Debug("查询服务指针失败", "service", name, "error", err)
		return 0, false
	}
	if !ok || pid == r.pid {
		return 0, false
	}
	return pid, true
}

// Pointers 返回指针表，未启用时为 nil
func (r *Registry) Pointers() *Pointers {
	return r.pointers
}

// Cleanup 删除本进程写入的指针并清空内存表
func (r *Registry) Cleanup(ctx context.Context) error {
	r.mu.Lock()
	r.services = make(map[string]types.ServiceAnnouncement)
	r.mu.Unlock()

	if r.pointers == nil {
		return nil
	}
	n, err := r.pointers.RemoveOwned(ctx, r.pid)
	if err != nil {
		return err
	}
	if n > 0 {
		log.Debug("已清理服务指针", "count", n)
	}
	return nil
}

func validName(name string) bool {
	return name != "" && strings.TrimSpace(name) == name
}

func sortByName(anns []types.ServiceAnnouncement) {
	sort.Slice(anns, func(i, j int) bool { return anns[i].Name < anns[j].Name })
}
