package capability

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
)

var log = logger.Logger("capability")

type entry struct {
	cap Capability

	mu       sync.Mutex
	instance interfaces.Service
}

// Registry 能力注册表
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	frozen  atomic.Bool
}

// NewRegistry 创建注册表并注册 caps
func NewRegistry(caps ...Capability) (*Registry, error) {
	r := &Registry{entries: make(map[string]*entry)}
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register 注册能力，冻结后返回 ErrFrozen
func (r *Registry) Register(c Capability) error {
	if r.frozen.Load() {
		return ErrFrozen
	}
	if !validName(c.Name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, c.Name)
	}
	if c.Recipe == nil {
		return fmt.Errorf("%w: %q", ErrNoRecipe, c.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[c.Name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicate, c.Name)
	}
	c.Capabilities = append([]string(nil), c.Capabilities...)
	c.Examples = append([]string(nil), c.Examples...)
	r.entries[c.Name] = &entry{cap: c}
	return nil
}

// Freeze 冻结注册表
func (r *Registry) Freeze() {
	if !r.frozen.Swap(true) {
		log.Debug("能力注册表已冻结", "count", r.Len())
	}
}

// Frozen 是否已冻结
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Lookup 查找能力定义
func (r *Registry) Lookup(name string) (Capability, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	if !ok {
		return Capability{}, false
	}
	return e.cap, true
}

// Names 返回全部能力名，已排序
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len 返回能力数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Instance 返回能力的本地实例，首次调用时构建
//
// 构建成功的实例被缓存；构建失败或返回 nil 不缓存。
// Recipe panic 被恢复为 *BuildError。
func (r *Registry) Instance(ctx context.Context, name string) (interfaces.Service, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.instance != nil {
		return e.instance, nil
	}

	svc, err := build(ctx, e.cap)
	if err != nil {
		return nil, &BuildError{Name: name, Err: err}
	}
	e.instance = svc
	log.Debug("本地实例已构建", "capability", name)
	return svc, nil
}

// Built 本地实例是否已构建
func (r *Registry) Built(name string) bool {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.instance != nil
}

func build(ctx context.Context, c Capability) (svc interfaces.Service, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			svc, err = nil, fmt.Errorf("recipe panic: %v", rec)
		}
	}()
	svc, err = c.Recipe(ctx)
	if err == nil && svc == nil {
		err = fmt.Errorf("recipe returned nil service")
	}
	return svc, err
}
