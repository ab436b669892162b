package cache

import (
	"reflect"
	"sort"
	"sync"

	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// GlobalStatsKey AllStats 中全局缓存统计的键
const GlobalStatsKey = "_global_cache"

// Manager 管理进程内所有缓存包装器
type Manager struct {
	cache *Cache

	mu        sync.RWMutex
	services  map[string]*CachedService
	overrides map[string]types.CachePolicies
}

// NewManager 创建管理器
func NewManager(c *Cache) *Manager {
	return &Manager{
		cache:     c,
		services:  make(map[string]*CachedService),
		overrides: make(map[string]types.CachePolicies),
	}
}

// Cache 返回底层缓存
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Wrap 为服务创建缓存包装器
//
// 同名且包装同一实例时返回已有包装器；实例不同时新包装器替换旧的。
// 已经是 *CachedService 的服务原样返回。
func (m *Manager) Wrap(name string, svc interfaces.Service, policies types.CachePolicies) *CachedService {
	if cs, ok := svc.(*CachedService); ok {
		return cs
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.services[name]; ok && sameService(existing.inner, svc) {
		return existing
	}
	cs := NewCachedService(name, svc, m.cache, policies.Merge(m.overrides[name]))
	m.services[name] = cs
	return cs
}

// sameService 比较两个服务是否为同一实例，不可比较的类型视为不同
func sameService(a, b interfaces.Service) bool {
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || ta == nil || !ta.Comparable() {
		return false
	}
	return a == b
}

// Configure 设置服务的策略覆盖，已存在的包装器立即生效
func (m *Manager) Configure(name string, policies types.CachePolicies) {
	m.mu.Lock()
	m.overrides[name] = m.overrides[name].Merge(policies)
	cs := m.services[name]
	m.mu.Unlock()

	if cs != nil {
		for method, pol := range policies {
			cs.Configure(method, pol)
		}
	}
}

// Get 返回服务的包装器
func (m *Manager) Get(name string) (*CachedService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cs, ok := m.services[name]
	return cs, ok
}

// Names 返回已包装的服务名（排序）
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AllStats 返回每个包装器的统计以及 GlobalStatsKey 下的全局统计
func (m *Manager) AllStats() map[string]any {
	m.mu.RLock()
	out := make(map[string]any, len(m.services)+1)
	for name, cs := range m.services {
		out[name] = cs.Stats()
	}
	m.mu.RUnlock()

	out[GlobalStatsKey] = m.cache.Stats()
	return out
}

// ClearService 清除服务的缓存
func (m *Manager) ClearService(name string) int {
	return m.cache.InvalidateService(name)
}

// ClearAll 清除所有包装器的缓存并清空底层缓存
func (m *Manager) ClearAll() error {
	m.mu.RLock()
	services := make([]*CachedService, 0, len(m.services))
	for _, cs := range m.services {
		services = append(services, cs)
	}
	m.mu.RUnlock()

	for _, cs := range services {
		cs.ClearCache()
	}
	return m.cache.Clear()
}

// ClearExpired 清理过期条目
func (m *Manager) ClearExpired() int {
	return m.cache.ClearExpired()
}
