package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// 确保实现接口
var (
	_ interfaces.Service = (*CachedService)(nil)
	_ interfaces.Caller  = (*CachedService)(nil)
)

// ServiceStats 单个包装器的统计
type ServiceStats struct {
	ServiceName string              `json:"service_name"`
	TotalCalls  int64               `json:"total_calls"`
	CacheHits   int64               `json:"cache_hits"`
	CacheMisses int64               `json:"cache_misses"`
	HitRate     float64             `json:"hit_rate"`
	Policies    types.CachePolicies `json:"cache_config"`
}

// CachedService 给服务的三动词调用加上缓存
//
// ask 与 tell 按策略缓存；do 调用前总是使服务的全部缓存失效。
// 调用失败（返回 error 或 Success=false 的 *types.Response）的结果不缓存。
type CachedService struct {
	name  string
	inner interfaces.Service
	cache *Cache

	mu       sync.RWMutex
	policies types.CachePolicies

	calls atomic.Int64
	hits  atomic.Int64
}

// NewCachedService 包装服务，policies 覆盖默认策略中的同名方法
func NewCachedService(name string, inner interfaces.Service, c *Cache, policies types.CachePolicies) *CachedService {
	return &CachedService{
		name:     name,
		inner:    inner,
		cache:    c,
		policies: types.DefaultCachePolicies().Merge(policies),
	}
}

// Name 返回服务名
func (s *CachedService) Name() string {
	return s.name
}

// Inner 返回被包装的服务
func (s *CachedService) Inner() interfaces.Service {
	return s.inner
}

// Policy 返回方法的缓存策略
func (s *CachedService) Policy(method string) types.CachePolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policies.For(method)
}

// Configure 覆盖方法的缓存策略
func (s *CachedService) Configure(method string, policy types.CachePolicy) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.policies = s.policies.Merge(types.CachePolicies{method: policy})
}

// ============================================================================
//                              三动词
// ============================================================================

// Ask 带缓存的查询
//
// 写查询不读缓存也不写缓存；策略要求时使服务缓存失效。
func (s *CachedService) Ask(ctx context.Context, query string, kwargs map[string]any) (any, error) {
	s.calls.Add(1)
	pol := s.Policy(types.VerbAsk)
	args := []any{query}
	write := IsWrite(types.VerbAsk, args)
	call := Call{Service: s.name, Method: types.VerbAsk, Args: args, Kwargs: kwargs}

	if pol.Enabled && !write {
		if v, ok := s.cache.Get(call); ok {
			s.hits.Add(1)
			return v, nil
		}
	}

	v, err := s.inner.Ask(ctx, query, kwargs)
	if err != nil {
		return v, err
	}
	if write {
		if pol.InvalidateOnWrite {
			s.cache.InvalidateService(s.name)
		}
		return v, nil
	}
	if pol.Enabled && cacheable(v) {
		s.cache.Set(call, v, pol.TTL)
	}
	return v, nil
}

// Tell 带缓存的格式化
func (s *CachedService) Tell(ctx context.Context, format string, data any) (any, error) {
	s.calls.Add(1)
	pol := s.Policy(types.VerbTell)
	call := Call{Service: s.name, Method: types.VerbTell, Args: []any{format, data}}

	if pol.Enabled {
		if v, ok := s.cache.Get(call); ok {
			s.hits.Add(1)
			return v, nil
		}
	}

	v, err := s.inner.Tell(ctx, format, data)
	if err != nil {
		return v, err
	}
	if pol.Enabled && cacheable(v) {
		s.cache.Set(call, v, pol.TTL)
	}
	return v, nil
}

// Do 执行动作，调用前使服务缓存失效
func (s *CachedService) Do(ctx context.Context, action string, kwargs map[string]any) (any, error) {
	s.calls.Add(1)
	s.cache.InvalidateService(s.name)

	pol := s.Policy(types.VerbDo)
	call := Call{Service: s.name, Method: types.VerbDo, Args: []any{action}, Kwargs: kwargs}
	if pol.Enabled {
		if v, ok := s.cache.Get(call); ok {
			s.hits.Add(1)
			return v, nil
		}
	}

	v, err := s.inner.Do(ctx, action, kwargs)
	if err != nil {
		return v, err
	}
	if pol.Enabled && cacheable(v) {
		s.cache.Set(call, v, pol.TTL)
	}
	return v, nil
}

// Call 按方法名调用
//
// 标准动词走缓存路径；其余方法名在被包装服务支持 Call 时直接转发，
// 否则转换为 do(method + " " + args)。
func (s *CachedService) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case types.VerbAsk:
		return s.Ask(ctx, argString(args, 0), nil)
	case types.VerbTell:
		var data any
		if len(args) > 1 {
			data = args[1]
		}
		return s.Tell(ctx, argString(args, 0), data)
	case types.VerbDo:
		return s.Do(ctx, argString(args, 0), nil)
	}

	if c, ok := s.inner.(interfaces.Caller); ok {
		s.calls.Add(1)
		s.cache.InvalidateService(s.name)
		return c.Call(ctx, method, args...)
	}
	parts := []string{method}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return s.Do(ctx, strings.Join(parts, " "), nil)
}

func argString(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	if s, ok := args[i].(string); ok {
		return s
	}
	return fmt.Sprint(args[i])
}

// cacheable 结果是否可以缓存
func cacheable(v any) bool {
	if v == nil {
		return false
	}
	if resp, ok := v.(*types.Response); ok {
		return resp != nil && resp.Success
	}
	return true
}

// ============================================================================
//                              统计
// ============================================================================

// Stats 返回包装器统计
func (s *CachedService) Stats() ServiceStats {
	calls := s.calls.Load()
	hits := s.hits.Load()
	st := ServiceStats{
		ServiceName: s.name,
		TotalCalls:  calls,
		CacheHits:   hits,
		CacheMisses: calls - hits,
	}
	if calls > 0 {
		st.HitRate = float64(hits) / float64(calls) * 100
	}
	s.mu.RLock()
	st.Policies = s.policies.Merge(nil)
	s.mu.RUnlock()
	return st
}

// ClearCache 清除该服务的全部缓存
func (s *CachedService) ClearCache() int {
	return s.cache.InvalidateService(s.name)
}
