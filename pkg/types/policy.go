package types

import "time"

// CachePolicy 单个方法的缓存策略
type CachePolicy struct {
	// Enabled 是否缓存该方法的结果
	Enabled bool `json:"enabled"`

	// TTL 过期时间
	TTL time.Duration `json:"ttl"`

	// InvalidateOnWrite 识别为写操作时使该服务的缓存失效
	InvalidateOnWrite bool `json:"invalidate_on_write"`
}

// CachePolicies 方法名到缓存策略的映射
type CachePolicies map[string]CachePolicy

// DefaultCachePolicies 返回默认策略
//
//	ask:  缓存 1h，写操作时失效
//	tell: 缓存 30m
//	do:   不缓存
func DefaultCachePolicies() CachePolicies {
	return CachePolicies{
		VerbAsk:  {Enabled: true, TTL: time.Hour, InvalidateOnWrite: true},
		VerbTell: {Enabled: true, TTL: 30 * time.Minute},
		VerbDo:   {Enabled: false, TTL: time.Minute},
	}
}

// For 返回方法的策略，未配置的方法不缓存
func (p CachePolicies) For(method string) CachePolicy {
	if pol, ok := p[method]; ok {
		return pol
	}
	return CachePolicy{}
}

// Merge 用 override 覆盖同名方法的策略，返回新映射
func (p CachePolicies) Merge(override CachePolicies) CachePolicies {
	out := make(CachePolicies, len(p)+len(override))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}
