package capmesh

import (
	"github.com/dep2p/go-capmesh/internal/cache"
	"github.com/dep2p/go-capmesh/internal/capability"
	"github.com/dep2p/go-capmesh/internal/discovery/hybrid"
	"github.com/dep2p/go-capmesh/internal/expose"
	"github.com/dep2p/go-capmesh/internal/locator"
)

// ════════════════════════════════════════════════════════════════════════════
//                              能力
// ════════════════════════════════════════════════════════════════════════════

// Capability 能力定义
type Capability = capability.Capability

// Recipe 本地实例构建方法
type Recipe = capability.Recipe

// Availability 当前可用的能力与服务
type Availability = locator.Availability

// ════════════════════════════════════════════════════════════════════════════
//                              宣告路由
// ════════════════════════════════════════════════════════════════════════════

// Route 宣告路由
type Route = hybrid.Route

const (
	// RouteAuto 由 ClassifyRoute 决定
	RouteAuto = hybrid.RouteAuto
	// RouteLocal 仅进程内注册表
	RouteLocal = hybrid.RouteLocal
	// RouteNetwork mDNS 网络宣告
	RouteNetwork = hybrid.RouteNetwork
)

// ClassifyRoute 根据服务名、能力描述和端口推断宣告路由
func ClassifyRoute(name string, capabilities []string, port int) Route {
	return hybrid.ClassifyRoute(name, capabilities, port)
}

// ════════════════════════════════════════════════════════════════════════════
//                              网络暴露
// ════════════════════════════════════════════════════════════════════════════

// ExposedService 已暴露的服务
type ExposedService = expose.Service

// ExposeOption 暴露选项
type ExposeOption = expose.ExposeOption

// ExposePort 指定暴露端口，0 为临时端口
func ExposePort(port int) ExposeOption {
	return expose.WithPort(port)
}

// ExposeCapabilities 指定能力描述，不再自动探测
func ExposeCapabilities(caps ...string) ExposeOption {
	return expose.WithCapabilities(caps...)
}

// ════════════════════════════════════════════════════════════════════════════
//                              发现与缓存视图
// ════════════════════════════════════════════════════════════════════════════

// DiscoveryView 本地与网络两份发现视图
type DiscoveryView = hybrid.View

// CacheStats 两级缓存统计
type CacheStats = cache.Stats
