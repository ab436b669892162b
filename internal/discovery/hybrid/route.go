package hybrid

import "strings"

// Route 宣告路由
type Route int

const (
	// RouteAuto 由 ClassifyRoute 决定
	RouteAuto Route = iota
	// RouteLocal 仅进程内注册表
	RouteLocal
	// RouteNetwork mDNS 网络宣告
	RouteNetwork
)

// String 返回路由名称
func (r Route) String() string {
	switch r {
	case RouteLocal:
		return "local"
	case RouteNetwork:
		return "network"
	default:
		return "auto"
	}
}

// 名称关键字，按顺序匹配
var (
	localKeywords = []string{
		"model", "math", "capability", "announcer", "request",
		"processor", "handler", "manager", "generator", "analyzer",
	}
	networkKeywords = []string{
		"server", "api", "web", "http", "bridge", "discord", "twilio",
		"editor service", "database service", "web editor",
	}
	capabilityNetworkHints = []string{"port", "server", "http", "web", "api"}
)

// ClassifyRoute 根据服务特征决定宣告路由
//
// 规则按顺序生效：
//  1. port > 0 一律走网络
//  2. 名称包含对象类关键字（model、manager 等）走本地
//  3. 名称包含服务类关键字（server、api、web 等）走网络
//  4. 能力描述中出现 port/server/http/web/api 走网络
//  5. 其余走本地
//
// 名称同时命中两类关键字时本地优先，所以 "API Manager" 走本地。
func ClassifyRoute(name string, capabilities []string, port int) Route {
	route, _ := classify(name, capabilities, port)
	return route
}

// Explain 返回路由及命中的规则，便于排查
func Explain(name string, capabilities []string, port int) (Route, string) {
	return classify(name, capabilities, port)
}

func classify(name string, capabilities []string, port int) (Route, string) {
	if port > 0 {
		return RouteNetwork, "explicit port"
	}

	lower := strings.ToLower(name)
	for _, kw := range localKeywords {
		if strings.Contains(lower, kw) {
			return RouteLocal, "name keyword: " + kw
		}
	}
	for _, kw := range networkKeywords {
		if strings.Contains(lower, kw) {
			return RouteNetwork, "name keyword: " + kw
		}
	}

	caps := strings.ToLower(strings.Join(capabilities, " "))
	for _, kw := range capabilityNetworkHints {
		if strings.Contains(caps, kw) {
			return RouteNetwork, "capability keyword: " + kw
		}
	}
	return RouteLocal, "default"
}
