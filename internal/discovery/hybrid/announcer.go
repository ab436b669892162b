package hybrid

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/dep2p/go-capmesh/internal/discovery/local"
	"github.com/dep2p/go-capmesh/internal/discovery/mdns"
	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/types"
)

var log = logger.Logger("discovery/hybrid")

// Stats 路由统计
type Stats struct {
	Local   int64 `json:"local"`
	Network int64 `json:"network"`
}

// View 本地与网络两份视图
type View struct {
	Local   []types.ServiceAnnouncement          `json:"local"`
	Network map[string]types.ServiceAnnouncement `json:"network"`
	Stats   Stats                                `json:"stats"`
}

// Announcer 混合宣告器
//
// 按路由把宣告分发到本地注册表或 mDNS 宣告器。网络宣告被禁用时
// 回落到本地注册表。
type Announcer struct {
	local   *local.Registry
	network *mdns.Announcer

	localCount   atomic.Int64
	networkCount atomic.Int64
}

// New 创建混合宣告器，network 可以为 nil
func New(reg *local.Registry, network *mdns.Announcer) *Announcer {
	return &Announcer{local: reg, network: network}
}

// Local 返回本地注册表
func (a *Announcer) Local() *local.Registry {
	return a.local
}

// Network 返回 mDNS 宣告器，可能为 nil
func (a *Announcer) Network() *mdns.Announcer {
	return a.network
}

// Announce 宣告服务，返回实际采用的路由
//
// route 为 RouteAuto 时使用 ClassifyRoute。
func (a *Announcer) Announce(name string, capabilities, examples []string, port int, route Route) (Route, error) {
	if route == RouteAuto {
		var reason string
		route, reason = Explain(name, capabilities, port)
		log.Debug("宣告路由", "service", name, "route", route, "reason", reason)
	}

	if route == RouteNetwork {
		err := a.announceNetwork(name, capabilities, examples, port)
		if err == nil {
			a.networkCount.Add(1)
			return RouteNetwork, nil
		}
		if !errors.Is(err, mdns.ErrDisabled) {
			return RouteNetwork, err
		}
		log.Debug("网络宣告不可用，改为本地宣告", "service", name)
	}

	if _, err := a.local.Announce(name, capabilities, examples); err != nil {
		return RouteLocal, err
	}
	a.localCount.Add(1)
	return RouteLocal, nil
}

func (a *Announcer) announceNetwork(name string, capabilities, examples []string, port int) error {
	if a.network == nil {
		return mdns.ErrDisabled
	}
	return a.network.Announce(name, capabilities, examples, port)
}

// AddListener 同时监听本地宣告与网络发现
func (a *Announcer) AddListener(fn func(types.ServiceAnnouncement)) {
	a.local.AddListener(fn)
	if a.network != nil {
		a.network.AddListener(fn)
	}
}

// Lookup 先查本地注册表，再查网络发现表
func (a *Announcer) Lookup(name string) (types.ServiceAnnouncement, bool) {
	if ann, ok := a.local.Discover(name); ok {
		return ann, true
	}
	if a.network != nil {
		return a.network.Discover(name)
	}
	return types.ServiceAnnouncement{}, false
}

// FindCapability 合并两份视图中能力匹配的服务，本地在前
func (a *Announcer) FindCapability(query string) []types.ServiceAnnouncement {
	out := a.local.FindCapability(query)
	if a.network != nil {
		out = append(out, a.network.FindCapability(query)...)
	}
	return out
}

// Stats 返回路由统计
func (a *Announcer) Stats() Stats {
	return Stats{Local: a.localCount.Load(), Network: a.networkCount.Load()}
}

// DiscoverAll 返回两份视图及统计
func (a *Announcer) DiscoverAll() View {
	v := View{
		Local:   a.local.List(),
		Network: map[string]types.ServiceAnnouncement{},
		Stats:   a.Stats(),
	}
	if a.network != nil {
		v.Network = a.network.DiscoverAll()
	}
	return v
}

// Summary 以文本形式列出两份视图，本地最多 10 条，网络最多 5 条
func (a *Announcer) Summary() string {
	v := a.DiscoverAll()

	var sb strings.Builder
	sb.WriteString("=== Hybrid Service Discovery ===\n")
	fmt.Fprintf(&sb, "Local services: %d, Network services: %d\n", v.Stats.Local, v.Stats.Network)

	if len(v.Local) > 0 {
		sb.WriteString("\nLOCAL SERVICES:\n")
		locals := v.Local
		if len(locals) > 10 {
			locals = locals[len(locals)-10:]
		}
		for _, ann := range locals {
			caps := ann.Capabilities
			if len(caps) > 3 {
				caps = caps[:3]
			}
			fmt.Fprintf(&sb, "  - %s: %s\n", ann.Name, strings.Join(caps, ", "))
		}
	}

	if len(v.Network) > 0 {
		fmt.Fprintf(&sb, "\nNETWORK SERVICES (%d discovered):\n", len(v.Network))
		names := make([]string, 0, len(v.Network))
		for name := range v.Network {
			names = append(names, name)
		}
		sort.Strings(names)
		if len(names) > 5 {
			names = names[:5]
		}
		for _, name := range names {
			ann := v.Network[name]
			fmt.Fprintf(&sb, "  - %s @ %s\n", ann.Name, ann.Addr())
		}
	}
	return sb.String()
}
