package local

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// 确保 Registry 可以作为三动词服务被定位和暴露
var _ interfaces.Service = (*Registry)(nil)

// Ask 查询注册表
//
//	"list all services" / "all services"  全部服务
//	"find service <name>"                 单个服务，不存在时为 nil
//	"capability <text>"                   按能力子串查找
func (r *Registry) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case strings.Contains(q, "all services"):
		return r.List(), nil
	case strings.Contains(q, "find service"):
		fields := strings.Fields(query)
		if len(fields) > 2 {
			if ann, ok := r.Discover(fields[len(fields)-1]); ok {
				return ann, nil
			}
		}
		return nil, nil
	case strings.HasPrefix(q, "capability "):
		return r.FindCapability(strings.TrimSpace(query[len("capability "):])), nil
	default:
		return r.List(), nil
	}
}

// Tell 格式化服务列表，data 为空时使用当前注册表
func (r *Registry) Tell(_ context.Context, format string, data any) (any, error) {
	services, ok := data.([]types.ServiceAnnouncement)
	if !ok || data == nil {
		services = r.List()
	}

	switch strings.ToLower(format) {
	case "json":
		b, err := json.MarshalIndent(services, "", "  ")
		if err != nil {
			return nil, err
		}
		return string(b), nil
	case "text":
		var sb strings.Builder
		fmt.Fprintf(&sb, "Services (%d):", len(services))
		for _, s := range services {
			caps := s.Capabilities
			if len(caps) > 2 {
				caps = caps[:2]
			}
			fmt.Fprintf(&sb, "\n  %s: %s", s.Name, strings.Join(caps, ", "))
		}
		return sb.String(), nil
	default:
		return fmt.Sprint(services), nil
	}
}

// Do 执行注册表动作：cleanup / clear / stats
func (r *Registry) Do(ctx context.Context, action string, _ map[string]any) (any, error) {
	a := strings.ToLower(strings.TrimSpace(action))
	switch {
	case strings.Contains(a, "cleanup"), strings.Contains(a, "clear"):
		if err := r.Cleanup(ctx); err != nil {
			return nil, err
		}
		return "cleaned", nil
	case strings.Contains(a, "stats"):
		r.mu.RLock()
		defer r.mu.RUnlock()
		return map[string]any{
			"total_services": len(r.services),
			"listeners":      len(r.listeners),
			"pointers":       r.pointers != nil,
		}, nil
	default:
		return fmt.Sprintf("Unknown action: %s", action), nil
	}
}
