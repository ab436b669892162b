package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/dep2p/go-capmesh/pkg/interfaces"
)

// 缓存与管理器本身也可以作为三动词服务被定位和暴露
var (
	_ interfaces.Service = (*Cache)(nil)
	_ interfaces.Service = (*Manager)(nil)
)

// ============================================================================
//                              Cache
// ============================================================================

// Ask 查询缓存状态
//
//	"stats" / "statistics"  统计快照
//	"hit rate"              命中率
//	"size" / "count"        各层条目数
func (c *Cache) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case strings.Contains(q, "stats"), strings.Contains(q, "statistics"):
		return c.Stats(), nil
	case strings.Contains(q, "hit rate"):
		return map[string]any{"hit_rate": c.Stats().HitRate}, nil
	case strings.Contains(q, "size"), strings.Contains(q, "count"):
		st := c.Stats()
		return map[string]any{
			"ram_size":   st.RAMSize,
			"db_size":    st.TotalEntries,
			"total_size": int64(st.RAMSize) + st.TotalEntries,
		}, nil
	}
	return nil, fmt.Errorf("unknown cache query: %s", query)
}

// Tell 格式化缓存统计，data 为空时使用当前统计
func (c *Cache) Tell(_ context.Context, format string, data any) (any, error) {
	if data == nil {
		data = c.Stats()
	}
	switch strings.ToLower(format) {
	case "json":
		return marshalIndent(data)
	case "text":
		if st, ok := data.(Stats); ok {
			return formatStats(st), nil
		}
		return fmt.Sprint(data), nil
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

// Do 执行缓存动作：clear expired / clear all / reset stats
func (c *Cache) Do(_ context.Context, action string, _ map[string]any) (any, error) {
	a := strings.ToLower(strings.TrimSpace(action))
	switch {
	case strings.Contains(a, "clear") && strings.Contains(a, "expired"):
		n := c.ClearExpired()
		return map[string]any{"status": "cleared expired entries", "removed": n}, nil
	case strings.Contains(a, "clear") && strings.Contains(a, "all"):
		if err := c.Clear(); err != nil {
			return nil, fmt.Errorf("clear persistent cache: %w", err)
		}
		return map[string]any{"status": "cleared all cache entries"}, nil
	case strings.Contains(a, "reset") && strings.Contains(a, "stats"):
		c.ResetStats()
		return map[string]any{"status": "reset statistics"}, nil
	}
	return nil, fmt.Errorf("unknown cache action: %s", action)
}

func formatStats(st Stats) string {
	var sb strings.Builder
	sb.WriteString("Hybrid Cache Statistics:\n")
	sb.WriteString("========================\n")
	sb.WriteString("RAM Cache:\n")
	fmt.Fprintf(&sb, "  Hits: %d\n", st.RAMHits)
	fmt.Fprintf(&sb, "  Misses: %d\n", st.RAMMisses)
	fmt.Fprintf(&sb, "  Hit Rate: %.1f%%\n", st.RAMHitRate)
	fmt.Fprintf(&sb, "  Size: %d entries\n\n", st.RAMSize)
	sb.WriteString("Persistent Cache:\n")
	fmt.Fprintf(&sb, "  Hits: %d\n", st.DBHits)
	fmt.Fprintf(&sb, "  Misses: %d\n", st.DBMisses)
	fmt.Fprintf(&sb, "  Total Entries: %d\n", st.TotalEntries)
	if st.Degraded {
		sb.WriteString("  Status: degraded (RAM only)\n")
	}
	sb.WriteString("\nOverall:\n")
	fmt.Fprintf(&sb, "  Hit Rate: %.1f%%\n", st.HitRate)
	fmt.Fprintf(&sb, "  Expired: %d", st.ExpiredEntries)
	return sb.String()
}

func marshalIndent(v any) (string, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ============================================================================
//                              Manager
// ============================================================================

// Ask 查询管理器
//
//	"stats" / "statistics"  全部统计
//	"services"              已包装的服务名
//	"hit rate"              全局命中率
func (m *Manager) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	q := strings.ToLower(strings.TrimSpace(query))
	switch {
	case strings.Contains(q, "stats"), strings.Contains(q, "statistics"):
		return m.AllStats(), nil
	case strings.Contains(q, "services"):
		return m.Names(), nil
	case strings.Contains(q, "hit rate"):
		return m.cache.Stats().HitRate, nil
	}
	return nil, fmt.Errorf("unknown cache manager query: %s", query)
}

// Tell 格式化管理器统计，data 为空时使用 AllStats
func (m *Manager) Tell(_ context.Context, format string, data any) (any, error) {
	if data == nil {
		data = m.AllStats()
	}
	switch strings.ToLower(format) {
	case "json":
		return marshalIndent(data)
	case "text":
		all, ok := data.(map[string]any)
		if !ok {
			return fmt.Sprint(data), nil
		}
		return formatAllStats(all), nil
	default:
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

// Do 执行管理器动作：clear all / clear expired
func (m *Manager) Do(_ context.Context, action string, kwargs map[string]any) (any, error) {
	a := strings.ToLower(strings.TrimSpace(action))
	switch {
	case strings.Contains(a, "clear") && strings.Contains(a, "expired"):
		n := m.ClearExpired()
		return map[string]any{"status": "cleared expired cache entries", "removed": n}, nil
	case strings.Contains(a, "clear") && strings.Contains(a, "all"):
		if err := m.ClearAll(); err != nil {
			return nil, err
		}
		return map[string]any{"status": "cleared all service caches"}, nil
	case strings.Contains(a, "clear"):
		name, _ := kwargs["service"].(string)
		if name == "" {
			return nil, fmt.Errorf("service name required for selective cache clear")
		}
		n := m.ClearService(name)
		return map[string]any{"status": "cleared cache for " + name, "removed": n}, nil
	}
	return nil, fmt.Errorf("unknown cache manager action: %s", action)
}

func formatAllStats(all map[string]any) string {
	var sb strings.Builder
	sb.WriteString("Service Cache Statistics:\n")
	sb.WriteString(strings.Repeat("=", 50))
	sb.WriteString("\n")

	names := make([]string, 0, len(all))
	for name := range all {
		if name != GlobalStatsKey {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	if g, ok := all[GlobalStatsKey].(Stats); ok {
		sb.WriteString("\nGlobal Cache:\n")
		fmt.Fprintf(&sb, "  Hit Rate: %.1f%%\n", g.HitRate)
		fmt.Fprintf(&sb, "  RAM Size: %d entries\n", g.RAMSize)
		fmt.Fprintf(&sb, "  DB Size: %d entries\n", g.TotalEntries)
	}
	for _, name := range names {
		st, ok := all[name].(ServiceStats)
		if !ok {
			continue
		}
		fmt.Fprintf(&sb, "\n%s:\n", name)
		fmt.Fprintf(&sb, "  Calls: %d\n", st.TotalCalls)
		fmt.Fprintf(&sb, "  Hits: %d\n", st.CacheHits)
		fmt.Fprintf(&sb, "  Hit Rate: %.1f%%\n", st.HitRate)
	}
	return sb.String()
}
