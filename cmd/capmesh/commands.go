package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dep2p/go-capmesh"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
)

// command 子命令
type command struct {
	run func(ctx context.Context, m *capmesh.Mesh, args []string) error
}

var commands = map[string]command{
	"status":   {run: runStatus},
	"list":     {run: runList},
	"discover": {run: runDiscover},
	"call":     {run: runCall},
	"health":   {run: runHealth},
	"cache":    {run: runCache},
	"serve":    {run: runServe},
}

// ============================================================================
//                              概况
// ============================================================================

func runStatus(_ context.Context, m *capmesh.Mesh, _ []string) error {
	cfg := m.Config()
	avail := m.Available()
	stats := m.CacheStats()

	fmt.Println("══════════════════════════════════════════════════════")
	fmt.Printf("📦 %s\n", capmesh.VersionInfo())
	fmt.Println("══════════════════════════════════════════════════════")
	fmt.Printf("数据目录:   %s\n", cfg.Storage.DataDir)
	fmt.Printf("mDNS:       %s\n", onOff(cfg.Discovery.EnableMDNS))
	fmt.Printf("持久缓存:   %s\n", onOff(stats.Persistent))
	fmt.Printf("能力:       %s\n", strings.Join(avail.Capabilities, ", "))
	fmt.Printf("本地服务:   %d\n", len(avail.Local))
	fmt.Printf("网络服务:   %d\n", len(avail.Network))
	fmt.Printf("缓存条目:   %d (内存 %d)\n", stats.TotalEntries, stats.RAMSize)
	fmt.Printf("缓存命中率: %.1f%%\n", stats.HitRate)
	if stats.Degraded {
		fmt.Println("⚠️  持久层不可用，缓存已降级为仅内存")
	}
	return nil
}

func runList(_ context.Context, m *capmesh.Mesh, _ []string) error {
	avail := m.Available()
	fmt.Println("能力:")
	for _, name := range avail.Capabilities {
		fmt.Printf("  - %s\n", name)
	}
	fmt.Println("本地服务:")
	for _, ann := range avail.Local {
		fmt.Printf("  - %s %v\n", ann.Name, ann.Capabilities)
	}
	fmt.Println("网络服务:")
	for _, ann := range avail.Network {
		fmt.Printf("  - %s %s:%d %v\n", ann.Name, ann.Host, ann.Port, ann.Capabilities)
	}
	return nil
}

// ============================================================================
//                              发现与探测
// ============================================================================

func runDiscover(ctx context.Context, m *capmesh.Mesh, args []string) error {
	fs := flag.NewFlagSet("discover", flag.ContinueOnError)
	wait := fs.Duration("wait", 2*time.Second, "浏览时长")
	asJSON := fs.Bool("json", false, "以 JSON 输出")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	browse(ctx, m, *wait)
	if *asJSON {
		return printJSON(m.DiscoverAll())
	}
	fmt.Print(m.DiscoverySummary())
	return nil
}

func runHealth(ctx context.Context, m *capmesh.Mesh, args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	wait := fs.Duration("wait", 2*time.Second, "探测前的浏览时长")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	browse(ctx, m, *wait)
	health := m.Health(ctx)
	if len(health) == 0 {
		fmt.Println("未发现网络服务")
		return nil
	}

	names := make([]string, 0, len(health))
	for name := range health {
		names = append(names, name)
	}
	sort.Strings(names)

	down := 0
	for _, name := range names {
		mark := "✅"
		if !health[name] {
			mark = "❌"
			down++
		}
		fmt.Printf("%s %s\n", mark, name)
	}
	if down > 0 {
		return fmt.Errorf("%d 个服务不可达", down)
	}
	return nil
}

// browse 在 wait 时长内执行 mDNS 浏览
func browse(ctx context.Context, m *capmesh.Mesh, wait time.Duration) {
	if wait <= 0 {
		return
	}
	bctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()
	found := m.Browse(bctx)
	log.Debug("浏览完成", "found", found)
}

// ============================================================================
//                              调用
// ============================================================================

func runCall(ctx context.Context, m *capmesh.Mesh, args []string) error {
	fs := flag.NewFlagSet("call", flag.ContinueOnError)
	preferNetwork := fs.Bool("network", false, "优先使用网络服务")
	direct := fs.Bool("direct", false, "不经过缓存")
	wait := fs.Duration("wait", 0, "解析前的浏览时长")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if fs.NArg() < 3 {
		return fmt.Errorf("%w: call needs <service> <verb> <argument>", errUsage)
	}
	name, verb, arg := fs.Arg(0), fs.Arg(1), fs.Arg(2)
	kwargs := parseKwargs(fs.Args()[3:])

	browse(ctx, m, *wait)

	var svc interfaces.Service
	if *direct {
		svc = m.ResolveDirect(ctx, name, *preferNetwork)
	} else {
		svc = m.Resolve(ctx, name, *preferNetwork)
	}
	if svc == nil {
		return fmt.Errorf("能力不可用: %s", name)
	}

	var (
		result any
		err    error
	)
	switch strings.ToLower(verb) {
	case "ask":
		result, err = svc.Ask(ctx, arg, kwargs)
	case "tell":
		var data any = kwargs
		if len(kwargs) == 0 {
			data = nil
		}
		result, err = svc.Tell(ctx, arg, data)
	case "do":
		result, err = svc.Do(ctx, arg, kwargs)
	default:
		return fmt.Errorf("%w: unknown verb %q", errUsage, verb)
	}
	if err != nil {
		return err
	}
	return printJSON(result)
}

// parseKwargs 解析 key=value 参数，值能按 JSON 解码时使用解码结果
func parseKwargs(pairs []string) map[string]any {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			out[k] = decoded
		} else {
			out[k] = v
		}
	}
	return out
}

// ============================================================================
//                              缓存
// ============================================================================

func runCache(_ context.Context, m *capmesh.Mesh, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: cache needs a subcommand", errUsage)
	}
	switch args[0] {
	case "stats":
		return printJSON(m.Cache().AllStats())
	case "clear":
		if len(args) > 1 {
			n := m.ClearServiceCache(args[1])
			fmt.Printf("已清除 %s 的 %d 条缓存\n", args[1], n)
			return nil
		}
		if err := m.Cache().ClearAll(); err != nil {
			return err
		}
		fmt.Println("已清除全部缓存")
		return nil
	case "clear-expired":
		fmt.Printf("已清理 %d 条过期缓存\n", m.ClearExpiredCache())
		return nil
	default:
		return fmt.Errorf("%w: unknown cache subcommand %q", errUsage, args[0])
	}
}

// ============================================================================
//                              暴露
// ============================================================================

func runServe(ctx context.Context, m *capmesh.Mesh, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	name := fs.String("name", "echo", "服务名")
	port := fs.Int("port", 0, "监听端口（0 = 随机端口）")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	echo := &echoService{}
	svc, err := m.Expose(ctx, *name, echo,
		capmesh.ExposePort(*port),
		capmesh.ExposeCapabilities("echo", "回显"))
	if err != nil {
		return fmt.Errorf("暴露失败: %w", err)
	}

	fmt.Printf("🌐 %s 已暴露: %s\n", *name, svc.URL())
	fmt.Println("按 Ctrl+C 退出")
	<-ctx.Done()

	fmt.Fprintf(os.Stderr, "\n正在关闭，共处理 %d 次调用\n", echo.Calls())
	return nil
}

// ============================================================================
//                              辅助函数
// ============================================================================

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func onOff(b bool) string {
	if b {
		return "开启"
	}
	return "关闭"
}
