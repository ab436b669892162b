// Package main 提供 capmesh 命令行入口
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dep2p/go-capmesh"
	"github.com/dep2p/go-capmesh/config"
	"github.com/dep2p/go-capmesh/internal/util/logger"
)

var log = logger.Logger("capmesh/cmd")

// ═══════════════════════════════════════════════════════════════════════════
// 全局参数
// ═══════════════════════════════════════════════════════════════════════════
//
//   命令行参数：本次运行的覆盖
//   JSON 配置文件：长期固定的配置
//   环境变量（CAPMESH_ 前缀）：介于两者之间
//
// ═══════════════════════════════════════════════════════════════════════════
var (
	configFile = flag.String("config", "", "配置文件路径")
	preset     = flag.String("preset", "", "预设配置 (local/server)")
	dataDir    = flag.String("data-dir", "", "数据目录（默认: ./data）")
	enableMDNS = flag.Bool("mdns", true, "启用 mDNS 网络发现")
	logLevel   = flag.String("log-level", "", "日志级别，例如 \"cache=debug,warn\"")

	showVersion = flag.Bool("version", false, "显示版本信息")
	showHelp    = flag.Bool("help", false, "显示帮助信息")
)

// errUsage 参数错误，打印帮助后以非零状态退出
var errUsage = errors.New("invalid usage")

func main() {
	if err := run(); err != nil {
		if errors.Is(err, errUsage) {
			printHelp()
		}
		fmt.Fprintf(os.Stderr, "错误: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flag.Usage = printHelp
	flag.Parse()

	if *showVersion {
		fmt.Println(capmesh.VersionInfo())
		return nil
	}
	if *showHelp || flag.NArg() == 0 {
		printHelp()
		return nil
	}

	cmd, ok := commands[flag.Arg(0)]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, flag.Arg(0))
	}

	opts, err := buildOptions()
	if err != nil {
		return fmt.Errorf("配置错误: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mesh, err := capmesh.Start(ctx, opts...)
	if err != nil {
		return fmt.Errorf("启动失败: %w", err)
	}
	defer func() {
		if err := mesh.Close(); err != nil {
			log.Warn("关闭失败", "error", err)
		}
	}()

	return cmd.run(ctx, mesh, flag.Args()[1:])
}

// buildOptions 构建选项
//
// 配置优先级（从高到低）：
//  1. 命令行参数
//  2. 环境变量（CAPMESH_* 前缀）
//  3. 配置文件
//  4. 默认值
func buildOptions() ([]capmesh.Option, error) {
	cfg := config.NewConfig()
	if *configFile != "" {
		loaded, err := config.LoadFile(*configFile)
		if err != nil {
			return nil, fmt.Errorf("加载配置文件失败: %w", err)
		}
		cfg = loaded
	}

	presetName := applyEnvOverrides(cfg)
	if isFlagSet("preset") {
		presetName = *preset
	}
	if isFlagSet("log-level") {
		cfg.Log.Level = *logLevel
	}

	opts := []capmesh.Option{
		capmesh.WithConfig(cfg),
		capmesh.WithCapability(echoCapability()),
	}
	if presetName != "" {
		opts = append(opts, capmesh.WithPreset(presetName))
	}
	if isFlagSet("data-dir") {
		opts = append(opts, capmesh.WithDataDir(*dataDir))
	}
	if isFlagSet("mdns") {
		opts = append(opts, capmesh.WithMDNS(*enableMDNS))
	}
	return opts, nil
}

// isFlagSet 检查参数是否在命令行显式设置
func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `capmesh - 能力定位与缓存

用法:
  capmesh [全局参数] <命令> [参数]

命令:
  status                         显示配置、能力与缓存概况
  list                           列出已注册能力与已发现服务
  discover [-wait 2s]            浏览网络并显示发现视图
  call [-network] <服务> <ask|tell|do> <参数> [key=value...]
                                 解析能力并调用
  health [-wait 2s]              探测网络中每个服务
  cache stats|clear [服务]|clear-expired
                                 查看或清理缓存
  serve [-name echo] [-port 0]   暴露回显服务，直到 Ctrl+C

全局参数:
`)
	flag.PrintDefaults()
}
