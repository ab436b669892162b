// Package capmesh 按能力名定位服务，并为调用加上两级缓存
//
// capmesh 让调用方只通过能力名（如 "database"）获取服务句柄，不关心
// 实现位于本进程还是网络上的另一个进程。
//
// # 核心概念
//
//   - Capability: 能力，名称加本地构建方法
//   - Locator: 把能力名解析为句柄（本地实例或远程代理），结果被记忆
//   - 三动词契约: ask(query) / tell(format, data) / do(action)
//   - Hybrid Cache: 内存 LRU 层加 BadgerDB 持久层，按 (服务, 方法, 参数) 缓存结果
//
// # 快速开始
//
//	mesh, err := capmesh.Start(ctx,
//	    capmesh.WithDataDir("./data"),
//	    capmesh.WithCapability(capmesh.Capability{
//	        Name:   "database",
//	        Recipe: func(ctx context.Context) (interfaces.Service, error) { return db.Open(ctx) },
//	    }),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer mesh.Close()
//
//	db := mesh.Resolve(ctx, "database", false)
//	if db == nil {
//	    // 能力不可用
//	}
//	rows, err := db.Ask(ctx, "list players", nil)
//
// # 网络暴露
//
// 任意实现了三动词（或其中一部分）的实例都可以通过 HTTP 暴露，并经 mDNS
// 宣告给同一网段的其他进程：
//
//	svc, err := mesh.Expose(ctx, "TestSvc", &echo{}, capmesh.ExposePort(9001))
//
// 其他进程 Resolve("TestSvc", true) 得到的远程代理与本地实例的调用方式一致；
// 网络失败以 Success=false 的 *types.Response 返回，而不是 error。
//
// # 配置
//
// 使用 WithConfig 或 WithConfigFile 传入 config.Config；日志级别由
// CAPMESH_LOG_LEVEL 环境变量控制，格式见 internal/util/logger。
package capmesh
