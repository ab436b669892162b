// Package types 定义 capmesh 的公共数据结构
//
// 这是整个系统的最底层包，不依赖任何其他 capmesh 内部包。
// 所有类型都是纯值类型，用于在各模块间以及进程间传递数据。
//
// # 文件组织
//
//   - announcement.go - ServiceAnnouncement 服务宣告, Source 宣告来源
//   - wire.go         - Request/Response HTTP 线格式, ask/tell/do 动词
//   - policy.go       - CachePolicy 每个方法的缓存策略
//
// # 线格式
//
// 暴露的服务与远程代理之间使用 JSON：
//
//	POST /ask  {"query": "SELECT 1", "kwargs": {"limit": 10}}
//	200        {"result": ..., "success": true, "error": null,
//	            "service_name": "db", "method": "ask"}
//
// 调用失败同样返回 200，Success 为 false，Error 为错误信息。
//
// # 使用示例
//
//	ann := types.ServiceAnnouncement{
//	    Name:         "database",
//	    Capabilities: []string{"ask() - query rows"},
//	    Host:         "127.0.0.1",
//	    Port:         8080,
//	    Source:       types.SourceNetwork,
//	}
//	if ann.HasCapability("query") {
//	    fmt.Println(ann.Addr())
//	}
package types
