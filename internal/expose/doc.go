// Package expose 把本地服务实例暴露为 HTTP 服务
//
// 每个暴露的服务独占一个端口，运行独立的 http.Server：
//
//   - GET  /              - 服务元数据
//   - POST /ask           - ask(query, kwargs)
//   - POST /tell          - tell(format, data)
//   - POST /do            - do(action, kwargs)
//   - POST /call/{method} - 反射调用导出方法
//   - GET  /metrics       - Prometheus 指标（可选）
//
// 所有调用错误与 panic 都以 200 状态码和 success=false 的
// types.Response 返回，与 remote.Proxy 的期望一致。
package expose
