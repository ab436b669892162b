// Package interfaces 定义 capmesh 的公共服务接口
//
// 本地构建的实例、远程代理和缓存包装器都实现 Service，调用方无需
// 关心句柄来自哪一条路径：
//
//   - Asker  - 只读查询 ask(query, kwargs)
//   - Teller - 格式化输出 tell(format, data)
//   - Doer   - 有副作用的动作 do(action, kwargs)
//   - Caller - 任意方法名调用，远程代理与缓存包装器实现
package interfaces
