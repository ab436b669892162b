// Package locator 按能力名解析服务句柄
//
// Locator 按优先级依次尝试：
//   - 优先级 1: 进程内记忆表（按能力名与网络偏好）
//   - 优先级 2: 能力注册表中的本地构建方法
//   - 优先级 3: 网络发现（mDNS 宣告，精确名称后能力匹配），包装为远程代理
//
// preferNetwork 为 true 时交换 2 与 3 的顺序。解析成功的句柄按配置
// 经过缓存包装器；解析失败返回 nil，从不返回错误。
//
// 本地构建前先查询跨进程指针表：若另一个存活进程已托管该能力，
// 跳过本地构建直接走网络路径。
package locator
