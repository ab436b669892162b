// Package mdns 实现基于 mDNS 的网络服务宣告与发现
//
// # 宣告
//
// Announce 立即返回，注册在后台进行，名称冲突等失败按
// MaxRetries 次有限重试，第 n 次重试前等待 RetryBackoff*n。
// 同名重复宣告是空操作。本进程的宣告在调用返回时即可从
// DiscoverAll 查到。
//
// # TXT 记录
//
// 每条宣告附带以下 TXT 属性：
//
//	name=<服务名>
//	capabilities=<能力列表，以 "," 连接>
//	examples=<示例列表，以 "|" 连接>
//	type=capmesh
//	version=1.0
//	id=<实例 ID>
//
// 超过 200 字节的值截断为前 200 字节加 "..."，键最长 63 字节，
// 单条记录最长 255 字节。调用方不能假设长能力描述被完整传递。
//
// # 发现
//
// 浏览循环按 QueryInterval 周期查询，结果按服务名去重累积。
// 发现的记录没有过期时间，只有 Forget 会移除它们。
package mdns
