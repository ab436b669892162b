// Package remote 实现远程服务代理
//
// Proxy 把三动词调用转换为对 http://host:port/{verb} 的 JSON POST。
// 任何网络错误（超时、连接被拒绝、非 2xx 状态、响应无法解析）
// 都被转换为 Success=false 的 *types.Response 返回，Proxy 的方法
// 从不返回非 nil error。
//
// 超时后请求被放弃，远端的计算不会被取消。
package remote
