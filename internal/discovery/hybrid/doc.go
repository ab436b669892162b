// Package hybrid 把宣告路由到进程内注册表或 mDNS 网络
//
// 有端口的服务必然走网络；其余按 ClassifyRoute 的关键字规则判断，
// 规则是确定的，可以用 Explain 查看命中原因。调用方也可以显式
// 指定 RouteLocal 或 RouteNetwork 跳过推断。
package hybrid
