// Package metrics 提供流量统计与 Prometheus 指标
//
// 两部分互相独立：
//
//   - TrafficCounter 按服务统计远程调用与网络暴露的收发字节数及
//     最近 60 秒的平均速率，供 CLI 和服务 stats 动作读取
//   - prom.go 中的 Prometheus 指标（缓存命中、代理请求、暴露服务
//     请求、定位结果），通过 Handler() 以 /metrics 形式输出
//
// # 快速开始
//
//	counter := metrics.NewTrafficCounter()
//	counter.LogSent("database", 128)
//	counter.LogRecv("database", 2048)
//
//	stats := counter.ForService("database")
//	fmt.Printf("In: %d, Out: %d\n", stats.TotalIn, stats.TotalOut)
//
// Prometheus 指标在第一次记录时注册到默认注册表。
package metrics
