// Package cache 实现两级（内存 + 持久）结果缓存
//
// 读路径：内存层命中直接返回；未命中时查持久层，命中后回填内存层。
// 写路径：先写内存层再写持久层（write-through）。
//
// 内存层是一个受单个互斥锁保护的 LRU（LRU 的读也会修改内部顺序）。
// 持久层通过 Backend 接口抽象，默认实现基于 badger 的带前缀 KV 存储。
// 持久层出错时缓存降级为仅内存，只记录日志和统计，不会让调用失败。
//
// 过期条目在读取时按未命中处理并惰性删除，ClearExpired 和后台清理
// 负责主动回收。
package cache
