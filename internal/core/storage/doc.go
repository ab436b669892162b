// Package storage 提供持久化存储服务
//
// 基于 BadgerDB，为两级缓存的持久层提供键值存储。
//
//	┌──────────────────────────────────────────┐
//	│   cache（持久层 Backend）                 │
//	└──────────────────────────────────────────┘
//	                    │
//	                    ▼
//	┌──────────────────────────────────────────┐
//	│   kv.Store       带前缀隔离的 KV          │
//	│   engine/badger  BadgerDB 实现            │
//	└──────────────────────────────────────────┘
//
// # 键空间
//
//	前缀        | 使用方   | 说明
//	------------|----------|------------------
//	cache/e/    | cache    | 缓存条目
//
// BadgerDB 对数据目录加排他锁，同一目录只能被一个进程打开。
// 打开失败时模块提供不可用引擎，缓存随之降级为仅内存。
//
// # 使用示例
//
//	app := fx.New(
//	    fx.Supply(cfg),
//	    storage.Module(),
//	)
package storage
