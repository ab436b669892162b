// Package kv 在 Engine 之上提供带前缀隔离的键值存储
//
// 不同使用方共享同一个引擎，通过前缀划分键空间：
//
//	store := kv.New(eng, []byte("cache/"))
//	entries := store.SubStore([]byte("e/"))
//	index := store.SubStore([]byte("s/"))
//
//	b := entries.NewBatch()
//	b.Put(key, data)
//	b.In(index).Put(indexKey, nil)
//	err := b.Write()
package kv
