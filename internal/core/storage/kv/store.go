package kv

import (
	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
)

// Store 带前缀的 KV 存储
//
// 所有键在写入引擎前自动加上前缀，读出时去掉前缀。
type Store struct {
	engine engine.Engine
	prefix []byte
}

// New 创建 KV 存储
func New(eng engine.Engine, prefix []byte) *Store {
	return &Store{
		engine: eng,
		prefix: append([]byte(nil), prefix...),
	}
}

func (s *Store) prefixKey(key []byte) []byte {
	prefixed := make([]byte, len(s.prefix)+len(key))
	copy(prefixed, s.prefix)
	copy(prefixed[len(s.prefix):], key)
	return prefixed
}

func (s *Store) stripPrefix(key []byte) []byte {
	if len(key) < len(s.prefix) {
		return key
	}
	return key[len(s.prefix):]
}

// ============================================================================
//                              基础操作
// ============================================================================

// Get 获取值
func (s *Store) Get(key []byte) ([]byte, error) {
	return s.engine.Get(s.prefixKey(key))
}

// Put 设置值
func (s *Store) Put(key, value []byte) error {
	return s.engine.Put(s.prefixKey(key), value)
}

// Delete 删除键
func (s *Store) Delete(key []byte) error {
	return s.engine.Delete(s.prefixKey(key))
}

// Has 检查键是否存在
func (s *Store) Has(key []byte) (bool, error) {
	return s.engine.Has(s.prefixKey(key))
}

// ============================================================================
//                              扫描
// ============================================================================

// PrefixScan 按子前缀遍历，fn 返回 false 时停止
//
// 回调中的 key 已去掉 Store 前缀。
func (s *Store) PrefixScan(subPrefix []byte, fn func(key, value []byte) bool) error {
	it := s.engine.NewPrefixIterator(s.prefixKey(subPrefix))
	defer it.Close()

	for it.First(); it.Valid(); it.Next() {
		if !fn(s.stripPrefix(it.Key()), it.Value()) {
			break
		}
	}
	return it.Error()
}

// Keys 返回子前缀下的所有键
func (s *Store) Keys(subPrefix []byte) ([][]byte, error) {
	var keys [][]byte
	err := s.PrefixScan(subPrefix, func(key, _ []byte) bool {
		keys = append(keys, key)
		return true
	})
	return keys, err
}

// Count 统计子前缀下的键数量
func (s *Store) Count(subPrefix []byte) (int64, error) {
	var count int64
	err := s.PrefixScan(subPrefix, func(_, _ []byte) bool {
		count++
		return true
	})
	return count, err
}

// DeletePrefix 删除子前缀下的所有键，返回删除数量
func (s *Store) DeletePrefix(subPrefix []byte) (int, error) {
	keys, err := s.Keys(subPrefix)
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	b := s.NewBatch()
	for _, key := range keys {
		b.Delete(key)
	}
	if err := b.Write(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// ============================================================================
//                              批量写
// ============================================================================

// Batch 带前缀的批量写
type Batch struct {
	store *Store
	batch engine.Batch
}

// NewBatch 创建批量写
func (s *Store) NewBatch() *Batch {
	return &Batch{store: s, batch: s.engine.NewBatch()}
}

// Put 添加写入
func (b *Batch) Put(key, value []byte) {
	b.batch.Put(b.store.prefixKey(key), value)
}

// Delete 添加删除
func (b *Batch) Delete(key []byte) {
	b.batch.Delete(b.store.prefixKey(key))
}

// In 返回共享同一提交的批量写，后续操作使用 s 的前缀
//
// s 必须与创建批量写的存储共享引擎。
func (b *Batch) In(s *Store) *Batch {
	return &Batch{store: s, batch: b.batch}
}

// Write 提交
func (b *Batch) Write() error {
	return b.batch.Write()
}

// Size 待提交操作数
func (b *Batch) Size() int {
	return b.batch.Size()
}

// ============================================================================
//                              工具方法
// ============================================================================

// SubStore 创建子存储，前缀为当前前缀加 subPrefix
func (s *Store) SubStore(subPrefix []byte) *Store {
	return New(s.engine, s.prefixKey(subPrefix))
}
