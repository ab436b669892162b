package engine

// Engine 存储引擎接口
//
// 所有方法并发安全。Get 返回值的副本，调用者可以安全修改。
type Engine interface {
	// Get 获取指定键的值，不存在时返回 ErrNotFound
	Get(key []byte) ([]byte, error)

	// Put 设置键值对，已存在时覆盖
	Put(key, value []byte) error

	// Delete 删除指定键，键不存在不报错
	Delete(key []byte) error

	// Has 检查键是否存在
	Has(key []byte) (bool, error)

	// NewBatch 创建批量写
	NewBatch() Batch

	// NewPrefixIterator 创建前缀迭代器，使用完必须 Close
	NewPrefixIterator(prefix []byte) Iterator

	// Start 启动后台任务（值日志 GC）
	Start() error

	// Sync 同步数据到磁盘
	Sync() error

	// Close 关闭引擎，可重复调用
	Close() error
}

// Batch 批量写
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Write 提交所有操作
	Write() error

	// Size 待提交的操作数
	Size() int
}

// Iterator 前缀迭代器
//
//	it := eng.NewPrefixIterator(prefix)
//	defer it.Close()
//	for it.First(); it.Valid(); it.Next() {
//	    use(it.Key(), it.Value())
//	}
//	return it.Error()
type Iterator interface {
	First() bool
	Next() bool
	Valid() bool
	Key() []byte
	Value() []byte
	Close()
	Error() error
}
