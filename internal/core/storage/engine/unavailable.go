package engine

import (
	"errors"
	"fmt"
)

// Unavailable 返回一个所有操作都失败的引擎
//
// 数据库无法打开时（例如目录已被其他进程锁定）用它代替真实引擎，
// 使用方据此降级而不是中止启动。
func Unavailable(cause error) Engine {
	return unavailable{err: fmt.Errorf("%w: %v", ErrUnavailable, cause)}
}

type unavailable struct {
	err error
}

func (u unavailable) Get([]byte) ([]byte, error) { return nil, u.err }
func (u unavailable) Put(_, _ []byte) error      { return u.err }
func (u unavailable) Delete([]byte) error        { return u.err }
func (u unavailable) Has([]byte) (bool, error)   { return false, u.err }
func (u unavailable) NewBatch() Batch            { return unavailableBatch(u) }
func (u unavailable) Start() error               { return nil }
func (u unavailable) Sync() error                { return u.err }
func (u unavailable) Close() error               { return nil }

func (u unavailable) NewPrefixIterator([]byte) Iterator {
	return unavailableIterator(u)
}

type unavailableBatch unavailable

func (unavailableBatch) Put(_, _ []byte) {}
func (unavailableBatch) Delete([]byte)   {}
func (b unavailableBatch) Write() error  { return b.err }
func (unavailableBatch) Size() int       { return 0 }

type unavailableIterator unavailable

func (unavailableIterator) First() bool    { return false }
func (unavailableIterator) Next() bool     { return false }
func (unavailableIterator) Valid() bool    { return false }
func (unavailableIterator) Key() []byte    { return nil }
func (unavailableIterator) Value() []byte  { return nil }
func (unavailableIterator) Close()         {}
func (i unavailableIterator) Error() error { return i.err }

// IsUnavailable 检查是否为引擎不可用错误
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}
