package cache

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/dep2p/go-capmesh/internal/core/storage"
	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
	"github.com/dep2p/go-capmesh/internal/core/storage/kv"
)

// Backend 持久层接口
//
// 实现必须并发安全。同一键的并发写入以最后一次为准。
type Backend interface {
	// Put 写入条目
	Put(e *Entry) error

	// Get 读取条目，不存在时返回 ErrMiss
	Get(key string) (*Entry, error)

	// Delete 删除条目，不存在不报错
	Delete(key string) error

	// DeleteService 删除服务的全部条目，返回删除数量
	DeleteService(service string) (int, error)

	// ScanExpired 返回在 now 时刻已过期的键
	ScanExpired(now time.Time) ([]string, error)

	// Count 返回条目数量
	Count() (int64, error)

	// Clear 删除全部条目
	Clear() error
}

// ============================================================================
//                              条目编码
// ============================================================================

// compressThreshold 超过该长度的条目 JSON 以 zstd 压缩后写入
const compressThreshold = 512

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	zstdEncoder = mustEncoder()
	zstdDecoder = mustDecoder()
)

func mustEncoder() *zstd.Encoder {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		panic(err)
	}
	return enc
}

func mustDecoder() *zstd.Decoder {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
	return dec
}

// encodeEntry 序列化条目，大条目压缩
func encodeEntry(e *Entry) ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	if len(data) <= compressThreshold {
		return data, nil
	}
	return zstdEncoder.EncodeAll(data, make([]byte, 0, len(data)/2)), nil
}

// decodeEntry 反序列化条目，兼容未压缩的 JSON
func decodeEntry(data []byte) (*Entry, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		raw, err := zstdDecoder.DecodeAll(data, nil)
		if err != nil {
			return nil, err
		}
		data = raw
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// ============================================================================
//                              KV 实现
// ============================================================================

// 键布局（相对 store 前缀）
//
//	e/<key>                   -> Entry JSON（超过阈值时 zstd 压缩）
//	s/<service>\x00<key>      -> 空值（服务索引）
var (
	entryPrefix   = []byte("e/")
	servicePrefix = []byte("s/")
)

// KVBackend 基于带前缀 KV 存储的持久层
type KVBackend struct {
	entries *kv.Store
	index   *kv.Store
}

var _ Backend = (*KVBackend)(nil)

// NewKVBackend 在 store 上创建持久层
func NewKVBackend(store *kv.Store) *KVBackend {
	return &KVBackend{
		entries: store.SubStore(entryPrefix),
		index:   store.SubStore(servicePrefix),
	}
}

// NewEngineBackend 在存储引擎的 "cache/" 前缀下创建持久层
func NewEngineBackend(eng engine.Engine) *KVBackend {
	return NewKVBackend(storage.NewKVStore(eng, []byte("cache/")))
}

func serviceIndexPrefix(service string) []byte {
	return append([]byte(service), 0)
}

func serviceIndexKey(service, key string) []byte {
	return append(serviceIndexPrefix(service), key...)
}

// Put 写入条目及服务索引
func (b *KVBackend) Put(e *Entry) error {
	data, err := encodeEntry(e)
	if err != nil {
		return err
	}
	batch := b.entries.NewBatch()
	batch.Put([]byte(e.Key), data)
	batch.In(b.index).Put(serviceIndexKey(e.Service, e.Key), nil)
	return batch.Write()
}

// Get 读取条目
func (b *KVBackend) Get(key string) (*Entry, error) {
	data, err := b.entries.Get([]byte(key))
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrMiss
		}
		return nil, err
	}
	return decodeEntry(data)
}

// Delete 删除条目及服务索引
func (b *KVBackend) Delete(key string) error {
	e, err := b.Get(key)
	if errors.Is(err, ErrMiss) {
		return nil
	}
	if err != nil {
		// 条目损坏时索引无法定位，只删除条目本身
		return b.entries.Delete([]byte(key))
	}
	batch := b.entries.NewBatch()
	batch.Delete([]byte(key))
	batch.In(b.index).Delete(serviceIndexKey(e.Service, key))
	return batch.Write()
}

// DeleteService 按服务索引删除条目
func (b *KVBackend) DeleteService(service string) (int, error) {
	prefix := serviceIndexPrefix(service)
	idx, err := b.index.Keys(prefix)
	if err != nil {
		return 0, err
	}
	if len(idx) == 0 {
		return 0, nil
	}

	batch := b.entries.NewBatch()
	index := batch.In(b.index)
	for _, k := range idx {
		batch.Delete(bytes.TrimPrefix(k, prefix))
		index.Delete(k)
	}
	if err := batch.Write(); err != nil {
		return 0, err
	}
	return len(idx), nil
}

// ScanExpired 遍历全部条目，返回已过期的键
//
// 无法解析的条目也视为过期。
func (b *KVBackend) ScanExpired(now time.Time) ([]string, error) {
	var expired []string
	err := b.entries.PrefixScan(nil, func(k, v []byte) bool {
		e, err := decodeEntry(v)
		if err != nil || e.Expired(now) {
			expired = append(expired, string(k))
		}
		return true
	})
	return expired, err
}

// Count 返回条目数量
func (b *KVBackend) Count() (int64, error) {
	return b.entries.Count(nil)
}

// Clear 删除全部条目和索引
func (b *KVBackend) Clear() error {
	if _, err := b.entries.DeletePrefix(nil); err != nil {
		return err
	}
	_, err := b.index.DeletePrefix(nil)
	return err
}
