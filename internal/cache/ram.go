package cache

import (
	"fmt"

	arc "github.com/hashicorp/golang-lru/arc/v2"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// 内存层淘汰策略
const (
	EvictionLRU = "lru"
	EvictionARC = "arc"
)

// ramTier 内存层，调用方持有 Cache.mu
type ramTier interface {
	Add(key string, e *ramEntry) bool
	Get(key string) (*ramEntry, bool)
	Peek(key string) (*ramEntry, bool)
	Remove(key string) bool
	Keys() []string
	Len() int
	Purge()
}

// arcTier 把 ARC 的方法签名对齐到 ramTier
type arcTier struct {
	*arc.ARCCache[string, *ramEntry]
	size int
}

// Add 写入条目，返回是否因容量淘汰了其他条目
func (t arcTier) Add(key string, e *ramEntry) bool {
	evict := t.ARCCache.Len() >= t.size && !t.ARCCache.Contains(key)
	t.ARCCache.Add(key, e)
	return evict
}

func (t arcTier) Remove(key string) bool {
	ok := t.ARCCache.Contains(key)
	t.ARCCache.Remove(key)
	return ok
}

func newRAMTier(policy string, size int) (ramTier, error) {
	switch policy {
	case "", EvictionLRU:
		c, err := simplelru.NewLRU[string, *ramEntry](size, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	case EvictionARC:
		c, err := arc.NewARC[string, *ramEntry](size)
		if err != nil {
			return nil, err
		}
		return arcTier{ARCCache: c, size: size}, nil
	default:
		return nil, fmt.Errorf("cache: unknown eviction policy %q", policy)
	}
}
