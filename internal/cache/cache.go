package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/internal/util/logger"
)

var log = logger.Logger("cache")

// 指标中的层级标签
const (
	tierRAM        = "ram"
	tierPersistent = "persistent"
)

// Stats 缓存统计
//
// HitRate 为两层合计命中占全部查询的百分比，RAMHitRate 为内存层命中
// 占全部查询的百分比。
type Stats struct {
	RAMHits        int64   `json:"ram_hits"`
	RAMMisses      int64   `json:"ram_misses"`
	DBHits         int64   `json:"db_hits"`
	DBMisses       int64   `json:"db_misses"`
	TotalEntries   int64   `json:"total_entries"`
	ExpiredEntries int64   `json:"expired_entries"`
	RAMSize        int     `json:"ram_size"`
	TierErrors     int64   `json:"tier_errors"`
	Persistent     bool    `json:"persistent"`
	Degraded       bool    `json:"degraded"`
	HitRate        float64 `json:"hit_rate"`
	RAMHitRate     float64 `json:"ram_hit_rate"`
}

func (s *Stats) computeRates() {
	lookups := s.RAMHits + s.RAMMisses
	if lookups == 0 {
		s.HitRate, s.RAMHitRate = 0, 0
		return
	}
	s.HitRate = float64(s.RAMHits+s.DBHits) / float64(lookups) * 100
	s.RAMHitRate = float64(s.RAMHits) / float64(lookups) * 100
}

// Cache 两级缓存
type Cache struct {
	cfg     Config
	clock   clock.Clock
	backend Backend

	mu    sync.Mutex
	ram   ramTier
	stats Stats
	// gen 每次失效递增，持久层写入和内存层回填前据此判断期间是否发生过失效
	gen uint64

	degraded atomic.Bool

	closed  atomic.Bool
	started atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option 缓存选项
type Option func(*Cache)

// WithClock 设置时钟
func WithClock(c clock.Clock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithBackend 设置持久层，nil 表示仅内存
func WithBackend(b Backend) Option {
	return func(cc *Cache) { cc.backend = b }
}

// New 创建缓存
func New(cfg Config, opts ...Option) (*Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ram, err := newRAMTier(cfg.Eviction, cfg.MaxRAMEntries)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		cfg:    cfg,
		clock:  clock.New(),
		ram:    ram,
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Config 返回配置
func (c *Cache) Config() Config {
	return c.cfg
}

// Persistent 是否配置了持久层
func (c *Cache) Persistent() bool {
	return c.backend != nil
}

// ============================================================================
//                              读写
// ============================================================================

// Get 查询缓存
//
// 先查内存层，未命中再查持久层；持久层命中时按条目原有的过期时间回填内存层。
// 过期条目视为未命中并被删除。
//
// 返回值不做拷贝，调用方不得修改。内存层命中返回写入时的原值，持久层命中
// 返回 JSON 解码结果（数字为 float64，*types.Response 按原类型还原）。
func (c *Cache) Get(call Call) (any, bool) {
	key := call.Key()
	now := c.clock.Now()

	c.mu.Lock()
	if e, ok := c.ram.Get(key); ok {
		if !e.expired(now) {
			e.hits++
			c.stats.RAMHits++
			c.mu.Unlock()
			metrics.RecordCacheLookup(tierRAM, true)
			return e.value, true
		}
		c.ram.Remove(key)
		c.stats.ExpiredEntries++
	}
	c.stats.RAMMisses++
	gen := c.gen
	c.mu.Unlock()
	metrics.RecordCacheLookup(tierRAM, false)

	if c.backend == nil {
		return nil, false
	}

	v, e, ok := c.getPersistent(key, now)
	if ok && !c.settle(key, gen) {
		ok = false
	}
	metrics.RecordCacheLookup(tierPersistent, ok)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !ok {
		c.stats.DBMisses++
		return nil, false
	}
	c.stats.DBHits++
	if c.gen == gen {
		c.ram.Add(key, &ramEntry{
			service:   e.Service,
			method:    e.Method,
			value:     v,
			createdAt: e.CreatedAt,
			expiresAt: e.ExpiresAt,
		})
	}
	return v, true
}

// settle 在持久层写入后确认期间没有发生失效
//
// 失效先递增 gen 再删除持久条目，因此写入后 gen 未变时，之后的失效必然
// 晚于这次写入；gen 已变时删除刚写入的条目并返回 false。
func (c *Cache) settle(key string, gen uint64) bool {
	c.mu.Lock()
	moved := c.gen != gen
	c.mu.Unlock()
	if !moved {
		return true
	}
	if err := c.backend.Delete(key); err != nil {
		c.tierError("delete", err)
	}
	return false
}

// Set 写入缓存（write-through）
//
// ttl <= 0 时使用默认 TTL。先写内存层再写持久层，持久层失败只记录日志。
// 写入期间发生失效时撤回持久条目。
func (c *Cache) Set(call Call, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	key := call.Key()
	now := c.clock.Now()
	expires := now.Add(ttl)

	c.mu.Lock()
	c.ram.Add(key, &ramEntry{
		service:   call.Service,
		method:    call.Method,
		value:     value,
		createdAt: now,
		expiresAt: expires,
	})
	gen := c.gen
	c.mu.Unlock()

	if c.backend == nil {
		return
	}
	raw, kind := encodeValue(value)
	err := c.backend.Put(&Entry{
		Key:          key,
		Service:      call.Service,
		Method:       call.Method,
		Kind:         kind,
		Value:        raw,
		CreatedAt:    now,
		ExpiresAt:    expires,
		LastAccessed: now,
	})
	if err != nil {
		c.tierError("put", err)
		return
	}
	c.tierOK()
	c.settle(key, gen)
}

// ============================================================================
//                              失效与清理
// ============================================================================

// Invalidate 删除单个调用的缓存
func (c *Cache) Invalidate(call Call) {
	key := call.Key()

	c.mu.Lock()
	c.gen++
	c.ram.Remove(key)
	c.mu.Unlock()

	if c.backend != nil {
		if err := c.backend.Delete(key); err != nil {
			c.tierError("delete", err)
		}
	}
	metrics.RecordCacheInvalidation("key", 1)
}

// InvalidateService 删除服务的全部缓存，返回删除的条目数（两层中较大者）
func (c *Cache) InvalidateService(service string) int {
	c.mu.Lock()
	c.gen++
	ramRemoved := 0
	for _, key := range c.ram.Keys() {
		if e, ok := c.ram.Peek(key); ok && e.service == service {
			c.ram.Remove(key)
			ramRemoved++
		}
	}
	c.mu.Unlock()

	removed := ramRemoved
	if c.backend != nil {
		n, err := c.backend.DeleteService(service)
		if err != nil {
			c.tierError("delete_service", err)
		} else if n > removed {
			removed = n
		}
	}
	metrics.RecordCacheInvalidation("service", removed)
	log.Debug("服务缓存已失效", "service", service, "removed", removed)
	return removed
}

// ClearExpired 删除两层中的过期条目，返回删除数（两层中较大者）
func (c *Cache) ClearExpired() int {
	now := c.clock.Now()

	c.mu.Lock()
	ramRemoved := 0
	for _, key := range c.ram.Keys() {
		if e, ok := c.ram.Peek(key); ok && e.expired(now) {
			c.ram.Remove(key)
			ramRemoved++
		}
	}
	c.mu.Unlock()

	removed := ramRemoved
	if c.backend != nil {
		keys, err := c.backend.ScanExpired(now)
		if err != nil {
			c.tierError("scan_expired", err)
		}
		dbRemoved := 0
		for _, key := range keys {
			if err := c.backend.Delete(key); err != nil {
				c.tierError("delete", err)
				continue
			}
			dbRemoved++
		}
		if dbRemoved > removed {
			removed = dbRemoved
		}
	}

	c.mu.Lock()
	c.stats.ExpiredEntries += int64(removed)
	c.mu.Unlock()

	metrics.RecordCacheInvalidation("expired", removed)
	if removed > 0 {
		log.Info("已清理过期缓存", "removed", removed)
	}
	return removed
}

// Clear 清空两层
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.gen++
	n := c.ram.Len()
	c.ram.Purge()
	c.mu.Unlock()

	metrics.RecordCacheInvalidation("all", n)
	if c.backend == nil {
		return nil
	}
	if err := c.backend.Clear(); err != nil {
		c.tierError("clear", err)
		return err
	}
	return nil
}

// ============================================================================
//                              统计
// ============================================================================

// Len 返回内存层条目数
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ram.Len()
}

// Stats 返回统计快照
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := c.stats
	s.RAMSize = c.ram.Len()
	c.mu.Unlock()

	s.Persistent = c.backend != nil
	if c.backend != nil {
		if n, err := c.backend.Count(); err == nil {
			s.TotalEntries = n
		} else {
			c.tierError("count", err)
		}
	} else {
		s.TotalEntries = int64(s.RAMSize)
	}
	s.Degraded = c.degraded.Load()
	s.computeRates()
	return s
}

// ResetStats 清零统计
func (c *Cache) ResetStats() {
	c.mu.Lock()
	c.stats = Stats{}
	c.mu.Unlock()
}

// tierError 记录持久层错误，首次进入降级状态时输出警告
func (c *Cache) tierError(op string, err error) {
	metrics.RecordCacheTierError(op)
	c.mu.Lock()
	c.stats.TierErrors++
	c.mu.Unlock()
	if c.degraded.CompareAndSwap(false, true) {
		log.Warn("持久缓存层不可用，降级为仅内存", "op", op, "error", err)
		return
	}
	log.Debug("持久缓存层操作失败", "op", op, "error", err)
}

func (c *Cache) tierOK() {
	if c.degraded.CompareAndSwap(true, false) {
		log.Info("持久缓存层已恢复")
	}
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动后台过期清理
func (c *Cache) Start(_ context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if c.cfg.SweepInterval <= 0 || !c.started.CompareAndSwap(false, true) {
		return nil
	}
	c.wg.Add(1)
	go c.sweepLoop()
	return nil
}

func (c *Cache) sweepLoop() {
	defer c.wg.Done()
	ticker := c.clock.Ticker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.ClearExpired()
		}
	}
}

// Close 停止后台清理
//
// 持久层由存储模块负责关闭。
func (c *Cache) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.cancel()
	c.wg.Wait()
	return nil
}
