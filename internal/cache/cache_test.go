package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
	"github.com/dep2p/go-capmesh/pkg/types"
)

func askCall(service, query string) Call {
	return Call{Service: service, Method: "ask", Args: []any{query}}
}

// ============= 内存层 =============

func TestCache_SetGet(t *testing.T) {
	c := newRAMCache(t, newMock())

	_, ok := c.Get(askCall("db", "q"))
	assert.False(t, ok)

	c.Set(askCall("db", "q"), "result", 0)
	v, ok := c.Get(askCall("db", "q"))
	require.True(t, ok)
	assert.Equal(t, "result", v)

	st := c.Stats()
	assert.EqualValues(t, 1, st.RAMHits)
	assert.EqualValues(t, 1, st.RAMMisses)
	assert.Equal(t, 1, st.RAMSize)
	assert.InDelta(t, 50.0, st.HitRate, 0.001)
	assert.False(t, st.Persistent)
}

func TestCache_TTL(t *testing.T) {
	mock := newMock()
	c := newRAMCache(t, mock)

	c.Set(askCall("db", "query1"), "result1", time.Second)

	mock.Add(500 * time.Millisecond)
	v, ok := c.Get(askCall("db", "query1"))
	require.True(t, ok, "过期前必须命中")
	assert.Equal(t, "result1", v)

	mock.Add(2 * time.Second)
	_, ok = c.Get(askCall("db", "query1"))
	assert.False(t, ok, "过期后必须未命中")
	assert.Equal(t, 0, c.Len(), "过期条目被惰性删除")
	assert.EqualValues(t, 1, c.Stats().ExpiredEntries)
}

func TestCache_DefaultTTL(t *testing.T) {
	mock := newMock()
	c := newRAMCache(t, mock)

	c.Set(askCall("db", "q"), "v", 0)
	mock.Add(time.Hour - time.Second)
	_, ok := c.Get(askCall("db", "q"))
	assert.True(t, ok)

	mock.Add(time.Second)
	_, ok = c.Get(askCall("db", "q"))
	assert.False(t, ok)
}

func TestCache_KwargsOrderInvariance(t *testing.T) {
	c := newRAMCache(t, newMock())

	set := map[string]any{"a": 1, "b": 2}
	get := map[string]any{"b": 2, "a": 1}
	c.Set(Call{Service: "svc", Method: "ask", Kwargs: set}, "v", 0)

	v, ok := c.Get(Call{Service: "svc", Method: "ask", Kwargs: get})
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestCache_InvalidateService(t *testing.T) {
	c := newRAMCache(t, newMock())

	c.Set(askCall("db", "q1"), 1, 0)
	c.Set(askCall("db", "q2"), 2, 0)
	c.Set(Call{Service: "db", Method: "tell", Args: []any{"json", nil}}, "x", 0)
	c.Set(askCall("other", "q1"), 3, 0)

	assert.Equal(t, 3, c.InvalidateService("db"))

	for _, call := range []Call{askCall("db", "q1"), askCall("db", "q2"), {Service: "db", Method: "tell", Args: []any{"json", nil}}} {
		_, ok := c.Get(call)
		assert.False(t, ok)
	}
	_, ok := c.Get(askCall("other", "q1"))
	assert.True(t, ok)
}

func TestCache_Invalidate(t *testing.T) {
	c := newRAMCache(t, newMock())
	c.Set(askCall("db", "q1"), 1, 0)
	c.Set(askCall("db", "q2"), 2, 0)

	c.Invalidate(askCall("db", "q1"))
	_, ok := c.Get(askCall("db", "q1"))
	assert.False(t, ok)
	_, ok = c.Get(askCall("db", "q2"))
	assert.True(t, ok)
}

func TestCache_LRUEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRAMEntries = 2
	c, err := New(cfg, WithClock(newMock()))
	require.NoError(t, err)

	c.Set(askCall("s", "a"), "a", 0)
	c.Set(askCall("s", "b"), "b", 0)
	_, _ = c.Get(askCall("s", "a")) // a 变为最近使用
	c.Set(askCall("s", "c"), "c", 0)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(askCall("s", "b"))
	assert.False(t, ok, "最久未使用的条目被淘汰")
	_, ok = c.Get(askCall("s", "a"))
	assert.True(t, ok)
}

func TestCache_ARCEviction(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRAMEntries = 2
	cfg.Eviction = EvictionARC
	c, err := New(cfg, WithClock(newMock()))
	require.NoError(t, err)

	c.Set(askCall("s", "a"), "a", 0)
	c.Set(askCall("s", "b"), "b", 0)
	_, _ = c.Get(askCall("s", "a")) // a 进入高频列表
	c.Set(askCall("s", "c"), "c", 0)

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get(askCall("s", "a"))
	assert.True(t, ok, "高频条目保留")
	assert.Equal(t, 2, c.InvalidateService("s"))
}

func TestCache_ClearExpired(t *testing.T) {
	mock := newMock()
	c := newRAMCache(t, mock)

	c.Set(askCall("s", "short"), 1, time.Second)
	c.Set(askCall("s", "long"), 2, time.Hour)
	mock.Add(2 * time.Second)

	assert.Equal(t, 1, c.ClearExpired())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 0, c.ClearExpired())
}

func TestCache_Clear(t *testing.T) {
	c := newRAMCache(t, newMock())
	c.Set(askCall("s", "a"), 1, 0)
	require.NoError(t, c.Clear())
	assert.Equal(t, 0, c.Len())
}

func TestCache_ResetStats(t *testing.T) {
	c := newRAMCache(t, newMock())
	_, _ = c.Get(askCall("s", "a"))
	c.ResetStats()
	st := c.Stats()
	assert.Zero(t, st.RAMMisses)
	assert.Zero(t, st.HitRate)
}

func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"内存容量为零", func(c *Config) { c.MaxRAMEntries = 0 }},
		{"TTL 为零", func(c *Config) { c.DefaultTTL = 0 }},
		{"未知淘汰策略", func(c *Config) { c.Eviction = "fifo" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.modify(&cfg)
			_, err := New(cfg)
			assert.Error(t, err)
		})
	}
}

// ============= 持久层 =============

func TestCache_PersistentReadThrough(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))

	first := newPersistentCache(t, mock, backend)
	first.Set(askCall("db", "q"), map[string]any{"rows": 3}, time.Minute)

	// 新实例模拟进程重启：内存层为空
	second := newPersistentCache(t, mock, backend)
	v, ok := second.Get(askCall("db", "q"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"rows": float64(3)}, v)

	st := second.Stats()
	assert.EqualValues(t, 1, st.DBHits)
	assert.EqualValues(t, 1, st.RAMMisses)
	assert.Equal(t, 1, st.RAMSize, "持久层命中回填内存层")
	assert.EqualValues(t, 1, st.TotalEntries)

	_, ok = second.Get(askCall("db", "q"))
	require.True(t, ok)
	assert.EqualValues(t, 1, second.Stats().RAMHits)

	e, err := backend.Get(askCall("db", "q").Key())
	require.NoError(t, err)
	assert.EqualValues(t, 1, e.HitCount)
	assert.Equal(t, "db", e.Service)
}

func TestCache_PersistentKeepsExpiry(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))

	newPersistentCache(t, mock, backend).Set(askCall("db", "query1"), "result1", time.Second)

	second := newPersistentCache(t, mock, backend)
	_, ok := second.Get(askCall("db", "query1"))
	require.True(t, ok)

	// 回填的内存条目沿用原过期时间
	mock.Add(2 * time.Second)
	_, ok = second.Get(askCall("db", "query1"))
	assert.False(t, ok)

	n, err := backend.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "过期的持久条目被删除")
}

func TestCache_PersistentResponseType(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))

	resp := types.OK("remote", "ask", "hello")
	newPersistentCache(t, mock, backend).Set(askCall("remote", "q"), resp, 0)

	v, ok := newPersistentCache(t, mock, backend).Get(askCall("remote", "q"))
	require.True(t, ok)
	got, isResp := v.(*types.Response)
	require.True(t, isResp)
	assert.Equal(t, resp, got)
}

func TestCache_PersistentUnserializableValue(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))

	newPersistentCache(t, mock, backend).Set(askCall("s", "q"), make(chan int), 0)

	v, ok := newPersistentCache(t, mock, backend).Get(askCall("s", "q"))
	require.True(t, ok)
	assert.IsType(t, "", v)
}

func TestCache_PersistentInvalidation(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))
	c := newPersistentCache(t, mock, backend)

	c.Set(askCall("db", "q1"), 1, 0)
	c.Set(askCall("db", "q2"), 2, 0)
	c.Set(askCall("db2", "q1"), 3, 0)

	assert.Equal(t, 2, c.InvalidateService("db"))

	fresh := newPersistentCache(t, mock, backend)
	_, ok := fresh.Get(askCall("db", "q1"))
	assert.False(t, ok)
	_, ok = fresh.Get(askCall("db2", "q1"))
	assert.True(t, ok, "前缀相同的其他服务不受影响")

	c.Invalidate(askCall("db2", "q1"))
	n, err := backend.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestCache_PersistentClearExpired(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))
	c := newPersistentCache(t, mock, backend)

	c.Set(askCall("s", "a"), 1, time.Second)
	c.Set(askCall("s", "b"), 2, time.Second)
	c.Set(askCall("s", "c"), 3, time.Hour)
	mock.Add(2 * time.Second)

	assert.Equal(t, 2, c.ClearExpired())
	n, err := backend.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestCache_PersistentClear(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))
	c := newPersistentCache(t, mock, backend)

	c.Set(askCall("s", "a"), 1, 0)
	require.NoError(t, c.Clear())

	n, err := backend.Count()
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, c.InvalidateService("s"), "索引同时被清空")
}

// hookBackend 在持久层读写完成后回调，用于在两步之间插入操作
type hookBackend struct {
	Backend
	afterGet func(key string)
	afterPut func(e *Entry)
}

func (b *hookBackend) Get(key string) (*Entry, error) {
	e, err := b.Backend.Get(key)
	if fn := b.afterGet; fn != nil {
		b.afterGet = nil
		fn(key)
	}
	return e, err
}

func (b *hookBackend) Put(e *Entry) error {
	err := b.Backend.Put(e)
	if fn := b.afterPut; fn != nil {
		b.afterPut = nil
		fn(e)
	}
	return err
}

func TestCache_InvalidateDuringPersistentHit(t *testing.T) {
	tests := []struct {
		name       string
		invalidate func(c *Cache)
	}{
		{"按服务失效", func(c *Cache) { c.InvalidateService("db") }},
		{"按调用失效", func(c *Cache) { c.Invalidate(askCall("db", "q")) }},
		{"清空", func(c *Cache) { _ = c.Clear() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMock()
			inner := NewEngineBackend(newEngine(t))
			newPersistentCache(t, mock, inner).Set(askCall("db", "q"), "stale", 0)

			backend := &hookBackend{Backend: inner}
			c := newPersistentCache(t, mock, backend)
			backend.afterGet = func(string) { tt.invalidate(c) }

			_, ok := c.Get(askCall("db", "q"))
			assert.False(t, ok, "读取期间失效的条目不返回")

			n, err := inner.Count()
			require.NoError(t, err)
			assert.Zero(t, n, "命中回写不复活已失效条目")

			_, ok = c.Get(askCall("db", "q"))
			assert.False(t, ok)
			_, ok = newPersistentCache(t, mock, inner).Get(askCall("db", "q"))
			assert.False(t, ok, "重启后仍未命中")
		})
	}
}

func TestCache_InvalidateDuringSet(t *testing.T) {
	mock := newMock()
	inner := NewEngineBackend(newEngine(t))
	backend := &hookBackend{Backend: inner}
	c := newPersistentCache(t, mock, backend)

	backend.afterPut = func(*Entry) { c.InvalidateService("db") }
	c.Set(askCall("db", "q"), "stale", 0)

	_, ok := c.Get(askCall("db", "q"))
	assert.False(t, ok)

	n, err := inner.Count()
	require.NoError(t, err)
	assert.Zero(t, n, "写入期间失效时撤回持久条目")

	// 失效之后的写入正常生效
	c.Set(askCall("db", "q"), "fresh", 0)
	v, ok := newPersistentCache(t, mock, inner).Get(askCall("db", "q"))
	require.True(t, ok)
	assert.Equal(t, "fresh", v)
}

func TestCache_ValueByTier(t *testing.T) {
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))
	c := newPersistentCache(t, mock, backend)

	value := map[string]any{"rows": 3}
	c.Set(askCall("db", "q"), value, 0)

	v, ok := c.Get(askCall("db", "q"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"rows": 3}, v, "内存层返回原值")

	v, ok = newPersistentCache(t, mock, backend).Get(askCall("db", "q"))
	require.True(t, ok)
	assert.Equal(t, map[string]any{"rows": float64(3)}, v, "持久层返回 JSON 解码结果")
}

func TestCache_DegradesWhenBackendFails(t *testing.T) {
	backend := NewEngineBackend(engine.Unavailable(errors.New("locked")))
	c := newPersistentCache(t, newMock(), backend)

	c.Set(askCall("s", "a"), "v", 0)
	v, ok := c.Get(askCall("s", "a"))
	require.True(t, ok, "内存层继续工作")
	assert.Equal(t, "v", v)

	_, ok = c.Get(askCall("s", "missing"))
	assert.False(t, ok)

	st := c.Stats()
	assert.True(t, st.Degraded)
	assert.Positive(t, st.TierErrors)
	assert.Error(t, c.Clear())
	assert.Equal(t, 0, c.Len(), "内存层在持久层失败时仍被清空")
}

// ============= 生命周期 =============

func TestCache_Sweeper(t *testing.T) {
	mock := newMock()
	cfg := testConfig()
	cfg.SweepInterval = time.Minute
	c, err := New(cfg, WithClock(mock))
	require.NoError(t, err)
	defer c.Close()

	c.Set(askCall("s", "a"), 1, time.Second)
	require.NoError(t, c.Start(context.Background()))

	require.Eventually(t, func() bool {
		mock.Add(cfg.SweepInterval)
		return c.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Start(context.Background()), ErrClosed)
}
