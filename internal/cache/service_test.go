package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-capmesh/pkg/types"
)

func TestCachedService_AskCachesReads(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)

	first, err := svc.Ask(ctx, "count users", nil)
	require.NoError(t, err)
	second, err := svc.Ask(ctx, "count users", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, inner.asks.Load())

	st := svc.Stats()
	assert.EqualValues(t, 2, st.TotalCalls)
	assert.EqualValues(t, 1, st.CacheHits)
	assert.EqualValues(t, 1, st.CacheMisses)
	assert.InDelta(t, 50.0, st.HitRate, 0.001)
	assert.True(t, st.Policies[types.VerbAsk].Enabled)
}

func TestCachedService_AskExpires(t *testing.T) {
	ctx := context.Background()
	mock := newMock()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, mock), types.CachePolicies{
		types.VerbAsk: {Enabled: true, TTL: time.Second},
	})

	_, _ = svc.Ask(ctx, "q", nil)
	mock.Add(2 * time.Second)
	_, _ = svc.Ask(ctx, "q", nil)
	assert.EqualValues(t, 2, inner.asks.Load())
}

func TestCachedService_WriteAskInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)

	_, _ = svc.Ask(ctx, "list users", nil)
	_, _ = svc.Ask(ctx, "update users set active", nil)
	_, _ = svc.Ask(ctx, "update users set active", nil)
	_, _ = svc.Ask(ctx, "list users", nil)

	// 写查询不读缓存，且使之前缓存的读查询失效
	assert.EqualValues(t, 4, inner.asks.Load())
}

func TestCachedService_WriteAskWithoutInvalidation(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, newMock()), types.CachePolicies{
		types.VerbAsk: {Enabled: true, TTL: time.Hour},
	})

	_, _ = svc.Ask(ctx, "list users", nil)
	_, _ = svc.Ask(ctx, "delete user 1", nil)
	_, _ = svc.Ask(ctx, "list users", nil)
	assert.EqualValues(t, 2, inner.asks.Load())
}

func TestCachedService_Tell(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("fmt", inner, newRAMCache(t, newMock()), nil)

	v, err := svc.Tell(ctx, "json", map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "json output", v)
	_, _ = svc.Tell(ctx, "json", map[string]any{"a": 1})
	_, _ = svc.Tell(ctx, "json", map[string]any{"a": 2})

	assert.EqualValues(t, 2, inner.tells.Load())
}

func TestCachedService_DoInvalidates(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)

	_, _ = svc.Ask(ctx, "list", nil)
	v, err := svc.Do(ctx, "reindex", nil)
	require.NoError(t, err)
	assert.Equal(t, "done reindex", v)
	_, _ = svc.Do(ctx, "reindex", nil)
	_, _ = svc.Ask(ctx, "list", nil)

	assert.EqualValues(t, 2, inner.dos.Load(), "do 默认不缓存")
	assert.EqualValues(t, 2, inner.asks.Load(), "do 之后读查询重新执行")
}

func TestCachedService_DoCachedWhenEnabled(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, newMock()), types.CachePolicies{
		types.VerbDo: {Enabled: true, TTL: time.Minute},
	})

	_, _ = svc.Do(ctx, "noop", nil)
	_, _ = svc.Do(ctx, "noop", nil)
	// 调用前的失效会清掉上一次结果
	assert.EqualValues(t, 2, inner.dos.Load())
}

func TestCachedService_FailuresNotCached(t *testing.T) {
	ctx := context.Background()

	t.Run("返回错误", func(t *testing.T) {
		inner := &countingService{fail: true}
		svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)
		_, err := svc.Ask(ctx, "q", nil)
		require.Error(t, err)
		_, err = svc.Ask(ctx, "q", nil)
		require.Error(t, err)
		assert.EqualValues(t, 2, inner.asks.Load())
	})

	t.Run("失败响应", func(t *testing.T) {
		inner := &countingService{resp: true}
		svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)
		v, err := svc.Ask(ctx, "q", nil)
		require.NoError(t, err)
		assert.False(t, v.(*types.Response).Success)
		_, _ = svc.Ask(ctx, "q", nil)
		assert.EqualValues(t, 2, inner.asks.Load())
	})
}

func TestCachedService_Configure(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)

	svc.Configure(types.VerbAsk, types.CachePolicy{Enabled: false})
	assert.False(t, svc.Policy(types.VerbAsk).Enabled)
	assert.True(t, svc.Policy(types.VerbTell).Enabled, "其余方法保持默认")

	_, _ = svc.Ask(ctx, "q", nil)
	_, _ = svc.Ask(ctx, "q", nil)
	assert.EqualValues(t, 2, inner.asks.Load())
}

// callerService 支持任意方法名
type callerService struct {
	countingService
	calls []string
}

func (s *callerService) Call(_ context.Context, method string, args ...any) (any, error) {
	s.calls = append(s.calls, method)
	if method == "boom" {
		return nil, errors.New("boom")
	}
	return len(args), nil
}

func TestCachedService_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("标准动词走缓存", func(t *testing.T) {
		inner := &countingService{}
		svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)
		_, _ = svc.Call(ctx, "ask", "q")
		_, _ = svc.Call(ctx, "ask", "q")
		v, err := svc.Call(ctx, "tell", "text", 1)
		require.NoError(t, err)
		assert.Equal(t, "text output", v)
		assert.EqualValues(t, 1, inner.asks.Load())
	})

	t.Run("转发给 Caller", func(t *testing.T) {
		inner := &callerService{}
		svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)
		_, _ = svc.Ask(ctx, "q", nil)

		v, err := svc.Call(ctx, "get_user", 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
		assert.Equal(t, []string{"get_user"}, inner.calls)

		_, _ = svc.Ask(ctx, "q", nil)
		assert.EqualValues(t, 2, inner.asks.Load(), "自定义方法视为写操作")
	})

	t.Run("退化为 do", func(t *testing.T) {
		inner := &countingService{}
		svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)
		v, err := svc.Call(ctx, "restart", "web", 2)
		require.NoError(t, err)
		assert.Equal(t, "done restart web 2", v)
	})
}

func TestCachedService_PersistentAcrossInstances(t *testing.T) {
	ctx := context.Background()
	mock := newMock()
	backend := NewEngineBackend(newEngine(t))

	inner := &countingService{}
	first := NewCachedService("db", inner, newPersistentCache(t, mock, backend), nil)
	_, _ = first.Ask(ctx, "q", nil)

	second := NewCachedService("db", inner, newPersistentCache(t, mock, backend), nil)
	v, err := second.Ask(ctx, "q", nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "q", "n": float64(1)}, v)
	assert.EqualValues(t, 1, inner.asks.Load())
}

func TestCachedService_ClearCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingService{}
	svc := NewCachedService("db", inner, newRAMCache(t, newMock()), nil)

	_, _ = svc.Ask(ctx, "a", nil)
	_, _ = svc.Ask(ctx, "b", nil)
	assert.Equal(t, 2, svc.ClearCache())
	_, _ = svc.Ask(ctx, "a", nil)
	assert.EqualValues(t, 3, inner.asks.Load())
}
