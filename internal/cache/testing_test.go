package cache

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-capmesh/internal/core/storage"
	"github.com/dep2p/go-capmesh/internal/core/storage/engine"
	"github.com/dep2p/go-capmesh/pkg/types"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.SweepInterval = 0
	return cfg
}

// newRAMCache 创建仅内存缓存
func newRAMCache(t *testing.T, mock *clock.Mock) *Cache {
	t.Helper()
	c, err := New(testConfig(), WithClock(mock))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

// newEngine 在临时目录打开 badger
func newEngine(t *testing.T) engine.Engine {
	t.Helper()
	eng, err := storage.New(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close() })
	return eng
}

// newPersistentCache 在 backend 上创建两级缓存
func newPersistentCache(t *testing.T, mock *clock.Mock, backend Backend) *Cache {
	t.Helper()
	c, err := New(testConfig(), WithClock(mock), WithBackend(backend))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newMock() *clock.Mock {
	m := clock.NewMock()
	m.Set(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return m
}

// countingService 记录实际调用次数
type countingService struct {
	asks  atomic.Int64
	tells atomic.Int64
	dos   atomic.Int64
	fail  bool
	resp  bool
}

func (s *countingService) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	n := s.asks.Add(1)
	if s.fail {
		return nil, errors.New("backend down")
	}
	if s.resp {
		return types.Fail("svc", "ask", "unavailable"), nil
	}
	return map[string]any{"query": query, "n": n}, nil
}

func (s *countingService) Tell(_ context.Context, format string, data any) (any, error) {
	s.tells.Add(1)
	return format + " output", nil
}

func (s *countingService) Do(_ context.Context, action string, _ map[string]any) (any, error) {
	s.dos.Add(1)
	return "done " + action, nil
}
