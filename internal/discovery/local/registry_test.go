package local

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-capmesh/pkg/types"
)

func TestRegistry_AnnounceDiscover(t *testing.T) {
	mock := clock.NewMock()
	mock.Set(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	r := NewRegistry(WithClock(mock))

	ann, err := r.Announce("database", []string{"query tournaments", "list players"}, []string{"ask('top players')"})
	require.NoError(t, err)
	assert.Equal(t, types.SourceLocal, ann.Source)
	assert.Equal(t, os.Getpid(), ann.PID)
	assert.Equal(t, mock.Now(), ann.DiscoveredAt)

	got, ok := r.Discover("database")
	require.True(t, ok)
	assert.Equal(t, []string{"query tournaments", "list players"}, got.Capabilities)

	_, ok = r.Discover("missing")
	assert.False(t, ok)
}

func TestRegistry_AnnounceInvalidName(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"", " db", "db "} {
		_, err := r.Announce(name, nil, nil)
		assert.ErrorIs(t, err, ErrInvalidName, "name=%q", name)
	}
}

func TestRegistry_AnnounceOverwrites(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Announce("logger", []string{"v1"}, nil)
	_, _ = r.Announce("logger", []string{"v2"}, nil)

	assert.Equal(t, 1, r.Len())
	got, _ := r.Discover("logger")
	assert.Equal(t, []string{"v2"}, got.Capabilities)
}

func TestRegistry_ReturnedCopiesAreIsolated(t *testing.T) {
	r := NewRegistry()
	caps := []string{"a"}
	_, _ = r.Announce("svc", caps, nil)
	caps[0] = "mutated"

	got, _ := r.Discover("svc")
	got.Capabilities[0] = "also mutated"

	again, _ := r.Discover("svc")
	assert.Equal(t, []string{"a"}, again.Capabilities)
}

func TestRegistry_FindCapability(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Announce("web", []string{"HTTP server on port 8081"}, nil)
	_, _ = r.Announce("database", []string{"Query tournament data"}, nil)
	_, _ = r.Announce("api", []string{"REST http bridge"}, nil)

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"不区分大小写", "http", []string{"api", "web"}},
		{"单个匹配", "tournament", []string{"database"}},
		{"无匹配", "audio", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, a := range r.FindCapability(tt.query) {
				names = append(names, a.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestRegistry_Listeners(t *testing.T) {
	r := NewRegistry()

	var seen []string
	id := r.AddListener(func(a types.ServiceAnnouncement) { seen = append(seen, a.Name) })

	// panic 的监听器不影响后续监听器
	r.AddListener(func(types.ServiceAnnouncement) { panic("boom") })
	var after atomic.Int32
	r.AddListener(func(types.ServiceAnnouncement) { after.Add(1) })

	_, err := r.Announce("one", nil, nil)
	require.NoError(t, err)
	// 同步调用：Announce 返回时监听器已执行
	assert.Equal(t, []string{"one"}, seen)
	assert.Equal(t, int32(1), after.Load())

	assert.True(t, r.RemoveListener(id))
	assert.False(t, r.RemoveListener(id))

	_, _ = r.Announce("two", nil, nil)
	assert.Equal(t, []string{"one"}, seen)
	assert.Equal(t, int32(2), after.Load())
}

func TestRegistry_Remove(t *testing.T) {
	r := NewRegistry()
	_, _ = r.Announce("svc", nil, nil)
	assert.True(t, r.Remove("svc"))
	assert.False(t, r.Remove("svc"))
	assert.Empty(t, r.List())
}

func TestRegistry_Verbs(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	_, _ = r.Announce("database", []string{"query data", "list players", "export"}, nil)
	_, _ = r.Announce("logger", []string{"write logs"}, nil)

	t.Run("ask 全部服务", func(t *testing.T) {
		v, err := r.Ask(ctx, "list all services", nil)
		require.NoError(t, err)
		assert.Len(t, v, 2)
	})

	t.Run("ask 查找服务", func(t *testing.T) {
		v, err := r.Ask(ctx, "find service logger", nil)
		require.NoError(t, err)
		assert.Equal(t, "logger", v.(types.ServiceAnnouncement).Name)

		v, err = r.Ask(ctx, "find service nope", nil)
		require.NoError(t, err)
		assert.Nil(t, v)
	})

	t.Run("ask 能力查找", func(t *testing.T) {
		v, err := r.Ask(ctx, "capability logs", nil)
		require.NoError(t, err)
		assert.Len(t, v, 1)
	})

	t.Run("tell text", func(t *testing.T) {
		v, err := r.Tell(ctx, "text", nil)
		require.NoError(t, err)
		assert.Equal(t, "Services (2):\n  database: query data, list players\n  logger: write logs", v)
	})

	t.Run("tell json", func(t *testing.T) {
		v, err := r.Tell(ctx, "json", nil)
		require.NoError(t, err)
		assert.Contains(t, v, `"name": "database"`)
	})

	t.Run("do stats", func(t *testing.T) {
		v, err := r.Do(ctx, "stats", nil)
		require.NoError(t, err)
		assert.Equal(t, 2, v.(map[string]any)["total_services"])
	})

	t.Run("do 未知动作", func(t *testing.T) {
		v, err := r.Do(ctx, "dance", nil)
		require.NoError(t, err)
		assert.Equal(t, "Unknown action: dance", v)
	})

	t.Run("do cleanup", func(t *testing.T) {
		_, err := r.Do(ctx, "cleanup", nil)
		require.NoError(t, err)
		assert.Zero(t, r.Len())
	})
}

func TestRegistry_HostedElsewhere(t *testing.T) {
	ctx := context.Background()
	ptrs, err := OpenPointers(filepath.Join(t.TempDir(), "pointers.db"))
	require.NoError(t, err)
	defer ptrs.Close()

	const otherPID = 4242
	ptrs.alive = func(pid int) bool { return pid == otherPID || pid == os.Getpid() }

	r := NewRegistry(WithPointers(ptrs))

	t.Run("无指针", func(t *testing.T) {
		_, ok := r.HostedElsewhere(ctx, "database")
		assert.False(t, ok)
	})

	t.Run("本进程托管", func(t *testing.T) {
		require.NoError(t, r.Claim(ctx, "logger"))
		_, ok := r.HostedElsewhere(ctx, "logger")
		assert.False(t, ok)
	})

	t.Run("其他存活进程托管", func(t *testing.T) {
		require.NoError(t, ptrs.Register(ctx, "database", otherPID))
		pid, ok := r.HostedElsewhere(ctx, "database")
		assert.True(t, ok)
		assert.Equal(t, otherPID, pid)
	})

	t.Run("Cleanup 只删除本进程指针", func(t *testing.T) {
		require.NoError(t, r.Cleanup(ctx))
		list, err := ptrs.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "database", list[0].Service)
	})
}

func TestRegistry_NoPointers(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry()
	assert.NoError(t, r.Claim(ctx, "x"))
	_, ok := r.HostedElsewhere(ctx, "x")
	assert.False(t, ok)
	assert.Nil(t, r.Pointers())
}
