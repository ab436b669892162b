package locator

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-capmesh/internal/cache"
	"github.com/dep2p/go-capmesh/internal/capability"
	"github.com/dep2p/go-capmesh/internal/expose"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// echoService ask 返回 "Echo:" + query
type echoService struct {
	asks atomic.Int64
}

func (s *echoService) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	s.asks.Add(1)
	return "Echo:" + query, nil
}

func (s *echoService) Tell(_ context.Context, format string, data any) (any, error) {
	return format, nil
}

func (s *echoService) Do(_ context.Context, action string, _ map[string]any) (any, error) {
	return "done " + action, nil
}

// recipe 返回计数的构建方法
type recipe struct {
	builds atomic.Int64
	fail   bool
	svc    *echoService
}

func newRecipe() *recipe {
	return &recipe{svc: &echoService{}}
}

func (r *recipe) build(context.Context) (interfaces.Service, error) {
	r.builds.Add(1)
	if r.fail {
		return nil, errors.New("no driver")
	}
	return r.svc, nil
}

// fakeDirectory 内存中的网络视图
type fakeDirectory struct {
	mu   sync.Mutex
	anns map[string]types.ServiceAnnouncement
}

func newDirectory(anns ...types.ServiceAnnouncement) *fakeDirectory {
	d := &fakeDirectory{anns: make(map[string]types.ServiceAnnouncement)}
	for _, ann := range anns {
		d.anns[ann.Name] = ann
	}
	return d
}

func (d *fakeDirectory) Discover(name string) (types.ServiceAnnouncement, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ann, ok := d.anns[name]
	return ann, ok
}

func (d *fakeDirectory) FindCapability(query string) []types.ServiceAnnouncement {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []types.ServiceAnnouncement
	for _, ann := range d.anns {
		if ann.HasCapability(query) {
			out = append(out, ann)
		}
	}
	return out
}

func (d *fakeDirectory) DiscoverAll() map[string]types.ServiceAnnouncement {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]types.ServiceAnnouncement, len(d.anns))
	for k, v := range d.anns {
		out[k] = v
	}
	return out
}

func newCapabilities(t *testing.T, caps ...capability.Capability) *capability.Registry {
	t.Helper()
	r, err := capability.NewRegistry(caps...)
	require.NoError(t, err)
	return r
}

func newCacheManager(t *testing.T) *cache.Manager {
	t.Helper()
	cfg := cache.DefaultConfig()
	cfg.SweepInterval = 0
	c, err := cache.New(cfg, cache.WithClock(clock.NewMock()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return cache.NewManager(c)
}

// newExposer 返回仅监听回环地址、不做网络宣告的暴露管理器
func newExposer(t *testing.T) *expose.Manager {
	t.Helper()
	cfg := expose.DefaultConfig()
	cfg.Host = "127.0.0.1"
	m := expose.NewManager(cfg)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

// exposeEcho 暴露一个 echo 服务并返回其宣告
func exposeEcho(t *testing.T, m *expose.Manager, name string, caps ...string) types.ServiceAnnouncement {
	t.Helper()
	opts := []expose.ExposeOption{}
	if len(caps) > 0 {
		opts = append(opts, expose.WithCapabilities(caps...))
	}
	svc, err := m.Expose(context.Background(), name, &echoService{}, opts...)
	require.NoError(t, err)
	return svc.Announcement()
}

