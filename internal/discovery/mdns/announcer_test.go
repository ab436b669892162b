package mdns

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-capmesh/pkg/types"
)

type fakeServer struct {
	shut atomic.Bool
}

func (s *fakeServer) Shutdown() error {
	s.shut.Store(true)
	return nil
}

type fakeNet struct {
	mu      sync.Mutex
	specs   []ZoneSpec
	servers []*fakeServer
	fail    int // 前 fail 次注册失败
	calls   int
}

func (f *fakeNet) register(spec ZoneSpec) (Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.fail {
		return nil, errors.New("name conflict")
	}
	f.specs = append(f.specs, spec)
	s := &fakeServer{}
	f.servers = append(f.servers, s)
	return s, nil
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.RetryBackoff = time.Millisecond
	cfg.QueryInterval = 0
	cfg.QueryTimeout = 10 * time.Millisecond
	return cfg
}

func newTestAnnouncer(t *testing.T, f *fakeNet, entries ...*mdns.ServiceEntry) *Announcer {
	t.Helper()
	query := func(p *mdns.QueryParam) error {
		for _, e := range entries {
			p.Entries <- e
		}
		return nil
	}
	a, err := New(testConfig(), WithServerFactory(f.register), WithQuerier(query))
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestAnnouncer_AnnounceAsync(t *testing.T) {
	f := &fakeNet{}
	a := newTestAnnouncer(t, f)

	err := a.Announce("TestSvc", []string{"ask() - echo"}, []string{"ask('hi')"}, 9001)
	require.NoError(t, err)

	// 本进程宣告立即可见
	ann, ok := a.Discover("TestSvc")
	require.True(t, ok)
	assert.Equal(t, 9001, ann.Port)
	assert.Equal(t, a.InstanceID(), ann.InstanceID)
	assert.Equal(t, types.SourceNetwork, ann.Source)

	require.Eventually(t, func() bool { return a.Announced("TestSvc") }, time.Second, time.Millisecond)
	assert.False(t, a.Pending("TestSvc"))

	f.mu.Lock()
	defer f.mu.Unlock()
	require.Len(t, f.specs, 1)
	spec := f.specs[0]
	assert.Equal(t, "TestSvc", spec.Instance)
	assert.Equal(t, DefaultServiceType, spec.Service)
	assert.Equal(t, "local.", spec.Domain)
	assert.Contains(t, spec.TXT, "capabilities=ask() - echo")
	assert.Contains(t, spec.TXT, "id="+a.InstanceID())
}

func TestAnnouncer_DuplicateIsNoop(t *testing.T) {
	f := &fakeNet{}
	a := newTestAnnouncer(t, f)

	require.NoError(t, a.Announce("svc", nil, nil, 9100))
	require.Eventually(t, func() bool { return a.Announced("svc") }, time.Second, time.Millisecond)
	require.NoError(t, a.Announce("svc", []string{"other"}, nil, 9200))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 1, f.calls)
}

func TestAnnouncer_RetryThenSucceed(t *testing.T) {
	f := &fakeNet{fail: 2}
	a := newTestAnnouncer(t, f)

	require.NoError(t, a.Announce("svc", nil, nil, 9100))
	require.Eventually(t, func() bool { return a.Announced("svc") }, time.Second, time.Millisecond)
	assert.NoError(t, a.Failure("svc"))
}

func TestAnnouncer_RetriesExhausted(t *testing.T) {
	f := &fakeNet{fail: 100}
	a := newTestAnnouncer(t, f)

	require.NoError(t, a.Announce("svc", nil, nil, 9100))
	require.Eventually(t, func() bool { return a.Failure("svc") != nil }, time.Second, time.Millisecond)

	err := a.Failure("svc")
	assert.True(t, IsAnnounceError(err))
	var ae *AnnounceError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, 3, ae.Attempts)

	// 失败的宣告不再出现在发现表中
	_, ok := a.Discover("svc")
	assert.False(t, ok)
	assert.False(t, a.Announced("svc"))
}

func TestAnnouncer_AutoPort(t *testing.T) {
	f := &fakeNet{}
	a := newTestAnnouncer(t, f)

	require.NoError(t, a.Announce("svc", nil, nil, 0))
	ann, ok := a.Discover("svc")
	require.True(t, ok)
	assert.Greater(t, ann.Port, 0)
}

func TestAnnouncer_InvalidName(t *testing.T) {
	a := newTestAnnouncer(t, &fakeNet{})
	for _, name := range []string{"", "  ", "a.b", strings.Repeat("x", 64)} {
		assert.ErrorIs(t, a.Announce(name, nil, nil, 1), ErrInvalidName, "name=%q", name)
	}
}

func TestAnnouncer_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false
	a, err := New(cfg)
	require.NoError(t, err)
	assert.False(t, a.Enabled())
	assert.ErrorIs(t, a.Announce("svc", nil, nil, 1), ErrDisabled)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Close())
}

func TestAnnouncer_CloseShutsDownServers(t *testing.T) {
	f := &fakeNet{}
	a, err := New(testConfig(), WithServerFactory(f.register), WithQuerier(func(*mdns.QueryParam) error { return nil }))
	require.NoError(t, err)

	require.NoError(t, a.Announce("one", nil, nil, 9100))
	require.NoError(t, a.Announce("two", nil, nil, 9101))
	require.Eventually(t, func() bool { return a.Announced("one") && a.Announced("two") }, time.Second, time.Millisecond)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.servers {
		assert.True(t, s.shut.Load())
	}
	assert.ErrorIs(t, a.Announce("three", nil, nil, 1), ErrClosed)
}

func TestAnnouncer_AnnounceRacingClose(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := &fakeNet{}
		a, err := New(testConfig(), WithServerFactory(f.register), WithQuerier(func(*mdns.QueryParam) error { return nil }))
		require.NoError(t, err)

		var (
			wg   sync.WaitGroup
			errs = make(chan error, 8)
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				name := "svc" + string(rune('a'+i))
				if err := a.Announce(name, nil, nil, 9200+i); err != nil && !errors.Is(err, ErrClosed) {
					errs <- err
				}
			}(i)
		}
		require.NoError(t, a.Close())
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
		f.mu.Lock()
		for _, s := range f.servers {
			assert.True(t, s.shut.Load(), "关闭后不残留已注册的服务")
		}
		f.mu.Unlock()
		assert.Empty(t, a.sorted(), "关闭后拒绝的宣告不可见")
	}
}

func TestAnnouncer_Unannounce(t *testing.T) {
	f := &fakeNet{}
	a := newTestAnnouncer(t, f)

	require.NoError(t, a.Announce("svc", nil, nil, 9100))
	require.Eventually(t, func() bool { return a.Announced("svc") }, time.Second, time.Millisecond)

	require.NoError(t, a.Unannounce("svc"))
	assert.False(t, a.Announced("svc"))
	_, ok := a.Discover("svc")
	assert.False(t, ok)
	assert.True(t, f.servers[0].shut.Load())
}

func remoteEntry(name, id string, port int, caps string) *mdns.ServiceEntry {
	return &mdns.ServiceEntry{
		Name:   name + "._capmesh._tcp.local.",
		Host:   "peer.local.",
		AddrV4: net.ParseIP("192.168.1.20"),
		Port:   port,
		InfoFields: []string{
			"name=" + name,
			"capabilities=" + caps,
			"examples=ask('x')|do('y')",
			"type=capmesh",
			"id=" + id,
		},
	}
}

func TestAnnouncer_Browse(t *testing.T) {
	a := newTestAnnouncer(t, &fakeNet{},
		remoteEntry("Database Service", "peer-1", 8081, "Query tournament data,HTTP api"),
		remoteEntry("Web Editor", "peer-2", 8082, "Edit pages"),
		remoteEntry("Database Service", "peer-1", 8081, "Query tournament data,HTTP api"),
		nil,
	)

	var (
		mu   sync.Mutex
		seen []string
	)
	a.AddListener(func(ann types.ServiceAnnouncement) {
		mu.Lock()
		seen = append(seen, ann.Name)
		mu.Unlock()
	})
	a.AddListener(func(types.ServiceAnnouncement) { panic("listener panic") })

	found := a.Browse(context.Background())
	assert.Equal(t, 2, found)

	all := a.DiscoverAll()
	require.Len(t, all, 2)
	db := all["Database Service"]
	assert.Equal(t, "192.168.1.20", db.Host)
	assert.Equal(t, 8081, db.Port)
	assert.Equal(t, []string{"Query tournament data", "HTTP api"}, db.Capabilities)
	assert.Equal(t, []string{"ask('x')", "do('y')"}, db.Examples)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, time.Millisecond)

	t.Run("FindService 子串匹配", func(t *testing.T) {
		ann, ok := a.FindService("editor")
		require.True(t, ok)
		assert.Equal(t, "Web Editor", ann.Name)
	})

	t.Run("FindCapability", func(t *testing.T) {
		got := a.FindCapability("http")
		require.Len(t, got, 1)
		assert.Equal(t, "Database Service", got[0].Name)
	})

	t.Run("Forget", func(t *testing.T) {
		assert.True(t, a.Forget("Web Editor"))
		assert.False(t, a.Forget("Web Editor"))
		_, ok := a.Discover("Web Editor")
		assert.False(t, ok)
	})
}

func TestAnnouncer_BrowseSkipsSelf(t *testing.T) {
	f := &fakeNet{}
	var a *Announcer
	query := func(p *mdns.QueryParam) error {
		p.Entries <- remoteEntry("mine", a.InstanceID(), 9000, "x")
		return nil
	}
	a, err := New(testConfig(), WithServerFactory(f.register), WithQuerier(query))
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 0, a.Browse(context.Background()))
	assert.Empty(t, a.DiscoverAll())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"默认配置", func(*Config) {}, false},
		{"禁用时跳过校验", func(c *Config) { c.Enabled = false; c.ServiceType = "" }, false},
		{"服务类型缺少协议", func(c *Config) { c.ServiceType = "_capmesh" }, true},
		{"服务类型非法协议", func(c *Config) { c.ServiceType = "_capmesh._sctp" }, true},
		{"重试次数为 0", func(c *Config) { c.MaxRetries = 0 }, true},
		{"负退避", func(c *Config) { c.RetryBackoff = -1 }, true},
		{"空域名", func(c *Config) { c.Domain = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
