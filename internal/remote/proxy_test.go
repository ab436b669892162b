package remote

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// echoServer 模拟网络暴露服务
func echoServer(t *testing.T, name string) (*httptest.Server, types.ServiceAnnouncement) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"service_name": name,
			"capabilities": []string{"echo"},
			"methods":      []string{"ask", "tell", "do"},
			"status":       "running",
		})
	})
	handle := func(method string, result func(types.Request) any) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			var req types.Request
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			_ = json.NewEncoder(w).Encode(types.OK(name, method, result(req)))
		}
	}
	mux.HandleFunc("POST /ask", handle("ask", func(r types.Request) any { return "Echo:" + r.Query }))
	mux.HandleFunc("POST /tell", handle("tell", func(r types.Request) any { return r.Format + ":" + toString(r.Data) }))
	mux.HandleFunc("POST /do", handle("do", func(r types.Request) any { return "did " + r.Action }))
	mux.HandleFunc("POST /call/{method}", func(w http.ResponseWriter, r *http.Request) {
		var req types.Request
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(types.OK(name, r.PathValue("method"), len(req.Args)))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, announcementFor(t, name, srv.URL)
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func announcementFor(t *testing.T, name, rawURL string) types.ServiceAnnouncement {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return types.ServiceAnnouncement{Name: name, Host: host, Port: port, Source: types.SourceNetwork}
}

// closedPort 返回一个当前无人监听的端口
func closedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func asResponse(t *testing.T, v any, err error) *types.Response {
	t.Helper()
	require.NoError(t, err)
	resp, ok := v.(*types.Response)
	require.True(t, ok, "期望 *types.Response，得到 %T", v)
	return resp
}

func TestProxy_Verbs(t *testing.T) {
	_, ann := echoServer(t, "TestSvc")
	p := New(ann)
	ctx := context.Background()

	t.Run("ask", func(t *testing.T) {
		out, callErr := p.Ask(ctx, "hi", nil)
		resp := asResponse(t, out, callErr)
		assert.True(t, resp.Success)
		assert.Equal(t, "Echo:hi", resp.Result)
		assert.Equal(t, "TestSvc", resp.ServiceName)
		assert.Equal(t, "ask", resp.Method)
		assert.Empty(t, resp.Error)
	})

	t.Run("tell", func(t *testing.T) {
		out, callErr := p.Tell(ctx, "json", "x")
		resp := asResponse(t, out, callErr)
		assert.True(t, resp.Success)
		assert.Equal(t, "json:x", resp.Result)
	})

	t.Run("do", func(t *testing.T) {
		out, callErr := p.Do(ctx, "cleanup", nil)
		resp := asResponse(t, out, callErr)
		assert.True(t, resp.Success)
		assert.Equal(t, "did cleanup", resp.Result)
	})

	t.Run("Unwrap取出结果", func(t *testing.T) {
		out, callErr := p.Ask(ctx, "hi", nil)
		require.NoError(t, callErr)
		v, err := types.Unwrap(out)
		require.NoError(t, err)
		assert.Equal(t, "Echo:hi", v)
	})
}

func TestProxy_Call(t *testing.T) {
	_, ann := echoServer(t, "TestSvc")
	p := New(ann)
	ctx := context.Background()

	tests := []struct {
		name   string
		method string
		args   []any
		want   any
	}{
		{"标准动词ask", "ask", []any{"hi"}, "Echo:hi"},
		{"标准动词tell", "tell", []any{"text", "body"}, "text:body"},
		{"标准动词do", "do", []any{"sync"}, "did sync"},
		{"任意方法名映射为do", "get_user", []any{"alice", 3}, "did get_user alice 3"},
		{"无参数方法", "refresh", nil, "did refresh"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, callErr := p.Call(ctx, tt.method, tt.args...)
			resp := asResponse(t, out, callErr)
			assert.True(t, resp.Success)
			assert.Equal(t, tt.want, resp.Result)
		})
	}
}

func TestProxy_Invoke(t *testing.T) {
	_, ann := echoServer(t, "TestSvc")
	p := New(ann)

	resp := p.Invoke(context.Background(), "get user", []any{1, 2}, nil)
	require.NotNil(t, resp)
	assert.True(t, resp.Success)
	assert.Equal(t, "get user", resp.Method)
	assert.EqualValues(t, 2, resp.Result)
}

func TestProxy_Info(t *testing.T) {
	_, ann := echoServer(t, "TestSvc")
	p := New(ann)

	info, err := p.Info(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "TestSvc", info["service_name"])
	assert.Equal(t, "running", info["status"])
	assert.True(t, p.Ping(context.Background()))
}

func TestProxy_Unreachable(t *testing.T) {
	ann := types.ServiceAnnouncement{Name: "TestSvc", Host: "127.0.0.1", Port: closedPort(t)}
	p := New(ann)
	ctx := context.Background()

	for _, verb := range []string{"ask", "tell", "do"} {
		t.Run(verb, func(t *testing.T) {
			out, callErr := p.Call(ctx, verb, "x")
			resp := asResponse(t, out, callErr)
			assert.False(t, resp.Success)
			assert.Nil(t, resp.Result)
			assert.True(t, strings.HasPrefix(resp.Error, "Network service TestSvc unavailable: "), resp.Error)
			assert.Equal(t, verb, resp.Method)
		})
	}

	assert.False(t, p.Ping(ctx))

	out, callErr := p.Ask(ctx, "x", nil)
	require.NoError(t, callErr)
	_, err := types.Unwrap(out)
	var re *types.RemoteError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "TestSvc", re.Service)
}

func TestProxy_NoAddress(t *testing.T) {
	p := New(types.ServiceAnnouncement{Name: "Local Only"})
	out, callErr := p.Ask(context.Background(), "x", nil)
	resp := asResponse(t, out, callErr)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, ErrNoAddress.Error())
}

func TestProxy_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	p := New(announcementFor(t, "Broken", srv.URL))
	out, callErr := p.Ask(context.Background(), "x", nil)
	resp := asResponse(t, out, callErr)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "HTTP 500")
	assert.Contains(t, resp.Error, "boom")
}

func TestProxy_LenientResponse(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		success bool
		errMsg  string
	}{
		{"缺少success且无错误", `{"result": 1}`, true, ""},
		{"缺少success但有错误", `{"error": "bad"}`, false, "bad"},
		{"显式失败", `{"success": false, "error": "nope"}`, false, "nope"},
		{"非JSON响应", `<html>`, false, "Network service Lenient unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := New(announcementFor(t, "Lenient", srv.URL))
			out, callErr := p.Do(context.Background(), "x", nil)
			resp := asResponse(t, out, callErr)
			assert.Equal(t, tt.success, resp.Success)
			assert.Equal(t, "Lenient", resp.ServiceName)
			assert.Equal(t, "do", resp.Method)
			if tt.errMsg != "" {
				assert.Contains(t, resp.Error, tt.errMsg)
			}
		})
	}
}

func TestProxy_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	cfg := DefaultConfig()
	cfg.Timeouts = map[string]time.Duration{"ask": 50 * time.Millisecond}
	p := New(announcementFor(t, "Slow", srv.URL), WithConfig(cfg))

	start := time.Now()
	out, callErr := p.Ask(context.Background(), "x", nil)
	resp := asResponse(t, out, callErr)
	assert.False(t, resp.Success)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestProxy_CoercesUnserializableData(t *testing.T) {
	var got types.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(types.OK("Coerce", "tell", "ok"))
	}))
	t.Cleanup(srv.Close)

	p := New(announcementFor(t, "Coerce", srv.URL))
	out, callErr := p.Tell(context.Background(), "text", make(chan int))
	resp := asResponse(t, out, callErr)
	assert.True(t, resp.Success)
	assert.IsType(t, "", got.Data)
}

func TestProxy_ReportsTraffic(t *testing.T) {
	_, ann := echoServer(t, "Counted")
	counter := metrics.NewTrafficCounter()
	p := New(ann, WithReporter(counter))

	_, _ = p.Ask(context.Background(), "hi", nil)

	st := counter.ForService("Counted")
	assert.EqualValues(t, 1, st.Calls)
	assert.Positive(t, st.TotalOut)
	assert.Positive(t, st.TotalIn)
}

func TestConfig_TimeoutFor(t *testing.T) {
	cfg := Config{Timeout: time.Second, Timeouts: map[string]time.Duration{"ask": 2 * time.Second}}
	assert.Equal(t, 2*time.Second, cfg.timeoutFor("ask"))
	assert.Equal(t, time.Second, cfg.timeoutFor("do"))
	assert.Equal(t, 30*time.Second, Config{}.timeoutFor("do"))
}

func TestFactory(t *testing.T) {
	_, ann := echoServer(t, "Made")
	counter := metrics.NewTrafficCounter()
	cfg := DefaultConfig()
	cfg.Timeout = 3 * time.Second
	f := NewFactory(cfg, counter)

	p := f.New(ann)
	assert.Equal(t, "Made", p.Name())
	assert.Equal(t, 3*time.Second, f.Config().Timeout)

	out, callErr := p.Ask(context.Background(), "hi", nil)
	resp := asResponse(t, out, callErr)
	assert.True(t, resp.Success)
	assert.EqualValues(t, 1, counter.ForService("Made").Calls)
}
