package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

var log = logger.Logger("remote")

// 确保实现接口
var (
	_ interfaces.Service = (*Proxy)(nil)
	_ interfaces.Caller  = (*Proxy)(nil)
)

// Proxy 远程服务代理
type Proxy struct {
	ann      types.ServiceAnnouncement
	baseURL  string
	client   *http.Client
	cfg      Config
	reporter metrics.Reporter
}

// Option 代理选项
type Option func(*Proxy)

// WithConfig 设置代理配置
func WithConfig(cfg Config) Option {
	return func(p *Proxy) { p.cfg = cfg }
}

// WithClient 设置 HTTP 客户端
func WithClient(c *http.Client) Option {
	return func(p *Proxy) { p.client = c }
}

// WithReporter 设置流量统计
func WithReporter(r metrics.Reporter) Option {
	return func(p *Proxy) {
		if r != nil {
			p.reporter = r
		}
	}
}

// DefaultClient 代理共用的 HTTP 客户端
//
// 超时由每个请求的 context 控制，客户端本身不设超时。
var DefaultClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        64,
		MaxIdleConnsPerHost: 8,
		IdleConnTimeout:     90 * time.Second,
	},
}

// New 为服务宣告创建代理
func New(ann types.ServiceAnnouncement, opts ...Option) *Proxy {
	p := &Proxy{
		ann:      ann.Clone(),
		baseURL:  "http://" + ann.Addr(),
		client:   DefaultClient,
		cfg:      DefaultConfig(),
		reporter: metrics.NopReporter(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name 返回服务名
func (p *Proxy) Name() string {
	return p.ann.Name
}

// BaseURL 返回服务根地址
func (p *Proxy) BaseURL() string {
	return p.baseURL
}

// Announcement 返回代理绑定的服务宣告
func (p *Proxy) Announcement() types.ServiceAnnouncement {
	return p.ann.Clone()
}

// String 实现 fmt.Stringer
func (p *Proxy) String() string {
	return fmt.Sprintf("remote(%s@%s)", p.ann.Name, p.ann.Addr())
}

// ============================================================================
//                              三动词
// ============================================================================

// Ask 发送 POST /ask {query, kwargs}
func (p *Proxy) Ask(ctx context.Context, query string, kwargs map[string]any) (any, error) {
	return p.post(ctx, types.VerbAsk, "/ask", types.Request{Query: query, Kwargs: kwargs}), nil
}

// Tell 发送 POST /tell {format, data}
func (p *Proxy) Tell(ctx context.Context, format string, data any) (any, error) {
	return p.post(ctx, types.VerbTell, "/tell", types.Request{Format: format, Data: data}), nil
}

// Do 发送 POST /do {action, kwargs}
func (p *Proxy) Do(ctx context.Context, action string, kwargs map[string]any) (any, error) {
	return p.post(ctx, types.VerbDo, "/do", types.Request{Action: action, Kwargs: kwargs}), nil
}

// Call 调用任意方法名
//
// ask/tell/do 按标准动词分派（第一个参数为查询、格式或动作，
// tell 的第二个参数为数据）；其余方法名转换为
// do(method + " " + args...)。
func (p *Proxy) Call(ctx context.Context, method string, args ...any) (any, error) {
	switch method {
	case types.VerbAsk:
		return p.Ask(ctx, argString(args, 0), nil)
	case types.VerbTell:
		var data any
		if len(args) > 1 {
			data = args[1]
		}
		return p.Tell(ctx, argString(args, 0), data)
	case types.VerbDo:
		return p.Do(ctx, argString(args, 0), nil)
	}
	return p.Do(ctx, methodAction(method, args), nil)
}

// Invoke 发送 POST /call/{method} {args, kwargs}
func (p *Proxy) Invoke(ctx context.Context, method string, args []any, kwargs map[string]any) *types.Response {
	return p.post(ctx, method, "/call/"+url.PathEscape(method), types.Request{Args: args, Kwargs: kwargs})
}

func methodAction(method string, args []any) string {
	if len(args) == 0 {
		return method
	}
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, method)
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, " ")
}

func argString(args []any, i int) string {
	if i >= len(args) {
		return ""
	}
	if s, ok := args[i].(string); ok {
		return s
	}
	return fmt.Sprint(args[i])
}

// ============================================================================
//                              元数据
// ============================================================================

// Info 获取服务元数据（GET /）
func (p *Proxy) Info(ctx context.Context) (map[string]any, error) {
	timeout := p.cfg.InfoTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().InfoTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/", nil)
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	var info map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, p.cfg.MaxResponseBytes)).Decode(&info); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	return info, nil
}

// Ping 服务是否可达
func (p *Proxy) Ping(ctx context.Context) bool {
	_, err := p.Info(ctx)
	return err == nil
}

// ============================================================================
//                              请求
// ============================================================================

// wireResponse 宽松解析响应，兼容缺少 success 字段的服务
type wireResponse struct {
	Result      any     `json:"result"`
	Success     *bool   `json:"success"`
	Error       *string `json:"error"`
	ServiceName string  `json:"service_name"`
	Method      string  `json:"method"`
}

// post 发送请求，失败时返回 Success=false 的响应，从不返回 nil
func (p *Proxy) post(ctx context.Context, method, path string, body types.Request) *types.Response {
	start := time.Now()
	resp, err := p.roundTrip(ctx, method, path, body)
	if err != nil {
		log.Debug("远程调用失败", "service", p.ann.Name, "method", method, "addr", p.ann.Addr(), "error", err)
		resp = types.Fail(p.ann.Name, method, fmt.Sprintf("Network service %s unavailable: %v", p.ann.Name, err))
	}
	metrics.RecordProxyRequest(p.ann.Name, method, resp.Success, time.Since(start))
	return resp
}

func (p *Proxy) roundTrip(ctx context.Context, method, path string, body types.Request) (*types.Response, error) {
	if p.ann.Port <= 0 {
		return nil, ErrNoAddress
	}
	payload, err := encodeRequest(body)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.timeoutFor(method))
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.reporter.LogSent(p.ann.Name, int64(len(payload)))
	httpResp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(httpResp.Body, p.cfg.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("读取响应失败: %w", err)
	}
	p.reporter.LogRecv(p.ann.Name, int64(len(raw)))

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", httpResp.StatusCode, strings.TrimSpace(string(truncate(raw, 200))))
	}

	var w wireResponse
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}

	out := &types.Response{
		Result:      w.Result,
		ServiceName: w.ServiceName,
		Method:      w.Method,
	}
	if w.Error != nil {
		out.Error = *w.Error
	}
	if w.Success != nil {
		out.Success = *w.Success
	} else {
		out.Success = out.Error == ""
	}
	if out.ServiceName == "" {
		out.ServiceName = p.ann.Name
	}
	if out.Method == "" {
		out.Method = method
	}
	return out, nil
}

// encodeRequest 序列化请求体
//
// data 或 kwargs 无法序列化时退化为字符串表示。
func encodeRequest(body types.Request) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err == nil {
		return payload, nil
	}
	if body.Data != nil {
		if _, derr := json.Marshal(body.Data); derr != nil {
			body.Data = fmt.Sprint(body.Data)
		}
	}
	body.Kwargs = coerceMap(body.Kwargs)
	for i, a := range body.Args {
		if _, aerr := json.Marshal(a); aerr != nil {
			body.Args[i] = fmt.Sprint(a)
		}
	}
	return json.Marshal(body)
}

func coerceMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		if _, err := json.Marshal(v); err != nil {
			out[k] = fmt.Sprint(v)
		} else {
			out[k] = v
		}
	}
	return out
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
