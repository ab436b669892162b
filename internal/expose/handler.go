package expose

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"time"

	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// maxRequestBytes 请求体上限
const maxRequestBytes = 32 << 20

// handler 单个暴露服务的 HTTP 处理器
type handler struct {
	name     string
	instance any
	caps     func() []string
	reporter metrics.Reporter
	started  time.Time
}

// routes 构建路由
func (h *handler) routes(enableMetrics bool) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", h.handleInfo)
	mux.HandleFunc("GET /health", h.handleHealth)

	mux.HandleFunc("POST /ask", h.verb(types.VerbAsk, h.ask))
	mux.HandleFunc("POST /tell", h.verb(types.VerbTell, h.tell))
	mux.HandleFunc("POST /do", h.verb(types.VerbDo, h.do))
	mux.HandleFunc("POST /call/{method}", h.handleCall)

	if enableMetrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}

	return withCORS(mux)
}

// withCORS 允许任意来源访问
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr := w.Header()
		hdr.Set("Access-Control-Allow-Origin", "*")
		hdr.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		hdr.Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ============================================================================
//                              HTTP 处理器
// ============================================================================

// handleInfo 服务元数据
func (h *handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"service_name": h.name,
		"capabilities": h.caps(),
		"methods":      []string{types.VerbAsk, types.VerbTell, types.VerbDo},
		"status":       "running",
	})
}

// handleHealth 健康检查
func (h *handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"service":    h.name,
		"started_at": h.started,
		"timestamp":  time.Now(),
	})
}

type verbFunc func(ctx context.Context, req types.Request) (any, error)

// verb 包装标准动词处理
func (h *handler) verb(method string, fn verbFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := h.readRequest(w, r, method)
		if !ok {
			return
		}
		h.respond(w, method, h.safeCall(method, func() (any, error) {
			return fn(r.Context(), req)
		}))
	}
}

func (h *handler) ask(ctx context.Context, req types.Request) (any, error) {
	s, ok := h.instance.(interfaces.Asker)
	if !ok {
		return nil, fmt.Errorf("%s %w", types.VerbAsk, ErrMethodNotFound)
	}
	return s.Ask(ctx, req.Query, req.Kwargs)
}

func (h *handler) tell(ctx context.Context, req types.Request) (any, error) {
	s, ok := h.instance.(interfaces.Teller)
	if !ok {
		return nil, fmt.Errorf("%s %w", types.VerbTell, ErrMethodNotFound)
	}
	return s.Tell(ctx, req.Format, req.Data)
}

func (h *handler) do(ctx context.Context, req types.Request) (any, error) {
	s, ok := h.instance.(interfaces.Doer)
	if !ok {
		return nil, fmt.Errorf("%s %w", types.VerbDo, ErrMethodNotFound)
	}
	return s.Do(ctx, req.Action, req.Kwargs)
}

// handleCall 反射调用任意导出方法
func (h *handler) handleCall(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")
	req, ok := h.readRequest(w, r, method)
	if !ok {
		return
	}
	h.respond(w, method, h.safeCall(method, func() (any, error) {
		m, found := findMethod(reflect.ValueOf(h.instance), method)
		if !found {
			return nil, fmt.Errorf("Method %s not available", method)
		}
		return invokeMethod(r.Context(), m, req.Args, req.Kwargs)
	}))
}

// ============================================================================
//                              辅助方法
// ============================================================================

// readRequest 解析请求体，空请求体视为空请求
func (h *handler) readRequest(w http.ResponseWriter, r *http.Request, method string) (types.Request, bool) {
	var req types.Request
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		h.writeJSON(w, http.StatusBadRequest, types.Fail(h.name, method, "read request: "+err.Error()))
		return req, false
	}
	h.reporter.LogRecv(h.name, int64(len(raw)))
	if len(raw) == 0 {
		return req, true
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, types.Fail(h.name, method, "invalid request: "+err.Error()))
		return req, false
	}
	return req, true
}

// safeCall 执行调用，把 error 和 panic 转为失败响应
func (h *handler) safeCall(method string, fn func() (any, error)) (resp *types.Response) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			log.Error("服务调用 panic", "service", h.name, "method", method, "panic", r)
			resp = types.Fail(h.name, method, fmt.Sprintf("panic: %v", r))
		}
		metrics.RecordExposeRequest(h.name, method, resp.Success, time.Since(start))
	}()

	result, err := fn()
	if err != nil {
		return types.Fail(h.name, method, err.Error())
	}
	return types.OK(h.name, method, result)
}

// respond 写入调用响应
//
// 结果无法序列化时退化为字符串表示。
func (h *handler) respond(w http.ResponseWriter, method string, resp *types.Response) {
	body, err := json.Marshal(resp)
	if err != nil {
		resp.Result = fmt.Sprint(resp.Result)
		if body, err = json.Marshal(resp); err != nil {
			body, _ = json.Marshal(types.Fail(h.name, method, "encode result: "+err.Error()))
		}
	}
	h.write(w, http.StatusOK, body)
}

// writeJSON 写入 JSON 响应
func (h *handler) writeJSON(w http.ResponseWriter, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Error("JSON 编码失败", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	h.write(w, status, body)
}

func (h *handler) write(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	n, _ := w.Write(append(body, '\n'))
	h.reporter.LogSent(h.name, int64(n))
}
