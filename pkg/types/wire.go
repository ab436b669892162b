package types

import (
	"encoding/json"
	"fmt"
)

// ============================================================================
//                              HTTP 线路格式
// ============================================================================

// 三个标准动词
const (
	VerbAsk  = "ask"
	VerbTell = "tell"
	VerbDo   = "do"
)

// IsVerb 判断方法名是否为标准动词
func IsVerb(method string) bool {
	switch method {
	case VerbAsk, VerbTell, VerbDo:
		return true
	}
	return false
}

// Request 服务调用请求体
//
// ask 使用 Query，tell 使用 Format/Data，do 使用 Action，
// /call/{method} 使用 Args/Kwargs。
type Request struct {
	Query  string         `json:"query,omitempty"`
	Format string         `json:"format,omitempty"`
	Action string         `json:"action,omitempty"`
	Data   any            `json:"data,omitempty"`
	Args   []any          `json:"args,omitempty"`
	Kwargs map[string]any `json:"kwargs,omitempty"`
}

// Response 服务调用响应体
//
// 远程代理与网络暴露服务共用此结构。Error 为空时序列化为 null。
type Response struct {
	Result      any    `json:"result"`
	Success     bool   `json:"success"`
	Error       string `json:"error"`
	ServiceName string `json:"service_name"`
	Method      string `json:"method"`
}

// MarshalJSON 把空 Error 输出为 null
func (r Response) MarshalJSON() ([]byte, error) {
	type alias Response
	var errField *string
	if r.Error != "" {
		errField = &r.Error
	}
	return json.Marshal(struct {
		alias
		Error *string `json:"error"`
	}{alias(r), errField})
}

// OK 构造成功响应
func OK(service, method string, result any) *Response {
	return &Response{Result: result, Success: true, ServiceName: service, Method: method}
}

// Fail 构造失败响应
func Fail(service, method string, err string) *Response {
	return &Response{Success: false, Error: err, ServiceName: service, Method: method}
}

// RemoteError 远程调用失败
type RemoteError struct {
	Service string
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Service, e.Method, e.Message)
}

// Unwrap 把调用结果统一成 (result, error)
//
// 本地实例返回的原始值原样返回；远程代理返回的 *Response
// 在成功时取出 Result，失败时转成 *RemoteError。
func Unwrap(v any) (any, error) {
	resp, ok := v.(*Response)
	if !ok {
		return v, nil
	}
	if !resp.Success {
		return nil, &RemoteError{Service: resp.ServiceName, Method: resp.Method, Message: resp.Error}
	}
	return resp.Result, nil
}
