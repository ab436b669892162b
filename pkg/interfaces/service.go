// Package interfaces 定义 capmesh 的公共接口
//
//   - service.go - 三动词服务契约（ask/tell/do）
package interfaces

import "context"

// Asker 自然语言查询
type Asker interface {
	Ask(ctx context.Context, query string, kwargs map[string]any) (any, error)
}

// Teller 按格式输出数据，结果通常为字符串
type Teller interface {
	Tell(ctx context.Context, format string, data any) (any, error)
}

// Doer 执行动作
type Doer interface {
	Do(ctx context.Context, action string, kwargs map[string]any) (any, error)
}

// Service 三动词服务契约
//
// 外部领域服务只需实现这三个方法即可被定位、代理、缓存和暴露。
// 本地实例返回原始结果；远程代理返回 *types.Response，并且从不返回 error，
// 调用方可以用 types.Unwrap 统一处理两种情况。
type Service interface {
	Asker
	Teller
	Doer
}

// Caller 支持任意方法名调用的服务
//
// 远程代理把非标准方法名转换为 do(method + " " + args)。
type Caller interface {
	Call(ctx context.Context, method string, args ...any) (any, error)
}
