package main

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dep2p/go-capmesh"
	"github.com/dep2p/go-capmesh/pkg/interfaces"
)

// echoService 回显服务，用于验证暴露与代理链路
type echoService struct {
	calls atomic.Int64
}

var _ interfaces.Service = (*echoService)(nil)

func (e *echoService) Ask(_ context.Context, query string, _ map[string]any) (any, error) {
	e.calls.Add(1)
	return "Echo: " + query, nil
}

func (e *echoService) Tell(_ context.Context, format string, data any) (any, error) {
	e.calls.Add(1)
	return fmt.Sprintf("%s: %v", format, data), nil
}

func (e *echoService) Do(_ context.Context, action string, kwargs map[string]any) (any, error) {
	e.calls.Add(1)
	return map[string]any{"action": action, "kwargs": kwargs}, nil
}

// Calls 返回累计调用次数
func (e *echoService) Calls() int64 {
	return e.calls.Load()
}

func echoCapability() capmesh.Capability {
	return capmesh.Capability{
		Name:        "echo",
		Description: "回显查询内容",
		Recipe: func(context.Context) (interfaces.Service, error) {
			return &echoService{}, nil
		},
		Capabilities: []string{"echo", "回显"},
		Examples:     []string{"ask hello"},
	}
}
