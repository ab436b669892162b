package capability

import (
	"context"
	"strings"

	"github.com/dep2p/go-capmesh/pkg/interfaces"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// Recipe 本地实例构建方法
type Recipe func(ctx context.Context) (interfaces.Service, error)

// Capability 能力定义
type Capability struct {
	// Name 能力名，如 "database"
	Name string

	// Description 一句话描述，宣告时作为默认能力描述
	Description string

	// Recipe 本地构建方法
	Recipe Recipe

	// ExposeOverNetwork 本地构建成功后通过 HTTP 暴露并进行网络宣告
	ExposeOverNetwork bool

	// Port 暴露端口，0 表示临时端口
	Port int

	// Capabilities 宣告的能力描述，为空时使用 Description
	Capabilities []string

	// Examples 宣告的使用示例
	Examples []string

	// CachePolicies 覆盖默认缓存策略
	CachePolicies types.CachePolicies
}

// Announced 返回宣告时使用的能力描述
func (c Capability) Announced() []string {
	if len(c.Capabilities) > 0 {
		return append([]string(nil), c.Capabilities...)
	}
	if c.Description != "" {
		return []string{c.Description}
	}
	return []string{c.Name}
}

// Policies 返回该能力的缓存策略
//
// 合并顺序：通用默认策略、按能力名的内置默认、Capability.CachePolicies。
func (c Capability) Policies() types.CachePolicies {
	return PoliciesFor(c.Name).Merge(c.CachePolicies)
}

func validName(name string) bool {
	if name == "" || len(name) > 63 {
		return false
	}
	return !strings.ContainsAny(name, " \t\r\n/")
}
