package capability

import (
	"time"

	"github.com/dep2p/go-capmesh/pkg/types"
)

// 按能力名的内置缓存策略
var builtinPolicies = map[string]types.CachePolicies{
	"database": {
		types.VerbAsk:  {Enabled: true, TTL: 30 * time.Minute, InvalidateOnWrite: true},
		types.VerbTell: {Enabled: true, TTL: 15 * time.Minute},
	},
	"logger": {
		types.VerbAsk:  {Enabled: true, TTL: 5 * time.Minute, InvalidateOnWrite: true},
		types.VerbTell: {Enabled: true, TTL: 10 * time.Minute},
	},
	"config": {
		types.VerbAsk:  {Enabled: true, TTL: time.Hour, InvalidateOnWrite: true},
		types.VerbTell: {Enabled: true, TTL: 30 * time.Minute},
	},
}

// PoliciesFor 返回能力名对应的默认缓存策略
func PoliciesFor(name string) types.CachePolicies {
	return types.DefaultCachePolicies().Merge(builtinPolicies[name])
}
