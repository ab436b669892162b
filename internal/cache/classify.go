package cache

import (
	"strings"

	"github.com/dep2p/go-capmesh/pkg/types"
)

// writeKeywords 出现在 ask 查询中即视为写操作
var writeKeywords = []string{"update", "insert", "delete", "create", "drop", "alter", "set", "reset"}

// IsWrite 判断调用是否为写操作
//
// do 一律视为写操作；ask 的查询文本（忽略大小写）包含任一写关键字时
// 视为写操作；其余为读操作。
func IsWrite(method string, args []any) bool {
	switch method {
	case types.VerbDo:
		return true
	case types.VerbAsk:
		if len(args) == 0 {
			return false
		}
		query, ok := args[0].(string)
		if !ok {
			return false
		}
		return containsWriteKeyword(query)
	}
	return false
}

func containsWriteKeyword(query string) bool {
	q := strings.ToLower(query)
	for _, kw := range writeKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
