package expose

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dep2p/go-capmesh/pkg/interfaces"
)

// commonMethods 会被描述为能力的常见方法前缀
var commonMethods = []string{"get", "create", "update", "delete", "list", "find", "search"}

// DetectCapabilities 根据实例实现的方法生成能力描述
//
// 三动词各生成一条描述；名为 Get/Create/Update/Delete/List/Find/Search
// 的导出方法各生成一条；什么都没有时返回 "General <name> service"。
func DetectCapabilities(name string, instance any) []string {
	var caps []string
	if _, ok := instance.(interfaces.Asker); ok {
		caps = append(caps, fmt.Sprintf("ask() - Query %s with natural language", name))
	}
	if _, ok := instance.(interfaces.Teller); ok {
		caps = append(caps, fmt.Sprintf("tell() - Format %s data for output", name))
	}
	if _, ok := instance.(interfaces.Doer); ok {
		caps = append(caps, fmt.Sprintf("do() - Perform %s actions", name))
	}

	if instance != nil {
		v := reflect.ValueOf(instance)
		for _, m := range commonMethods {
			if _, ok := findMethod(v, m); ok {
				caps = append(caps, fmt.Sprintf("%s() - %s operations", m, strings.ToUpper(m[:1])+m[1:]))
			}
		}
	}

	if len(caps) == 0 {
		caps = append(caps, fmt.Sprintf("General %s service", name))
	}
	return caps
}

// examplesFor 生成宣告示例
func examplesFor(host string, port int) []string {
	return []string{
		fmt.Sprintf("Access via HTTP at http://%s:%d", host, port),
		"ask: POST /ask",
		"tell: POST /tell",
		"do: POST /do",
	}
}
