package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/minio/sha256-simd"
)

// keyLen 键长度（十六进制字符）
const keyLen = 32

// Call 一次可缓存的调用
type Call struct {
	Service string
	Method  string
	Args    []any
	Kwargs  map[string]any
}

// keyMaterial 参与哈希的内容
//
// encoding/json 按键排序输出 map，因此 kwargs 的顺序不影响结果。
type keyMaterial struct {
	Service string         `json:"service"`
	Method  string         `json:"method"`
	Args    []any          `json:"args"`
	Kwargs  map[string]any `json:"kwargs"`
}

// Key 返回调用的缓存键：SHA-256 的前 32 个十六进制字符
func (c Call) Key() string {
	m := keyMaterial{Service: c.Service, Method: c.Method, Args: c.Args, Kwargs: c.Kwargs}
	if m.Args == nil {
		m.Args = []any{}
	}
	if m.Kwargs == nil {
		m.Kwargs = map[string]any{}
	}
	raw, err := json.Marshal(m)
	if err != nil {
		raw = []byte(fmt.Sprintf("%s\x00%s\x00%v\x00%v", c.Service, c.Method, c.Args, c.Kwargs))
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])[:keyLen]
}

// Key 计算调用的缓存键
func Key(service, method string, args []any, kwargs map[string]any) string {
	return Call{Service: service, Method: method, Args: args, Kwargs: kwargs}.Key()
}
