package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dep2p/go-capmesh/pkg/types"
)

// 值类型标记，持久层读回时按此还原
const (
	kindRaw      = ""
	kindResponse = "response"
)

// Entry 持久层条目
type Entry struct {
	Key          string          `json:"key"`
	Service      string          `json:"service"`
	Method       string          `json:"method"`
	Kind         string          `json:"kind,omitempty"`
	Value        json.RawMessage `json:"value"`
	CreatedAt    time.Time       `json:"created_at"`
	ExpiresAt    time.Time       `json:"expires_at"`
	HitCount     int64           `json:"hit_count"`
	LastAccessed time.Time       `json:"last_accessed"`
}

// Expired 在 now 时刻是否已过期
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && !now.Before(e.ExpiresAt)
}

// Decode 还原缓存的值
//
// *types.Response 类型的值还原为 *types.Response，其余按 JSON 通用类型还原。
func (e *Entry) Decode() (any, error) {
	if e.Kind == kindResponse {
		var resp types.Response
		if err := json.Unmarshal(e.Value, &resp); err != nil {
			return nil, err
		}
		return &resp, nil
	}
	var v any
	if err := json.Unmarshal(e.Value, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// encodeValue 序列化值，无法序列化时退化为字符串表示
func encodeValue(v any) (raw json.RawMessage, kind string) {
	if _, ok := v.(*types.Response); ok {
		kind = kindResponse
	}
	b, err := json.Marshal(v)
	if err != nil {
		b, _ = json.Marshal(fmt.Sprint(v))
		kind = kindRaw
	}
	return b, kind
}

// ramEntry 内存层条目，保存原始值
type ramEntry struct {
	service   string
	method    string
	value     any
	createdAt time.Time
	expiresAt time.Time
	hits      int64
}

func (e *ramEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}
