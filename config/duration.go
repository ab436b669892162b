package config

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Duration 可从 JSON 字符串或秒数解析的时长
//
//	{"default_ttl": "1h30m"}
//	{"default_ttl": 5400}
//	{"timeout": 0.5}
//
// 数字按秒计，与缓存 TTL 的常见写法一致。
type Duration time.Duration

// UnmarshalJSON 解析 "30s" 形式的字符串或以秒为单位的数字
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch x := v.(type) {
	case string:
		parsed, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", x, err)
		}
		*d = Duration(parsed)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) || x > math.MaxInt64/float64(time.Second) {
			return fmt.Errorf("config: duration %v out of range", x)
		}
		*d = Duration(x * float64(time.Second))
	default:
		return fmt.Errorf("config: duration must be a string like \"30s\" or seconds, got %s", data)
	}
	return nil
}

// MarshalJSON 输出 "1h0m0s" 形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// Duration 返回 time.Duration
func (d Duration) Duration() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }
