package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsWrite(t *testing.T) {
	tests := []struct {
		name   string
		method string
		args   []any
		want   bool
	}{
		{"do总是写操作", "do", []any{"refresh"}, true},
		{"do无参数", "do", nil, true},
		{"普通查询", "ask", []any{"show players"}, false},
		{"update", "ask", []any{"update player 5"}, true},
		{"大写DELETE", "ask", []any{"DELETE FROM t"}, true},
		{"reset", "ask", []any{"reset counters"}, true},
		{"create", "ask", []any{"create tournament"}, true},
		{"查询不是字符串", "ask", []any{42}, false},
		{"ask无参数", "ask", nil, false},
		{"tell从不是写操作", "tell", []any{"update"}, false},
		{"其他方法", "get_user", []any{"delete"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsWrite(tt.method, tt.args))
		})
	}
}
