package expose

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindMethod(t *testing.T) {
	v := reflect.ValueOf(echoService{})

	for _, name := range []string{"get_user", "GetUser", "getuser", "GET_USER"} {
		_, ok := findMethod(v, name)
		assert.True(t, ok, name)
	}

	_, ok := findMethod(v, "missing")
	assert.False(t, ok)
	_, ok = findMethod(v, "_")
	assert.False(t, ok)
	_, ok = findMethod(reflect.Value{}, "get")
	assert.False(t, ok)
}

func TestInvokeMethod(t *testing.T) {
	v := reflect.ValueOf(echoService{})
	ctx := context.Background()

	tests := []struct {
		name    string
		method  string
		args    []any
		kwargs  map[string]any
		want    any
		wantErr error
		errMsg  string
	}{
		{"JSON数字转换为int", "GetUser", []any{float64(7)}, nil, map[string]any{"id": 7}, nil, ""},
		{"方法返回错误", "GetUser", []any{float64(-1)}, nil, nil, nil, "bad id"},
		{"自动传入context和kwargs", "Search", []any{"go"}, map[string]any{"limit": 5}, []string{"go", "5"}, nil, ""},
		{"可变参数", "Sum", []any{float64(1), float64(2), float64(3)}, nil, 6, nil, ""},
		{"可变参数为空", "Sum", nil, nil, 0, nil, ""},
		{"仅返回error", "Touch", nil, nil, nil, nil, ""},
		{"参数过多", "Get", []any{"a", "b"}, nil, nil, ErrBadArguments, ""},
		{"参数不足", "Get", nil, nil, nil, ErrBadArguments, ""},
		{"参数类型错误", "GetUser", []any{"x"}, nil, nil, ErrBadArguments, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := findMethod(v, tt.method)
			require.True(t, ok)

			got, err := invokeMethod(ctx, m, tt.args, tt.kwargs)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			if tt.errMsg != "" {
				assert.EqualError(t, err, tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitResults_Multiple(t *testing.T) {
	fn := func() (int, string, error) { return 1, "a", nil }
	got, err := splitResults(reflect.ValueOf(fn).Call(nil))
	require.NoError(t, err)
	assert.Equal(t, []any{1, "a"}, got)
}
