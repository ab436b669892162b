package expose

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	kwargsType  = reflect.TypeOf(map[string]any(nil))
)

func normalizeMethod(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

// findMethod 按名称查找导出方法，忽略大小写和下划线
func findMethod(v reflect.Value, name string) (reflect.Value, bool) {
	if !v.IsValid() {
		return reflect.Value{}, false
	}
	want := normalizeMethod(name)
	if want == "" {
		return reflect.Value{}, false
	}
	t := v.Type()
	for i := 0; i < t.NumMethod(); i++ {
		if normalizeMethod(t.Method(i).Name) == want {
			return v.Method(i), true
		}
	}
	return reflect.Value{}, false
}

// invokeMethod 以 JSON 解码得到的参数调用方法
//
// 第一个参数为 context.Context 时自动传入 ctx；剩余参数个数恰好多一个
// 且类型为 map[string]any 时传入 kwargs。返回值支持 ()、(v)、
// (error)、(v, error)，更多返回值以切片形式返回。
func invokeMethod(ctx context.Context, m reflect.Value, args []any, kwargs map[string]any) (any, error) {
	mt := m.Type()
	fixed := mt.NumIn()
	if mt.IsVariadic() {
		fixed--
	}

	in := make([]reflect.Value, 0, mt.NumIn()+len(args))
	i := 0
	if fixed > 0 && mt.In(0) == contextType {
		in = append(in, reflect.ValueOf(ctx))
		i = 1
	}

	for _, a := range args {
		var pt reflect.Type
		switch {
		case i < fixed:
			pt = mt.In(i)
		case mt.IsVariadic():
			pt = mt.In(fixed).Elem()
		default:
			return nil, fmt.Errorf("%w: too many arguments", ErrBadArguments)
		}
		v, err := convertArg(a, pt)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrBadArguments, len(in), err)
		}
		in = append(in, v)
		i++
	}

	if i == fixed-1 && mt.In(i) == kwargsType {
		in = append(in, reflect.ValueOf(kwargs))
		i++
	}
	if i < fixed {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", ErrBadArguments, fixed, i)
	}

	return splitResults(m.Call(in))
}

// convertArg 把 JSON 值转换为参数类型
func convertArg(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil {
		return reflect.Zero(pt), nil
	}
	if reflect.TypeOf(a).AssignableTo(pt) {
		return reflect.ValueOf(a), nil
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return reflect.Value{}, err
	}
	ptr := reflect.New(pt)
	if err := json.Unmarshal(raw, ptr.Interface()); err != nil {
		return reflect.Value{}, err
	}
	return ptr.Elem(), nil
}

func splitResults(out []reflect.Value) (any, error) {
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	if last.Type().Implements(errorType) {
		var err error
		if k := last.Kind(); (k != reflect.Interface && k != reflect.Pointer) || !last.IsNil() {
			err = last.Interface().(error)
		}
		out = out[:len(out)-1]
		if err != nil {
			return nil, err
		}
	}
	switch len(out) {
	case 0:
		return nil, nil
	case 1:
		return out[0].Interface(), nil
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, nil
}
