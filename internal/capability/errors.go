package capability

import (
	"errors"
	"fmt"
)

var (
	// ErrFrozen 注册表已冻结
	ErrFrozen = errors.New("capability: registry frozen")

	// ErrDuplicate 能力名重复
	ErrDuplicate = errors.New("capability: duplicate name")

	// ErrInvalidName 能力名非法
	ErrInvalidName = errors.New("capability: invalid name")

	// ErrNoRecipe 缺少构建方法
	ErrNoRecipe = errors.New("capability: missing recipe")

	// ErrNotFound 能力未注册
	ErrNotFound = errors.New("capability: not found")
)

// BuildError 本地实例构建失败
type BuildError struct {
	Name string
	Err  error
}

// Error 实现 error 接口
func (e *BuildError) Error() string {
	return fmt.Sprintf("capability: build %q: %v", e.Name, e.Err)
}

// Unwrap 支持 errors.Unwrap
func (e *BuildError) Unwrap() error {
	return e.Err
}

// IsNotFound 检查是否为未注册错误
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
