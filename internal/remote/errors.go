package remote

import "errors"

// ErrNoAddress 服务宣告缺少网络地址
var ErrNoAddress = errors.New("service announcement has no address")
