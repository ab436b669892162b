package metrics

// Reporter 按服务记录收发字节数
//
// 远程代理记录请求体为出站、响应体为入站；网络暴露服务相反。
type Reporter interface {
	// LogSent 记录发往 service 的字节数，同时计一次调用
	LogSent(service string, n int64)

	// LogRecv 记录从 service 收到的字节数
	LogRecv(service string, n int64)
}

// 确保 TrafficCounter 实现 Reporter 接口
var _ Reporter = (*TrafficCounter)(nil)

// nopReporter 丢弃所有记录
type nopReporter struct{}

func (nopReporter) LogSent(string, int64) {}
func (nopReporter) LogRecv(string, int64) {}

// NopReporter 返回不记录任何数据的 Reporter
func NopReporter() Reporter {
	return nopReporter{}
}
