package metrics

// Stats 流量统计快照
type Stats struct {
	TotalIn  int64   `json:"total_in"`  // 总入站字节
	TotalOut int64   `json:"total_out"` // 总出站字节
	RateIn   float64 `json:"rate_in"`   // 入站速率（字节/秒）
	RateOut  float64 `json:"rate_out"`  // 出站速率（字节/秒）
	Calls    int64   `json:"calls"`     // 调用次数
}
