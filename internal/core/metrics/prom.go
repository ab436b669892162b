package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "capmesh"

var (
	registerOnce sync.Once

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by tier and result.",
		},
		[]string{"tier", "result"},
	)
	cacheInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Cache entries removed by scope.",
		},
		[]string{"scope"},
	)
	cacheTierErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "persistent_errors_total",
			Help:      "Persistent tier failures by operation.",
		},
		[]string{"op"},
	)
	proxyRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Remote service proxy requests.",
		},
		[]string{"service", "method", "success"},
	)
	proxyDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "request_duration_seconds",
			Help:      "Remote service proxy request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "success"},
	)
	exposeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "expose",
			Name:      "requests_total",
			Help:      "Requests served by exposed services.",
		},
		[]string{"service", "method", "success"},
	)
	exposeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "expose",
			Name:      "request_duration_seconds",
			Help:      "Exposed service request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "success"},
	)
	resolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "locator",
			Name:      "resolutions_total",
			Help:      "Service locator resolutions by outcome.",
		},
		[]string{"capability", "outcome"},
	)
	trafficBytes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "traffic",
			Name:      "bytes_total",
			Help:      "Bytes exchanged with services by direction.",
		},
		[]string{"service", "direction"},
	)
)

// RegisterMetrics 注册全部指标到默认注册表，可重复调用
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			cacheLookups, cacheInvalidations, cacheTierErrors,
			proxyRequests, proxyDuration,
			exposeRequests, exposeDuration,
			resolutions, trafficBytes,
		)
	})
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	RegisterMetrics()
	return promhttp.Handler()
}

// RecordCacheLookup 记录一次缓存查找，tier 为 "ram" 或 "persistent"
func RecordCacheLookup(tier string, hit bool) {
	RegisterMetrics()
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(tier, result).Inc()
}

// RecordCacheInvalidation 记录失效的条目数
func RecordCacheInvalidation(scope string, n int) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	cacheInvalidations.WithLabelValues(scope).Add(float64(n))
}

// RecordCacheTierError 记录持久层失败
func RecordCacheTierError(op string) {
	RegisterMetrics()
	cacheTierErrors.WithLabelValues(op).Inc()
}

// RecordProxyRequest 记录一次远程代理请求
func RecordProxyRequest(service, method string, success bool, duration time.Duration) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	proxyRequests.WithLabelValues(service, method, successLabel).Inc()
	proxyDuration.WithLabelValues(service, method, successLabel).Observe(duration.Seconds())
}

// RecordExposeRequest 记录暴露服务处理的一次请求
func RecordExposeRequest(service, method string, success bool, duration time.Duration) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	exposeRequests.WithLabelValues(service, method, successLabel).Inc()
	exposeDuration.WithLabelValues(service, method, successLabel).Observe(duration.Seconds())
}

// RecordResolution 记录一次定位结果，outcome 为 "local"、"network" 或 "none"
func RecordResolution(capability, outcome string) {
	RegisterMetrics()
	resolutions.WithLabelValues(capability, outcome).Inc()
}

func recordTraffic(service, direction string, n int64) {
	if n <= 0 {
		return
	}
	RegisterMetrics()
	trafficBytes.WithLabelValues(service, direction).Add(float64(n))
}
