package metrics

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
)

type serviceCounter struct {
	in, out, calls atomic.Int64
	inRate         *RateMeter
	outRate        *RateMeter
}

// TrafficCounter 按服务统计流量
type TrafficCounter struct {
	clock clock.Clock

	totalIn  atomic.Int64
	totalOut atomic.Int64
	calls    atomic.Int64
	inRate   *RateMeter
	outRate  *RateMeter

	mu       sync.RWMutex
	services map[string]*serviceCounter
}

// NewTrafficCounter 创建流量计数器
func NewTrafficCounter() *TrafficCounter {
	return NewTrafficCounterWithClock(clock.New())
}

// NewTrafficCounterWithClock 使用指定时钟创建流量计数器
func NewTrafficCounterWithClock(c clock.Clock) *TrafficCounter {
	return &TrafficCounter{
		clock:    c,
		inRate:   NewRateMeter(c),
		outRate:  NewRateMeter(c),
		services: make(map[string]*serviceCounter),
	}
}

func (t *TrafficCounter) counter(service string) *serviceCounter {
	t.mu.RLock()
	c := t.services[service]
	t.mu.RUnlock()
	if c != nil {
		return c
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if c = t.services[service]; c == nil {
		c = &serviceCounter{inRate: NewRateMeter(t.clock), outRate: NewRateMeter(t.clock)}
		t.services[service] = c
	}
	return c
}

// LogSent 记录发往 service 的字节数
func (t *TrafficCounter) LogSent(service string, n int64) {
	t.totalOut.Add(n)
	t.outRate.Add(n)
	t.calls.Add(1)

	c := t.counter(service)
	c.out.Add(n)
	c.outRate.Add(n)
	c.calls.Add(1)
	recordTraffic(service, "out", n)
}

// LogRecv 记录从 service 收到的字节数
func (t *TrafficCounter) LogRecv(service string, n int64) {
	t.totalIn.Add(n)
	t.inRate.Add(n)

	c := t.counter(service)
	c.in.Add(n)
	c.inRate.Add(n)
	recordTraffic(service, "in", n)
}

// Totals 返回全部服务的合计
func (t *TrafficCounter) Totals() Stats {
	return Stats{
		TotalIn:  t.totalIn.Load(),
		TotalOut: t.totalOut.Load(),
		RateIn:   t.inRate.Rate(),
		RateOut:  t.outRate.Rate(),
		Calls:    t.calls.Load(),
	}
}

// ForService 返回单个服务的统计，未记录过的服务返回零值
func (t *TrafficCounter) ForService(service string) Stats {
	t.mu.RLock()
	c := t.services[service]
	t.mu.RUnlock()
	if c == nil {
		return Stats{}
	}
	return c.snapshot()
}

// ByService 返回全部服务的统计
func (t *TrafficCounter) ByService() map[string]Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make(map[string]Stats, len(t.services))
	for name, c := range t.services {
		out[name] = c.snapshot()
	}
	return out
}

// Services 返回有记录的服务名，已排序
func (t *TrafficCounter) Services() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.services))
	for name := range t.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset 清空全部统计
func (t *TrafficCounter) Reset() {
	t.totalIn.Store(0)
	t.totalOut.Store(0)
	t.calls.Store(0)
	t.inRate.Reset()
	t.outRate.Reset()

	t.mu.Lock()
	t.services = make(map[string]*serviceCounter)
	t.mu.Unlock()
}

func (c *serviceCounter) snapshot() Stats {
	return Stats{
		TotalIn:  c.in.Load(),
		TotalOut: c.out.Load(),
		RateIn:   c.inRate.Rate(),
		RateOut:  c.outRate.Rate(),
		Calls:    c.calls.Load(),
	}
}
