package mdns

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/hashicorp/mdns"
	"github.com/miekg/dns"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// 包级别日志实例
var log = logger.Logger("discovery/mdns")

// Listener 发现监听器，每个新发现的服务名调用一次
type Listener func(types.ServiceAnnouncement)

// ZoneSpec 一次宣告所需的 mDNS 参数
type ZoneSpec struct {
	Instance string
	Service  string
	Domain   string
	Port     int
	IPs      []net.IP
	TXT      []string
}

// Server mDNS 服务器句柄
type Server interface {
	Shutdown() error
}

// ServerFactory 为一次宣告创建 mDNS 服务器
type ServerFactory func(ZoneSpec) (Server, error)

// Querier 执行一次 mDNS 查询，结果写入 QueryParam.Entries
type Querier func(*mdns.QueryParam) error

type published struct {
	ann    types.ServiceAnnouncement
	server Server
}

// ============================================================================
//                              Announcer
// ============================================================================

// Announcer mDNS 服务宣告器
//
// 同时是宣告方和浏览方：宣告的服务由各自的 mDNS 服务器应答，
// 浏览循环把网络上发现的服务累积到按名称去重的表中。
type Announcer struct {
	cfg        Config
	instanceID string
	clock      clock.Clock

	register ServerFactory
	query    Querier
	limiter  *rate.Limiter

	mu         sync.RWMutex
	announced  map[string]*published
	pending    map[string]struct{}
	failures   map[string]error
	discovered map[string]types.ServiceAnnouncement
	listeners  []Listener

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started atomic.Bool
	closed  atomic.Bool
}

// Option 宣告器选项
type Option func(*Announcer)

// WithClock 替换时钟
func WithClock(c clock.Clock) Option {
	return func(a *Announcer) { a.clock = c }
}

// WithServerFactory 替换 mDNS 服务器创建
func WithServerFactory(fn ServerFactory) Option {
	return func(a *Announcer) { a.register = fn }
}

// WithQuerier 替换 mDNS 查询
func WithQuerier(fn Querier) Option {
	return func(a *Announcer) { a.query = fn }
}

// New 创建宣告器
func New(cfg Config, opts ...Option) (*Announcer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Announcer{
		cfg:        cfg,
		instanceID: uuid.NewString(),
		clock:      clock.New(),
		query:      mdns.Query,
		announced:  make(map[string]*published),
		pending:    make(map[string]struct{}),
		failures:   make(map[string]error),
		discovered: make(map[string]types.ServiceAnnouncement),
		ctx:        ctx,
		cancel:     cancel,
	}
	a.register = a.startServer

	// 所有服务的注册尝试共享一个速率上限，避免启动时同时宣告大量服务
	burst := cfg.MaxRetries
	if burst < 1 {
		burst = 1
	}
	if cfg.RetryBackoff > 0 {
		a.limiter = rate.NewLimiter(rate.Every(cfg.RetryBackoff), burst*4)
	} else {
		a.limiter = rate.NewLimiter(rate.Inf, 0)
	}

	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// InstanceID 返回本宣告器的实例 ID（写入 TXT id 属性）
func (a *Announcer) InstanceID() string {
	return a.instanceID
}

// Enabled 是否启用网络宣告
func (a *Announcer) Enabled() bool {
	return a.cfg.Enabled
}

// ============================================================================
//                              生命周期
// ============================================================================

// Start 启动浏览循环
//
// 未启用时为空操作。
func (a *Announcer) Start(_ context.Context) error {
	a.mu.Lock()
	if a.closed.Load() {
		a.mu.Unlock()
		return ErrClosed
	}
	if !a.cfg.Enabled || a.started.Swap(true) {
		a.mu.Unlock()
		return nil
	}
	a.wg.Add(1)
	a.mu.Unlock()

	go a.queryLoop()

	log.Info("mDNS 宣告器已启动",
		"service", a.cfg.ServiceType,
		"domain", a.cfg.Domain,
		"instance", a.instanceID)
	return nil
}

// Close 停止浏览并注销本进程的全部宣告，本进程的条目从发现表中移除
//
// closed 与 wg.Add 都在 mu 下操作，Wait 开始后不会再有新的后台任务。
func (a *Announcer) Close() error {
	a.mu.Lock()
	if a.closed.Swap(true) {
		a.mu.Unlock()
		return nil
	}
	a.mu.Unlock()
	a.cancel()
	a.wg.Wait()

	a.mu.Lock()
	servers := make(map[string]Server, len(a.announced))
	for name, p := range a.announced {
		if p.server != nil {
			servers[name] = p.server
		}
	}
	a.announced = make(map[string]*published)
	for name, ann := range a.discovered {
		if ann.InstanceID == a.instanceID {
			delete(a.discovered, name)
		}
	}
	a.mu.Unlock()

	var g errgroup.Group
	for name, srv := range servers {
		g.Go(func() error {
			if err := srv.Shutdown(); err != nil {
				return fmt.Errorf("unannounce %q: %w", name, err)
			}
			return nil
		})
	}
	err := g.Wait()
	log.Info("mDNS 宣告器已关闭", "unannounced", len(servers))
	return err
}

// ============================================================================
//                              宣告
// ============================================================================

// Announce 异步宣告服务
//
// port 为 0 时分配一个空闲端口。调用立即返回；注册失败会在后台
// 重试，最终结果可通过 Announced 和 Failure 查询。同名服务已宣告
// 或正在宣告时直接返回 nil。
func (a *Announcer) Announce(name string, capabilities, examples []string, port int) error {
	if a.closed.Load() {
		return ErrClosed
	}
	if !a.cfg.Enabled {
		return ErrDisabled
	}
	if err := a.validateName(name); err != nil {
		return err
	}

	a.mu.Lock()
	if _, ok := a.announced[name]; ok {
		a.mu.Unlock()
		return nil
	}
	if _, ok := a.pending[name]; ok {
		a.mu.Unlock()
		return nil
	}
	a.pending[name] = struct{}{}
	delete(a.failures, name)
	a.mu.Unlock()

	if port == 0 {
		p, err := freePort()
		if err != nil {
			a.mu.Lock()
			delete(a.pending, name)
			a.mu.Unlock()
			return fmt.Errorf("%w: %v", ErrNoPort, err)
		}
		port = p
	}

	ips := a.localIPs()
	host := "127.0.0.1"
	if len(ips) > 0 {
		host = ips[0].String()
	}

	ann := types.ServiceAnnouncement{
		Name:         name,
		Capabilities: append([]string(nil), capabilities...),
		Examples:     append([]string(nil), examples...),
		Host:         host,
		Port:         port,
		InstanceID:   a.instanceID,
		Source:       types.SourceNetwork,
		DiscoveredAt: a.clock.Now(),
	}

	spec := ZoneSpec{
		Instance: name,
		Service:  a.cfg.ServiceType,
		Domain:   dns.Fqdn(a.cfg.Domain),
		Port:     port,
		IPs:      ips,
		TXT:      buildTXTRecords(name, capabilities, examples, a.instanceID),
	}

	a.mu.Lock()
	if a.closed.Load() {
		delete(a.pending, name)
		a.mu.Unlock()
		return ErrClosed
	}
	// 本进程的宣告立即可见
	a.discovered[name] = ann
	a.wg.Add(1)
	a.mu.Unlock()

	go a.publish(ann, spec)

	log.Debug("开始 mDNS 宣告", "service", name, "port", port)
	return nil
}

// publish 在后台注册服务，有限重试
func (a *Announcer) publish(ann types.ServiceAnnouncement, spec ZoneSpec) {
	defer a.wg.Done()

	var lastErr error
	attempts := 0
	for attempt := 0; attempt < a.cfg.MaxRetries; attempt++ {
		if err := a.limiter.Wait(a.ctx); err != nil {
			lastErr = err
			break
		}
		attempts++

		srv, err := a.register(spec)
		if err == nil {
			a.mu.Lock()
			delete(a.pending, ann.Name)
			if a.closed.Load() {
				a.mu.Unlock()
				_ = srv.Shutdown()
				return
			}
			a.announced[ann.Name] = &published{ann: ann, server: srv}
			a.mu.Unlock()
			log.Info("mDNS 宣告成功", "service", ann.Name, "addr", ann.Addr(), "attempts", attempts)
			return
		}
		lastErr = err
		log.Debug("mDNS 宣告失败，准备重试", "service", ann.Name, "attempt", attempt+1, "error", err)

		if attempt < a.cfg.MaxRetries-1 && !a.sleep(a.cfg.RetryBackoff*time.Duration(attempt+1)) {
			lastErr = a.ctx.Err()
			break
		}
	}

	failure := &AnnounceError{Name: ann.Name, Attempts: attempts, Err: lastErr}
	a.mu.Lock()
	delete(a.pending, ann.Name)
	if cur, ok := a.discovered[ann.Name]; ok && cur.InstanceID == a.instanceID {
		delete(a.discovered, ann.Name)
	}
	a.failures[ann.Name] = failure
	a.mu.Unlock()

	if strings.Contains(strings.ToLower(fmt.Sprint(lastErr)), "already registered") {
		log.Info("mDNS 服务已注册", "service", ann.Name)
		return
	}
	log.Warn("mDNS 宣告放弃", "error", failure)
}

// sleep 等待 d，宣告器关闭时提前返回 false
func (a *Announcer) sleep(d time.Duration) bool {
	t := a.clock.Timer(d)
	defer t.Stop()
	select {
	case <-a.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Unannounce 注销本进程宣告的服务
func (a *Announcer) Unannounce(name string) error {
	a.mu.Lock()
	p, ok := a.announced[name]
	delete(a.announced, name)
	if cur, found := a.discovered[name]; found && cur.InstanceID == a.instanceID {
		delete(a.discovered, name)
	}
	a.mu.Unlock()

	if !ok || p.server == nil {
		return nil
	}
	return p.server.Shutdown()
}

// Announced 服务是否已成功宣告
func (a *Announcer) Announced(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.announced[name]
	return ok
}

// Pending 服务是否仍在后台宣告中
func (a *Announcer) Pending(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, ok := a.pending[name]
	return ok
}

// Failure 返回服务最近一次宣告失败的错误（*AnnounceError），没有失败时为 nil
func (a *Announcer) Failure(name string) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.failures[name]
}

func (a *Announcer) validateName(name string) error {
	if strings.TrimSpace(name) == "" || len(name) > maxKeyLen || strings.Contains(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	if _, ok := dns.IsDomainName(name + "." + a.cfg.fqdnService()); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ============================================================================
//                              发现
// ============================================================================

// AddListener 注册发现监听器
//
// 监听器在独立 goroutine 中调用，panic 被恢复。
func (a *Announcer) AddListener(fn Listener) {
	a.mu.Lock()
	a.listeners = append(a.listeners, fn)
	a.mu.Unlock()
}

// DiscoverAll 返回已发现的全部服务，按名称去重
func (a *Announcer) DiscoverAll() map[string]types.ServiceAnnouncement {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]types.ServiceAnnouncement, len(a.discovered))
	for name, ann := range a.discovered {
		out[name] = ann.Clone()
	}
	return out
}

// Discover 按精确名称查找
func (a *Announcer) Discover(name string) (types.ServiceAnnouncement, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	ann, ok := a.discovered[name]
	if !ok {
		return types.ServiceAnnouncement{}, false
	}
	return ann.Clone(), true
}

// FindService 返回名称包含 query（不区分大小写）的第一个服务，按名称排序
func (a *Announcer) FindService(query string) (types.ServiceAnnouncement, bool) {
	q := strings.ToLower(query)
	for _, ann := range a.sorted() {
		if strings.Contains(strings.ToLower(ann.Name), q) {
			return ann, true
		}
	}
	return types.ServiceAnnouncement{}, false
}

// FindCapability 返回能力描述包含 query 的全部服务，按名称排序
func (a *Announcer) FindCapability(query string) []types.ServiceAnnouncement {
	var out []types.ServiceAnnouncement
	for _, ann := range a.sorted() {
		if ann.HasCapability(query) {
			out = append(out, ann)
		}
	}
	return out
}

// Forget 移除已发现的服务（对应服务离开事件）
func (a *Announcer) Forget(name string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.discovered[name]
	delete(a.discovered, name)
	return ok
}

func (a *Announcer) sorted() []types.ServiceAnnouncement {
	a.mu.RLock()
	out := make([]types.ServiceAnnouncement, 0, len(a.discovered))
	for _, ann := range a.discovered {
		out = append(out, ann.Clone())
	}
	a.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ============================================================================
//                              查询循环
// ============================================================================

func (a *Announcer) queryLoop() {
	defer a.wg.Done()

	// 首次立即查询
	a.Browse(a.ctx)

	if a.cfg.QueryInterval <= 0 {
		return
	}
	ticker := a.clock.Ticker(a.cfg.QueryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.Browse(a.ctx)
		}
	}
}

// Browse 执行一次 mDNS 查询，返回本次新发现的服务数
func (a *Announcer) Browse(ctx context.Context) int {
	if ctx.Err() != nil {
		return 0
	}
	params := &mdns.QueryParam{
		Service:             a.cfg.ServiceType,
		Domain:              strings.TrimSuffix(a.cfg.Domain, "."),
		Timeout:             a.cfg.QueryTimeout,
		DisableIPv6:         !a.cfg.EnableIPv6,
		WantUnicastResponse: true,
	}
	if a.cfg.Interface != "" {
		if iface, err := net.InterfaceByName(a.cfg.Interface); err == nil {
			params.Interface = iface
		}
	}

	entries := make(chan *mdns.ServiceEntry, 16)
	params.Entries = entries

	var found atomic.Int32
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			if a.handleEntry(entry) {
				found.Add(1)
			}
		}
	}()

	if err := a.query(params); err != nil {
		log.Debug("mDNS 查询失败", "error", err)
	}
	close(entries)
	<-done
	return int(found.Load())
}

// handleEntry 处理一条发现结果，返回是否为新服务
func (a *Announcer) handleEntry(entry *mdns.ServiceEntry) bool {
	ann, ok := entryToAnnouncement(entry, a.cfg.fqdnService())
	if !ok {
		return false
	}
	// 跳过自己
	if ann.InstanceID == a.instanceID {
		return false
	}
	ann.DiscoveredAt = a.clock.Now()

	a.mu.Lock()
	_, exists := a.discovered[ann.Name]
	a.discovered[ann.Name] = ann
	listeners := append([]Listener(nil), a.listeners...)
	a.mu.Unlock()

	if exists {
		return false
	}

	log.Debug("mDNS 发现服务", "service", ann.Name, "addr", ann.Addr())
	for _, fn := range listeners {
		go func(fn Listener) {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("发现监听器 panic", "service", ann.Name, "panic", r)
				}
			}()
			fn(ann.Clone())
		}(fn)
	}
	return true
}

// ============================================================================
//                              mDNS 服务器
// ============================================================================

// startServer 为一个服务创建 mDNS 服务器
func (a *Announcer) startServer(spec ZoneSpec) (Server, error) {
	service, err := mdns.NewMDNSService(spec.Instance, spec.Service, spec.Domain, "", spec.Port, spec.IPs, spec.TXT)
	if err != nil {
		return nil, fmt.Errorf("创建 mDNS 服务失败: %w", err)
	}

	serverConfig := &mdns.Config{
		Zone: service,
	}
	if a.cfg.Interface != "" {
		iface, err := net.InterfaceByName(a.cfg.Interface)
		if err != nil {
			log.Warn("找不到指定接口", "interface", a.cfg.Interface, "error", err)
		} else {
			serverConfig.Iface = iface
		}
	}

	server, err := mdns.NewServer(serverConfig)
	if err != nil {
		return nil, fmt.Errorf("创建 mDNS 服务器失败: %w", err)
	}
	return server, nil
}

// localIPs 返回可宣告的本地地址
//
// 跳过回环、未启用的接口和链路本地地址；未启用 IPv6 时只返回 IPv4。
func (a *Announcer) localIPs() []net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var v4, v6 []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		if a.cfg.Interface != "" && iface.Name != a.cfg.Interface {
			continue
		}
		if isVirtualInterface(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP
			if ip.IsLoopback() || ip.IsLinkLocalUnicast() {
				continue
			}
			if ip.To4() != nil {
				v4 = append(v4, ip)
			} else if a.cfg.EnableIPv6 {
				v6 = append(v6, ip)
			}
		}
	}
	return append(v4, v6...)
}

// isVirtualInterface 容器、VPN 等虚拟网卡的地址跨机通常不可达
func isVirtualInterface(name string) bool {
	for _, prefix := range []string{"docker", "veth", "br-", "virbr", "utun", "tun", "tap", "vmnet", "vboxnet"} {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// freePort 分配一个当前空闲的 TCP 端口
func freePort() (int, error) {
	l, err := net.Listen("tcp", ":0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
