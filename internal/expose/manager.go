package expose

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"

	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/internal/discovery/mdns"
	"github.com/dep2p/go-capmesh/internal/util/logger"
	"github.com/dep2p/go-capmesh/pkg/types"
)

var log = logger.Logger("expose")

// Publisher 把暴露的服务宣告到网络
//
// *mdns.Announcer 实现此接口。
type Publisher interface {
	Announce(name string, capabilities, examples []string, port int) error
	Unannounce(name string) error
}

var _ Publisher = (*mdns.Announcer)(nil)

// Service 一个已暴露的服务
type Service struct {
	Name         string
	Port         int
	Capabilities []string
	Examples     []string
	StartedAt    time.Time

	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// Addr 返回实际监听地址
func (s *Service) Addr() string {
	return s.listener.Addr().String()
}

// URL 返回本机访问地址
func (s *Service) URL() string {
	return "http://" + net.JoinHostPort("127.0.0.1", strconv.Itoa(s.Port))
}

// Announcement 返回指向本机端口的服务宣告
func (s *Service) Announcement() types.ServiceAnnouncement {
	return types.ServiceAnnouncement{
		Name:         s.Name,
		Capabilities: append([]string(nil), s.Capabilities...),
		Examples:     append([]string(nil), s.Examples...),
		Host:         "127.0.0.1",
		Port:         s.Port,
		Source:       types.SourceNetwork,
		DiscoveredAt: s.StartedAt,
	}
}

// Info 暴露服务的摘要
type Info struct {
	Port         int      `json:"port"`
	Capabilities []string `json:"capabilities"`
	Status       string   `json:"status"`
}

// ============================================================================
//                              Manager
// ============================================================================

// Manager 管理进程内所有暴露的服务
type Manager struct {
	cfg       Config
	publisher Publisher
	reporter  metrics.Reporter

	mu       sync.Mutex
	services map[string]*Service
	closed   atomic.Bool
}

// Option 管理器选项
type Option func(*Manager)

// WithPublisher 设置网络宣告器
func WithPublisher(p Publisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithReporter 设置流量统计
func WithReporter(r metrics.Reporter) Option {
	return func(m *Manager) {
		if r != nil {
			m.reporter = r
		}
	}
}

// NewManager 创建管理器
func NewManager(cfg Config, opts ...Option) *Manager {
	m := &Manager{
		cfg:      cfg,
		reporter: metrics.NopReporter(),
		services: make(map[string]*Service),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// exposeOptions 单次暴露选项
type exposeOptions struct {
	port int
	caps []string
}

// ExposeOption 暴露选项
type ExposeOption func(*exposeOptions)

// WithPort 指定端口，0 表示自动分配
func WithPort(port int) ExposeOption {
	return func(o *exposeOptions) { o.port = port }
}

// WithCapabilities 指定能力描述，不自动检测
func WithCapabilities(caps ...string) ExposeOption {
	return func(o *exposeOptions) { o.caps = caps }
}

// Expose 在独立端口上暴露实例并宣告到网络
//
// 监听成功后立即返回，服务在后台运行。网络宣告失败只记录日志，
// 服务仍可通过地址直接访问。
func (m *Manager) Expose(_ context.Context, name string, instance any, opts ...ExposeOption) (*Service, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	if instance == nil {
		return nil, ErrNilInstance
	}

	var o exposeOptions
	for _, opt := range opts {
		opt(&o)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.services[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyExposed, name)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(m.cfg.Host, strconv.Itoa(o.port)))
	if err != nil {
		return nil, fmt.Errorf("expose %s: %w", name, err)
	}
	port := listener.Addr().(*net.TCPAddr).Port

	caps := o.caps
	if len(caps) == 0 {
		caps = DetectCapabilities(name, instance)
	}
	svc := &Service{
		Name:         name,
		Port:         port,
		Capabilities: caps,
		Examples:     examplesFor(m.cfg.AdvertiseHost, port),
		StartedAt:    time.Now(),
		listener:     listener,
		done:         make(chan struct{}),
	}

	h := &handler{
		name:     name,
		instance: instance,
		caps:     func() []string { return svc.Capabilities },
		reporter: m.reporter,
		started:  svc.StartedAt,
	}
	svc.server = &http.Server{
		Handler:      h.routes(m.cfg.EnableMetrics),
		ReadTimeout:  m.cfg.ReadTimeout,
		WriteTimeout: m.cfg.WriteTimeout,
	}

	go func() {
		defer close(svc.done)
		if err := svc.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("暴露服务异常退出", "service", name, "error", err)
		}
	}()

	m.services[name] = svc
	log.Info("服务已暴露", "service", name, "addr", svc.Addr())

	if m.publisher != nil {
		if err := m.publisher.Announce(name, svc.Capabilities, svc.Examples, port); err != nil {
			if errors.Is(err, mdns.ErrDisabled) {
				log.Debug("网络宣告已禁用", "service", name)
			} else {
				log.Warn("网络宣告失败", "service", name, "error", err)
			}
		}
	}
	return svc, nil
}

// Get 返回已暴露的服务
func (m *Manager) Get(name string) (*Service, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.services[name]
	return svc, ok
}

// List 列出所有暴露的服务
func (m *Manager) List() map[string]Info {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Info, len(m.services))
	for name, svc := range m.services {
		status := "running"
		select {
		case <-svc.done:
			status = "stopped"
		default:
		}
		out[name] = Info{
			Port:         svc.Port,
			Capabilities: append([]string(nil), svc.Capabilities...),
			Status:       status,
		}
	}
	return out
}

// Names 返回已暴露服务名（排序）
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.services))
	for name := range m.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Stop 停止一个暴露的服务并撤销网络宣告
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	svc, ok := m.services[name]
	delete(m.services, name)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotExposed, name)
	}
	return m.shutdown(svc)
}

func (m *Manager) shutdown(svc *Service) error {
	var err error
	if m.publisher != nil {
		if uerr := m.publisher.Unannounce(svc.Name); uerr != nil && !errors.Is(uerr, mdns.ErrDisabled) && !errors.Is(uerr, mdns.ErrClosed) {
			err = multierr.Append(err, uerr)
		}
	}

	timeout := m.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().ShutdownTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if serr := svc.server.Shutdown(ctx); serr != nil {
		log.Error("关闭暴露服务失败", "service", svc.Name, "error", serr)
		err = multierr.Append(err, serr)
	}
	<-svc.done

	log.Info("暴露服务已停止", "service", svc.Name)
	return err
}

// Close 停止所有暴露的服务
func (m *Manager) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}

	m.mu.Lock()
	services := make([]*Service, 0, len(m.services))
	for _, svc := range m.services {
		services = append(services, svc)
	}
	m.services = make(map[string]*Service)
	m.mu.Unlock()

	var err error
	for _, svc := range services {
		err = multierr.Append(err, m.shutdown(svc))
	}
	return err
}
