package remote

import (
	"net/http"

	"github.com/dep2p/go-capmesh/internal/core/metrics"
	"github.com/dep2p/go-capmesh/pkg/types"
)

// Factory 以共享配置创建代理
type Factory struct {
	cfg      Config
	client   *http.Client
	reporter metrics.Reporter
}

// NewFactory 创建代理工厂
func NewFactory(cfg Config, reporter metrics.Reporter) *Factory {
	if reporter == nil {
		reporter = metrics.NopReporter()
	}
	return &Factory{cfg: cfg, client: DefaultClient, reporter: reporter}
}

// Config 返回代理配置
func (f *Factory) Config() Config {
	return f.cfg
}

// New 为服务宣告创建代理
func (f *Factory) New(ann types.ServiceAnnouncement) *Proxy {
	return New(ann, WithConfig(f.cfg), WithClient(f.client), WithReporter(f.reporter))
}
