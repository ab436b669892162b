package mdns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-capmesh/config"
)

func TestModule_Disabled(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Discovery.EnableMDNS = false

	var a *Announcer
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&a),
	)
	app.RequireStart()
	assert.False(t, a.Enabled())
	assert.ErrorIs(t, a.Announce("svc", nil, nil, 1), ErrDisabled)
	app.RequireStop()
}

func TestConfigFromUnified(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Discovery.MDNS.MaxRetries = 5
	cfg.Discovery.MDNS.EnableIPv6 = true

	got := ConfigFromUnified(cfg)
	assert.True(t, got.Enabled)
	assert.Equal(t, 5, got.MaxRetries)
	assert.True(t, got.EnableIPv6)
	assert.Equal(t, DefaultServiceType, got.ServiceType)

	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))
}
