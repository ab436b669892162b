package expose

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	"github.com/dep2p/go-capmesh/config"
)

func TestModule(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Exposure.Host = "127.0.0.1"
	cfg.Exposure.EnableMetrics = true

	var m *Manager
	app := fxtest.New(t,
		fx.Supply(cfg),
		Module(),
		fx.Populate(&m),
	)
	app.RequireStart()
	assert.True(t, m.cfg.EnableMetrics)

	_, err := m.Expose(context.Background(), "Echo", echoService{})
	require.NoError(t, err)

	app.RequireStop()
	assert.Empty(t, m.List())
}

func TestConfigFromUnified(t *testing.T) {
	cfg := config.NewConfig()
	cfg.Exposure.AdvertiseHost = "mesh.local"
	cfg.Exposure.ReadTimeout = config.Duration(3 * time.Second)

	got := ConfigFromUnified(cfg)
	assert.Equal(t, "mesh.local", got.AdvertiseHost)
	assert.Equal(t, 3*time.Second, got.ReadTimeout)
	assert.NoError(t, got.Validate())

	assert.Equal(t, DefaultConfig(), ConfigFromUnified(nil))

	bad := DefaultConfig()
	bad.WriteTimeout = 0
	assert.Error(t, bad.Validate())
}
