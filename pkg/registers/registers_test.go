package registers

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yourapi/plesk-sitekick/pkg/config"
	"github.com/yourapi/plesk-sitekick/pkg/credential"
	"github.com/yourapi/plesk-sitekick/pkg/entity"
	"github.com/yourapi/plesk-sitekick/pkg/provider"
)

type stubProvider struct {
	name string
	ok   bool
	err  error
	boom bool
}

func (s *stubProvider) Name() string { return s.name }
func (s *stubProvider) Applicable(context.Context) (bool, error) {
	if s.boom {
		panic("broken provider")
	}
	return s.ok, s.err
}
func (s *stubProvider) ListEntities(context.Context) ([]string, error) { return nil, nil }
func (s *stubProvider) EntityDetail(context.Context, string) (entity.Record, error) {
	return nil, nil
}

func module(p *stubProvider, enabled bool) Module {
	return Module{Enabled: enabled, Name: p.name, NewFunc: func() (provider.Provider, error) { return p, nil }}
}

func TestDiscover(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	mods := []Module{
		module(&stubProvider{name: "yes", ok: true}, true),
		module(&stubProvider{name: "no"}, true),
		module(&stubProvider{name: "err", err: errors.New("unreachable")}, true),
		module(&stubProvider{name: "panic", boom: true}, true),
		module(&stubProvider{name: "off", ok: true}, false),
		{Enabled: true, Name: "ctor", NewFunc: func() (provider.Provider, error) { return nil, errors.New("bad config") }},
	}

	found := Discover(context.Background(), mods, zap.New(core))
	require.Len(t, found, 1)
	assert.Equal(t, "yes", found[0].Name())

	assert.Equal(t, 1, logs.FilterMessage("provider construction failed").Len())
	assert.Equal(t, 2, logs.FilterMessage("provider not applicable").FilterField(zap.String("provider", "err")).Len()+
		logs.FilterMessage("provider not applicable").FilterField(zap.String("provider", "panic")).Len())
}

func TestModulesFromConfig(t *testing.T) {
	cfg := config.NewDefaultConfig().Providers
	cfg.Plesk.Enable = false
	cfg.Static.Enable = true
	cfg.Static.Entities = []string{"a.example"}

	mods := Modules(&cfg, Deps{Host: entity.Host{Hostname: "web01", IPAddress: "192.0.2.1"}, PleskTokens: credential.Static("x")})
	require.Len(t, mods, 3)

	var enabled []string
	for _, m := range mods {
		if m.Enabled {
			enabled = append(enabled, m.Name)
			p, err := m.NewFunc()
			require.NoError(t, err)
			assert.Equal(t, m.Name, p.Name())
		}
	}
	assert.Equal(t, []string{provider.ServerName, provider.StaticName}, enabled)
}

func TestInitPromRegistry(t *testing.T) {
	r := InitPromRegistry(false, func() float64 { return 7 })
	r.Uplink.RecordsSent.Add(3)
	assert.Equal(t, float64(3), testutil.ToFloat64(r.Uplink.RecordsSent))

	n, err := testutil.GatherAndCount(r.Prom, "sitekick_queue_depth")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
