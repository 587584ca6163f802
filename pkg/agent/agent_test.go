package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourapi/plesk-sitekick/pkg/clock"
	"github.com/yourapi/plesk-sitekick/pkg/collector"
	"github.com/yourapi/plesk-sitekick/pkg/config"
	"github.com/yourapi/plesk-sitekick/pkg/credential"
	"github.com/yourapi/plesk-sitekick/pkg/entity"
	"github.com/yourapi/plesk-sitekick/pkg/provider"
	"github.com/yourapi/plesk-sitekick/pkg/queue"
	"github.com/yourapi/plesk-sitekick/pkg/registers"
	"github.com/yourapi/plesk-sitekick/pkg/uplink"
)

type sink struct {
	mu      sync.Mutex
	domains []string
}

func (s *sink) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	data, _ := io.ReadAll(r.Body)
	var batch []map[string]any
	if err := json.Unmarshal(data, &batch); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	for _, rec := range batch {
		s.domains = append(s.domains, rec["domain"].(string))
	}
	s.mu.Unlock()
}

func staticModules(entities ...string) []registers.Module {
	cfg := config.NewDefaultConfig().Providers
	cfg.Plesk.Enable = false
	cfg.Server.Enable = false
	cfg.Static.Enable = true
	cfg.Static.Entities = entities
	return registers.Modules(&cfg, registers.Deps{Host: entity.Host{Hostname: "web01", IPAddress: "192.0.2.1"}})
}

func TestAgentOnceCollectsAndDrains(t *testing.T) {
	q, err := queue.Open(filepath.Join(t.TempDir(), "queue"))
	require.NoError(t, err)
	s := &sink{}
	srv := httptest.NewServer(s)
	defer srv.Close()

	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	col := collector.New(q, collector.Options{Attempts: 3, Clock: fake})
	sender := uplink.NewSender(q,
		uplink.NewClient(uplink.ClientOptions{URL: srv.URL, Tokens: credential.Static("tok")}),
		uplink.SenderOptions{BatchSize: 2, Attempts: 3, Clock: fake})
	loop := uplink.NewLoop(uplink.NewScheduler(100*time.Second, 10*time.Second, fake), sender, zap.NewNop())

	a := New(Options{
		Collector: col,
		Modules:   staticModules("a.example", "b.example", "c.example"),
		Uplink:    loop,
		Once:      true,
		Clock:     fake,
	})
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Wait())

	assert.True(t, a.Done())
	assert.ElementsMatch(t, []string{"a.example", "b.example", "c.example"}, s.domains)
	n, err := q.Len()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAgentOnceReportsListFailure(t *testing.T) {
	q, err := queue.Open(t.TempDir())
	require.NoError(t, err)
	fake := clock.NewFake(time.Unix(0, 0))

	a := New(Options{
		Collector: collector.New(q, collector.Options{Clock: fake}),
		Modules: []registers.Module{{
			Enabled: true,
			Name:    "broken",
			NewFunc: func() (provider.Provider, error) { return brokenProvider{}, nil },
		}},
		Once:  true,
		Clock: fake,
	})
	require.NoError(t, a.Start(context.Background()))
	assert.Error(t, a.Wait())
}

func TestAgentDaemonShutdown(t *testing.T) {
	q, err := queue.Open(t.TempDir())
	require.NoError(t, err)

	a := New(Options{
		Collector:       collector.New(q, collector.Options{}),
		Modules:         staticModules("a.example"),
		CollectInterval: time.Hour,
	})
	require.NoError(t, a.Start(context.Background()))
	assert.Error(t, a.Start(context.Background()))

	require.Eventually(t, func() bool {
		n, _ := q.Len()
		return n == 1
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, a.Shutdown(ctx))
	require.NoError(t, a.Wait())
}

type countingSink struct {
	*queue.Queue
	mu     sync.Mutex
	clears int
}

func (c *countingSink) Clear() error {
	c.mu.Lock()
	c.clears++
	c.mu.Unlock()
	return c.Queue.Clear()
}

func TestAgentDaemonClearsOnlyFirstPass(t *testing.T) {
	q, err := queue.Open(t.TempDir())
	require.NoError(t, err)
	cs := &countingSink{Queue: q}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fake := clock.NewFake(time.Unix(1_700_000_000, 0))
	// 第三轮采集之后的等待中停止
	fake.OnSleep = func(n int, _ time.Duration) {
		if n == 3 {
			cancel()
		}
	}

	a := New(Options{
		Collector:       collector.New(cs, collector.Options{Clock: fake}),
		Modules:         staticModules("a.example"),
		CollectInterval: 24 * time.Hour,
		ClearQueue:      true,
		Clock:           fake,
	})
	require.NoError(t, a.Start(ctx))
	require.NoError(t, a.Wait())

	cs.mu.Lock()
	defer cs.mu.Unlock()
	assert.Equal(t, 1, cs.clears)
	n, err := q.Len()
	require.NoError(t, err)
	assert.Equal(t, 3, n, "records from later passes survive")
}
