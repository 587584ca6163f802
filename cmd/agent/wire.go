package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourapi/plesk-sitekick/cmd/server"
	runner "github.com/yourapi/plesk-sitekick/pkg/agent"
	"github.com/yourapi/plesk-sitekick/pkg/collector"
	"github.com/yourapi/plesk-sitekick/pkg/config"
	"github.com/yourapi/plesk-sitekick/pkg/credential"
	"github.com/yourapi/plesk-sitekick/pkg/entity"
	"github.com/yourapi/plesk-sitekick/pkg/hooks"
	"github.com/yourapi/plesk-sitekick/pkg/hostinfo"
	"github.com/yourapi/plesk-sitekick/pkg/logger"
	"github.com/yourapi/plesk-sitekick/pkg/queue"
	"github.com/yourapi/plesk-sitekick/pkg/registers"
	"github.com/yourapi/plesk-sitekick/pkg/signal"
	"github.com/yourapi/plesk-sitekick/pkg/uplink"
	"github.com/yourapi/plesk-sitekick/pkg/util"
)

const shutdownTimeout = 30 * time.Second

type mode int

const (
	modeRun mode = iota
	modeCollect
	modeSend
)

// app 一次命令执行所需的全部依赖
type app struct {
	cfg      *config.Config
	log      *zap.Logger
	host     entity.Host
	queue    *queue.Queue
	registry *registers.Registry
}

func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := config.LoadConfigWithCli(cmd)
	if err != nil {
		return nil, fmt.Errorf("%w (check the config path or pass -c)", err)
	}
	log, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	host, err := hostinfo.Detect(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("detect host identity: %w", err)
	}
	q, err := queue.Open(cfg.Queue.Dir)
	if err != nil {
		return nil, err
	}
	depth := func() float64 {
		n, err := q.Len()
		if err != nil {
			return -1
		}
		return float64(n)
	}
	const enableProcess = true
	rt := &app{
		cfg:      cfg,
		log:      log,
		host:     host,
		queue:    q,
		registry: registers.InitPromRegistry(enableProcess, depth),
	}
	log.Info("host identity detected",
		zap.String("hostname", host.Hostname),
		zap.String("ip", host.IPAddress),
		zap.String("mac", host.MACAddress),
		zap.String("queue", q.Dir()))
	return rt, nil
}

func (rt *app) modules() []registers.Module {
	pleskTokens := credential.NewStore(rt.cfg.Providers.Plesk.CredentialFile, rt.host.Hostname, credential.PleskIssuer{
		Hostname:  rt.host.Hostname,
		IPAddress: rt.host.IPAddress,
	})
	return registers.Modules(&rt.cfg.Providers, registers.Deps{Host: rt.host, PleskTokens: pleskTokens})
}

func (rt *app) newCollector() (*collector.Collector, error) {
	hs, err := hooks.Resolve(rt.cfg.Collect.Hooks)
	if err != nil {
		return nil, err
	}
	return collector.New(rt.queue, collector.Options{
		Attempts: rt.cfg.Collect.Attempts,
		Host:     rt.host,
		Hooks:    hs,
		Logger:   rt.log.Named("collector"),
		Metrics:  rt.registry.Collect,
	}), nil
}

func (rt *app) uplinkTokens() credential.TokenSource {
	if rt.cfg.Uplink.Token != "" {
		return credential.Static(rt.cfg.Uplink.Token)
	}
	return credential.NewStore(rt.cfg.Uplink.CredentialFile, rt.host.Hostname, nil)
}

func (rt *app) newUplink() *uplink.Loop {
	u := rt.cfg.Uplink
	log := rt.log.Named("uplink")

	offset := u.Offset
	if u.OffsetAuto {
		offset = uplink.DeriveOffset(rt.host.IPAddress, u.Interval)
	}
	rt.registry.Uplink.Offset.Set(offset.Seconds())

	client := uplink.NewClient(uplink.ClientOptions{
		URL:       u.URL,
		Tokens:    rt.uplinkTokens(),
		Gzip:      u.Gzip,
		UserAgent: fmt.Sprintf("%s/%s", u.UserAgent, Version),
		Timeout:   u.Timeout,
	})
	sender := uplink.NewSender(rt.queue, client, uplink.SenderOptions{
		BatchSize:       u.BatchSize,
		Attempts:        u.Attempts,
		MaxFailedCycles: u.MaxFailedCycles,
		DeadletterDir:   rt.cfg.Queue.DeadletterDir,
		Endpoint:        client.URL(),
		Logger:          log,
		Metrics:         rt.registry.Uplink,
	})
	return uplink.NewLoop(uplink.NewScheduler(u.Interval, offset, nil), sender, log)
}

func (rt *app) health() (map[string]any, error) {
	n, err := rt.queue.Len()
	if err != nil {
		return nil, fmt.Errorf("queue unreadable: %w", err)
	}
	return map[string]any{
		"hostname":    rt.host.Hostname,
		"queue_depth": n,
	}, nil
}

func runAgent(cmd *cobra.Command, m mode) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	oneShot := m != modeRun || once
	opts := runner.Options{
		Once:            oneShot,
		CollectInterval: rt.cfg.Collect.Interval,
		ClearQueue:      rt.cfg.Collect.ClearQueue || (m == modeCollect && clearQ),
		Logger:          rt.log.Named("agent"),
	}
	if m != modeSend {
		c, err := rt.newCollector()
		if err != nil {
			return err
		}
		opts.Collector = c
		opts.Modules = rt.modules()
	}
	if m != modeCollect {
		opts.Uplink = rt.newUplink()
	}

	ctx, cancel := signal.Context(cmd.Context(), rt.log)
	defer cancel()

	var srv *server.Server
	if !oneShot {
		util.PrintBanner(cmd.OutOrStdout(), "sitekick", "blue", Version)
		if rt.cfg.Server.Enable {
			srv = server.NewHTTPServer(&rt.cfg.Server, rt.log.Named("http"), rt.registry.Prom, rt.health, Version)
			if err := srv.Start(); err != nil {
				return fmt.Errorf("start HTTP server failed: %w", err)
			}
		}
	}

	a := runner.New(opts)
	if err := a.Start(ctx); err != nil {
		return err
	}

	done := make(chan error, 1)
	go func() { done <- a.Wait() }()

	select {
	case err := <-done:
		if srv != nil {
			_ = signal.Shutdown(rt.log, shutdownTimeout, srv.Shutdown)
		}
		if err != nil {
			rt.log.Error("agent finished with errors", zap.Error(err))
		}
		return err
	case <-ctx.Done():
	}

	fns := []func(context.Context) error{a.Shutdown}
	if srv != nil {
		fns = append(fns, srv.Shutdown)
	}
	if err := signal.Shutdown(rt.log, shutdownTimeout, fns...); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	rt.log.Info("all services shutdown successfully")
	return nil
}

func listProviders(cmd *cobra.Command, _ []string) error {
	rt, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	out := cmd.OutOrStdout()
	found := registers.Discover(cmd.Context(), rt.modules(), rt.log)
	for _, p := range found {
		fmt.Fprintln(out, p.Name())
	}
	if len(found) == 0 {
		fmt.Fprintln(out, "no applicable providers")
	}
	return nil
}
