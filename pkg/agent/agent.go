// Package agent 组合采集循环与上报循环，两者只通过队列目录交互。
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourapi/plesk-sitekick/pkg/clock"
	"github.com/yourapi/plesk-sitekick/pkg/collector"
	"github.com/yourapi/plesk-sitekick/pkg/registers"
	"github.com/yourapi/plesk-sitekick/pkg/uplink"
)

var _ registers.Agent = (*Agent)(nil)

// Options agent 参数；Collector 或 Uplink 为 nil 时对应任务不启动
type Options struct {
	Collector       *collector.Collector
	Modules         []registers.Module
	CollectInterval time.Duration
	ClearQueue      bool
	Uplink          *uplink.Loop
	// Once 只执行一轮采集；上报在采集结束且队列无新文件后退出
	Once   bool
	Clock  clock.Clock
	Logger *zap.Logger
}

// Agent 采集 + 上报
type Agent struct {
	opts Options
	clk  clock.Clock
	log  *zap.Logger

	cancel      context.CancelFunc
	wg          sync.WaitGroup
	collectDone atomic.Bool

	mu      sync.Mutex
	errs    []error
	started bool
}

func New(opts Options) *Agent {
	a := &Agent{opts: opts, clk: opts.Clock, log: opts.Logger}
	if a.clk == nil {
		a.clk = clock.Real()
	}
	if a.log == nil {
		a.log = zap.NewNop()
	}
	return a
}

// Start 启动后台任务
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("agent already started")
	}
	if a.opts.Collector == nil && a.opts.Uplink == nil {
		return errors.New("agent has nothing to run")
	}
	if a.opts.Collector != nil && !a.opts.Once && a.opts.CollectInterval <= 0 {
		return fmt.Errorf("collect interval must be positive, got %s", a.opts.CollectInterval)
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)

	if a.opts.Collector == nil {
		a.collectDone.Store(true)
	} else {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer a.collectDone.Store(true)
			a.collectLoop(ctx)
		}()
	}

	if a.opts.Uplink != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			var stop func() bool
			if a.opts.Once {
				stop = a.collectDone.Load
			}
			if err := a.opts.Uplink.Run(ctx, stop); err != nil {
				a.record(fmt.Errorf("uplink: %w", err))
			}
		}()
	}

	a.log.Info("agent started",
		zap.Bool("collect", a.opts.Collector != nil),
		zap.Bool("uplink", a.opts.Uplink != nil),
		zap.Bool("once", a.opts.Once))
	return nil
}

// collectLoop 启动即执行一轮，之后每 CollectInterval 执行一次；每轮重新探测数据源。
// ClearQueue 只作用于进程的第一轮，之后的轮次不会删除尚未送达的记录
func (a *Agent) collectLoop(ctx context.Context) {
	clear := a.opts.ClearQueue
	for {
		providers := registers.Discover(ctx, a.opts.Modules, a.log)
		n, err := a.opts.Collector.RunPass(ctx, providers, clear)
		clear = false
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			a.log.Error("collection pass failed", zap.Int("queued", n), zap.Error(err))
			if a.opts.Once {
				a.record(fmt.Errorf("collect: %w", err))
			}
		} else {
			a.log.Info("collection pass completed", zap.Int("queued", n), zap.Int("providers", len(providers)))
		}
		if a.opts.Once {
			return
		}
		if err := a.clk.Sleep(ctx, a.opts.CollectInterval); err != nil {
			return
		}
	}
}

// Done 采集任务是否已结束
func (a *Agent) Done() bool { return a.collectDone.Load() }

// Wait 阻塞直到所有任务退出，返回单次模式下的采集错误
func (a *Agent) Wait() error {
	a.wg.Wait()
	a.mu.Lock()
	defer a.mu.Unlock()
	return errors.Join(a.errs...)
}

// Shutdown 取消所有任务并等待退出，ctx 到期时返回 ctx.Err()
func (a *Agent) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel == nil {
		return nil
	}
	a.log.Info("shutting down agent")
	cancel()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		a.log.Info("agent stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Agent) record(err error) {
	a.mu.Lock()
	a.errs = append(a.errs, err)
	a.mu.Unlock()
}
