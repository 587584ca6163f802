package uplink

import (
	"context"

	"go.uber.org/zap"
)

// Loop 调度 + 上报循环
type Loop struct {
	sched  *Scheduler
	sender *Sender
	log    *zap.Logger
}

func NewLoop(sched *Scheduler, sender *Sender, log *zap.Logger) *Loop {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loop{sched: sched, sender: sender, log: log}
}

// Run 每次唤醒执行一个周期。
// stopWhenIdle 为 nil 时常驻运行；否则在周期结果为 terminal 且 stopWhenIdle() 为 true
// （生产方已结束）时返回。ctx 取消时返回 nil。
func (l *Loop) Run(ctx context.Context, stopWhenIdle func() bool) error {
	l.log.Info("uplink loop started",
		zap.Duration("interval", l.sched.Interval()),
		zap.Duration("offset", l.sched.Offset()),
		zap.Bool("one_shot", stopWhenIdle != nil))
	for {
		if err := l.sched.Wait(ctx); err != nil {
			l.log.Info("uplink loop stopped", zap.Int("total", l.sender.Total()))
			return nil
		}
		// 先读取生产方状态再查看队列，保证不会错过生产方最后写入的文件
		producerDone := stopWhenIdle != nil && stopWhenIdle()
		_, terminal, err := l.sender.RunCycle(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.log.Info("uplink loop stopped", zap.Int("total", l.sender.Total()))
				return nil
			}
			l.log.Warn("uplink cycle failed", zap.Error(err))
		}
		if terminal && producerDone {
			l.log.Info("uplink finished, queue drained", zap.Int("total", l.sender.Total()))
			return nil
		}
	}
}
