package uplink

import (
	"context"
	"hash/fnv"
	"math/rand/v2"
	"time"

	"github.com/yourapi/plesk-sitekick/pkg/clock"
)

// DeriveOffset 以 IP 地址为种子生成 [0, interval) 内的稳定偏移，
// 同一 IP 每次得到相同结果，大量主机的上报时间因此被均匀打散。
func DeriveOffset(ip string, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(ip))
	seed := h.Sum64()
	r := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	off := time.Duration(r.Float64() * float64(interval))
	if off >= interval {
		off = interval - 1
	}
	return off
}

// NextWake 严格晚于 now 的最小 k*interval + offset（以 Unix 纪元为基准）
func NextWake(interval, offset time.Duration, now time.Time) time.Time {
	n := now.UnixNano() - int64(offset)
	iv := int64(interval)
	k := n / iv
	if n%iv < 0 {
		k--
	}
	return time.Unix(0, (k+1)*iv+int64(offset))
}

// SleepDuration max(NextWake - now, interval/2)，避免在边界附近连续触发
func SleepDuration(interval, offset time.Duration, now time.Time) time.Duration {
	d := NextWake(interval, offset, now).Sub(now)
	if half := interval / 2; d < half {
		return half
	}
	return d
}

// Scheduler 上报唤醒调度
type Scheduler struct {
	interval time.Duration
	offset   time.Duration
	clk      clock.Clock
}

// NewScheduler offset 需在 [0, interval) 内
func NewScheduler(interval, offset time.Duration, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.Real()
	}
	return &Scheduler{interval: interval, offset: offset, clk: clk}
}

func (s *Scheduler) Interval() time.Duration { return s.interval }
func (s *Scheduler) Offset() time.Duration   { return s.offset }

// Wait 睡眠到下一个唤醒点，ctx 取消时提前返回
func (s *Scheduler) Wait(ctx context.Context) error {
	return s.clk.Sleep(ctx, SleepDuration(s.interval, s.offset, s.clk.Now()))
}
