// Package retry 有上限的重试，等待时间按几何级数从 1s 增长到 base 秒。
package retry

import (
	"context"
	"math"
	"time"

	"github.com/yourapi/plesk-sitekick/pkg/clock"
)

// Backoff 第 attempt 次（从 0 开始）失败后的等待：base^(attempt/(attempts-1)) 秒。
// 第一次等待 1s；attempt = attempts-1 时为 base 秒（Do 在最后一次失败后不再等待）。
func Backoff(base float64, attempt, attempts int) time.Duration {
	span := attempts - 1
	if span < 1 {
		span = 1
	}
	secs := math.Pow(base, float64(attempt)/float64(span))
	return time.Duration(secs * float64(time.Second))
}

// Policy 重试策略
type Policy struct {
	Attempts int
	Base     float64
	Clock    clock.Clock
	// OnFailure 每次失败后调用（attempt 从 0 开始）
	OnFailure func(attempt int, err error)
}

// Do 最多执行 Attempts 次 fn，两次尝试之间按 Backoff 等待；最后一次失败后不等待。
// 返回最后一次的错误；ctx 取消时返回 ctx.Err()。
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}
		if attempt == attempts-1 {
			break
		}
		if serr := p.Clock.Sleep(ctx, Backoff(p.Base, attempt, attempts)); serr != nil {
			return serr
		}
	}
	return err
}
