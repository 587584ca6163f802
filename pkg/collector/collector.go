// Package collector 实体采集：从数据源获取实体列表，逐个获取详情并写入队列。
package collector

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourapi/plesk-sitekick/pkg/clock"
	"github.com/yourapi/plesk-sitekick/pkg/entity"
	"github.com/yourapi/plesk-sitekick/pkg/hooks"
	"github.com/yourapi/plesk-sitekick/pkg/monitor"
	"github.com/yourapi/plesk-sitekick/pkg/provider"
	"github.com/yourapi/plesk-sitekick/pkg/queue"
	"github.com/yourapi/plesk-sitekick/pkg/retry"
)

// 详情重试等待：5^(attempt/(attempts-1)) 秒，1s 到 5s
const detailBackoffBase = 5

// 每处理多少个实体输出一次进度
const progressEvery = 100

// Sink 采集器写入的队列
type Sink interface {
	Enqueue(entityID string, record any) (queue.Item, error)
	Clear() error
}

// Options 采集器参数
type Options struct {
	Attempts int
	Host     entity.Host
	Hooks    []hooks.Hook
	Clock    clock.Clock
	Logger   *zap.Logger
	Metrics  *monitor.CollectorMetrics
	// NewID 生成一轮采集的 collection_id，默认 uuid
	NewID func() string
}

// Collector 实体采集器
type Collector struct {
	sink     Sink
	attempts int
	host     entity.Host
	hook     hooks.Hook
	clk      clock.Clock
	log      *zap.Logger
	metrics  *monitor.CollectorMetrics
	newID    func() string
}

// New 创建采集器
func New(sink Sink, opts Options) *Collector {
	c := &Collector{
		sink:     sink,
		attempts: opts.Attempts,
		host:     opts.Host,
		hook:     hooks.Chain(opts.Hooks),
		clk:      opts.Clock,
		log:      opts.Logger,
		metrics:  opts.Metrics,
		newID:    opts.NewID,
	}
	if c.attempts < 1 {
		c.attempts = 10
	}
	if c.clk == nil {
		c.clk = clock.Real()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	if c.metrics == nil {
		c.metrics = monitor.NewCollectorMetrics(monitor.NewDiscardFactory())
	}
	if c.newID == nil {
		c.newID = uuid.NewString
	}
	return c
}

// RunPass 对每个数据源执行一次 Collect，clear 最多执行一次。
// 单个数据源失败不影响其他数据源，错误合并返回。
func (c *Collector) RunPass(ctx context.Context, providers []provider.Provider, clear bool) (int, error) {
	if len(providers) == 0 {
		c.log.Warn("no applicable provider, nothing to collect")
		return 0, nil
	}
	collectionID := c.newID()
	total := 0
	var errs []error
	for i, p := range providers {
		n, err := c.collect(ctx, p, clear && i == 0, collectionID)
		total += n
		if err != nil {
			if ctx.Err() != nil {
				return total, ctx.Err()
			}
			errs = append(errs, err)
		}
	}
	c.metrics.LastPass.SetToCurrentTime()
	return total, errors.Join(errs...)
}

// Collect 采集一个数据源的所有实体，返回写入队列的记录数。
// 实体列表获取失败时整轮失败；单个实体重试用尽后记录一次跳过并继续。
func (c *Collector) Collect(ctx context.Context, p provider.Provider, clear bool) (int, error) {
	return c.collect(ctx, p, clear, c.newID())
}

func (c *Collector) collect(ctx context.Context, p provider.Provider, clear bool, collectionID string) (int, error) {
	name := p.Name()
	log := c.log.With(zap.String("provider", name), zap.String("collection_id", collectionID))
	start := c.clk.Now()
	defer func() {
		c.metrics.PassDuration.WithLabelValues(name).Observe(c.clk.Now().Sub(start).Seconds())
	}()

	if clear {
		if err := c.sink.Clear(); err != nil {
			return 0, fmt.Errorf("clear queue: %w", err)
		}
		log.Info("queue cleared before collection")
	}

	ids, err := listEntities(ctx, p)
	if err != nil {
		c.metrics.PassErrors.WithLabelValues(name).Inc()
		log.Error("list entities failed, collection pass aborted", zap.Error(err))
		return 0, fmt.Errorf("%s: list entities: %w", name, err)
	}
	log.Info("collection pass started", zap.Int("entities", len(ids)))

	queued, skipped := 0, 0
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			log.Warn("collection pass interrupted", zap.Int("queued", queued), zap.Int("remaining", len(ids)-i))
			return queued, err
		}

		rec, err := c.detail(ctx, p, id, log)
		if err != nil {
			if ctx.Err() != nil {
				return queued, ctx.Err()
			}
			skipped++
			c.metrics.Entities.WithLabelValues(name, "skipped").Inc()
			log.Warn("entity skipped", zap.String("entity", id), zap.Int("attempts", c.attempts), zap.Error(err))
			continue
		}

		rec = c.hook(rec.Enrich(c.host, name, collectionID, c.clk.Now()))
		if _, ok := rec[entity.KeyDomain]; !ok {
			rec[entity.KeyDomain] = id
		}
		item, err := c.sink.Enqueue(id, rec)
		if err != nil {
			skipped++
			c.metrics.Entities.WithLabelValues(name, "skipped").Inc()
			log.Error("enqueue failed", zap.String("entity", id), zap.Error(err))
			continue
		}
		queued++
		c.metrics.Entities.WithLabelValues(name, "queued").Inc()

		if i%progressEvery == 0 {
			log.Info("collect progress", zap.Int("index", i), zap.Int("total", len(ids)), zap.String("entity", id))
		} else {
			log.Debug("entity queued", zap.String("entity", id), zap.String("file", item.Name))
		}
	}

	log.Info("collection pass finished",
		zap.Int("entities", len(ids)),
		zap.Int("queued", queued),
		zap.Int("skipped", skipped),
		zap.Duration("duration", c.clk.Now().Sub(start)))
	return queued, nil
}

// detail 带重试获取实体详情，数据源的 panic 转为错误
func (c *Collector) detail(ctx context.Context, p provider.Provider, id string, log *zap.Logger) (entity.Record, error) {
	var rec entity.Record
	policy := retry.Policy{
		Attempts: c.attempts,
		Base:     detailBackoffBase,
		Clock:    c.clk,
		OnFailure: func(attempt int, err error) {
			c.metrics.AttemptErrors.WithLabelValues(p.Name()).Inc()
			log.Warn("entity detail attempt failed",
				zap.String("entity", id),
				zap.Int("attempt", attempt+1),
				zap.Int("attempts", c.attempts),
				zap.Error(err))
		},
	}
	err := policy.Do(ctx, func(ctx context.Context, _ int) error {
		r, err := entityDetail(ctx, p, id)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("empty record")
		}
		rec = r
		return nil
	})
	return rec, err
}

func listEntities(ctx context.Context, p provider.Provider) (ids []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.ListEntities(ctx)
}

func entityDetail(ctx context.Context, p provider.Provider, id string) (rec entity.Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.EntityDetail(ctx, id)
}
