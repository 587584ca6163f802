// Package uplink 把队列中的记录按批次推送到远端采集端。
//
// 单个周期的状态：IDLE → BATCH_SELECTED → SENDING → ACKED（删除已确认文件）
// 或 EXHAUSTED（重试用尽，文件保留到下一周期）。
package uplink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/yourapi/plesk-sitekick/pkg/clock"
	"github.com/yourapi/plesk-sitekick/pkg/monitor"
	"github.com/yourapi/plesk-sitekick/pkg/queue"
	"github.com/yourapi/plesk-sitekick/pkg/retry"
)

// 上报重试等待：60^(attempt/(attempts-1)) 秒，1s 到 60s
const pushBackoffBase = 60

// ErrExhausted 批次重试用尽，文件保留在队列中
var ErrExhausted = errors.New("batch delivery attempts exhausted")

// Queue 上报器使用的队列操作
type Queue interface {
	PeekOldest(n int) ([]queue.Item, error)
	Read(it queue.Item) (json.RawMessage, error)
	Ack(items []queue.Item) error
	Quarantine(items []queue.Item, dir string) error
}

// SenderOptions 上报器参数
type SenderOptions struct {
	BatchSize int
	Attempts  int
	// MaxFailedCycles 同一批次连续 M 个周期重试用尽后移入死信目录；0 表示一直保留
	MaxFailedCycles int
	DeadletterDir   string
	// Endpoint 仅用于日志
	Endpoint string
	Clock    clock.Clock
	Logger   *zap.Logger
	Metrics  *monitor.UplinkMetrics
}

// Sender 批次上报器；同一队列目录只能有一个 Sender
type Sender struct {
	q      Queue
	pusher Pusher
	opts   SenderOptions
	clk    clock.Clock
	log    *zap.Logger
	m      *monitor.UplinkMetrics

	previous     string // 上一周期的批次（文件名集合）
	failedBatch  string
	failedCycles int
	total        int
}

// NewSender 创建上报器
func NewSender(q Queue, pusher Pusher, opts SenderOptions) *Sender {
	if opts.BatchSize < 1 {
		opts.BatchSize = 200
	}
	if opts.Attempts < 1 {
		opts.Attempts = 10
	}
	s := &Sender{q: q, pusher: pusher, opts: opts, clk: opts.Clock, log: opts.Logger, m: opts.Metrics}
	if s.clk == nil {
		s.clk = clock.Real()
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.m == nil {
		s.m = monitor.NewUplinkMetrics(monitor.NewDiscardFactory())
	}
	return s
}

// Total 本进程累计确认送达的记录数
func (s *Sender) Total() int { return s.total }

// RunCycle 执行一个上报周期。
// terminal=true 表示队列为空，或批次与上一周期完全相同（没有新文件）。
func (s *Sender) RunCycle(ctx context.Context) (sent int, terminal bool, err error) {
	items, err := s.q.PeekOldest(s.opts.BatchSize)
	if err != nil {
		return 0, false, fmt.Errorf("peek queue: %w", err)
	}
	if len(items) == 0 {
		s.previous = ""
		return 0, true, nil
	}

	key := batchKey(items)
	if key == s.previous {
		// 清空记忆，守护进程在下一次唤醒时重新尝试该批次
		s.previous = ""
		s.log.Info("no new files in queue", zap.Int("batch_size", len(items)))
		return 0, true, nil
	}
	s.previous = key

	good, payload := s.readBatch(items)
	if len(good) == 0 {
		return 0, false, nil
	}

	log := s.log.With(zap.Int("batch_size", len(good)), zap.String("endpoint", s.opts.Endpoint))
	policy := retry.Policy{
		Attempts: s.opts.Attempts,
		Base:     pushBackoffBase,
		Clock:    s.clk,
		OnFailure: func(attempt int, err error) {
			fields := []zap.Field{zap.Int("attempt", attempt+1), zap.Int("attempts", s.opts.Attempts)}
			var se *StatusError
			if errors.As(err, &se) {
				s.m.Requests.WithLabelValues("status").Inc()
				fields = append(fields, zap.Int("status", se.Code), zap.String("body", se.Body))
			} else {
				s.m.Requests.WithLabelValues("transport").Inc()
				fields = append(fields, zap.Error(err))
			}
			log.Warn("push attempt failed", fields...)
		},
	}
	err = policy.Do(ctx, func(ctx context.Context, _ int) error {
		start := s.clk.Now()
		defer func() { s.m.RequestDuration.Observe(s.clk.Now().Sub(start).Seconds()) }()
		return s.pusher.Push(ctx, payload)
	})
	if err != nil {
		if ctx.Err() != nil {
			return 0, false, ctx.Err()
		}
		return 0, false, s.exhausted(key, good, err, log)
	}

	s.m.Requests.WithLabelValues("success").Inc()
	s.failedBatch, s.failedCycles = "", 0
	if ackErr := s.q.Ack(good); ackErr != nil {
		// 已送达但未删除的文件会在下一周期重复发送
		log.Error("ack failed after successful push", zap.Error(ackErr))
		return len(good), false, fmt.Errorf("ack: %w", ackErr)
	}
	s.total += len(good)
	s.m.RecordsSent.Add(float64(len(good)))
	log.Info("pushed batch", zap.String("progress", fmt.Sprintf("%d:%d", s.total-len(good), s.total)))
	return len(good), false, nil
}

// readBatch 读取批次文件并拼成 JSON 数组；损坏的文件移入死信目录，已消失的文件跳过
func (s *Sender) readBatch(items []queue.Item) ([]queue.Item, []byte) {
	good := make([]queue.Item, 0, len(items))
	var bad []queue.Item
	var buf bytes.Buffer
	buf.WriteByte('[')
	for _, it := range items {
		raw, err := s.q.Read(it)
		if err != nil {
			if os.IsNotExist(err) {
				s.log.Debug("queue file vanished", zap.String("file", it.Name))
				continue
			}
			s.log.Warn("skipping malformed queue file", zap.String("file", it.Name), zap.Error(err))
			bad = append(bad, it)
			continue
		}
		if len(good) > 0 {
			buf.WriteByte(',')
		}
		if err := json.Compact(&buf, raw); err != nil {
			// Read 已校验为 JSON 对象，这里不应失败
			buf.Write(raw)
		}
		good = append(good, it)
	}
	buf.WriteByte(']')

	if len(bad) > 0 && s.opts.DeadletterDir != "" {
		if err := s.q.Quarantine(bad, s.opts.DeadletterDir); err != nil {
			s.log.Error("quarantine malformed files failed", zap.Error(err))
		} else {
			s.m.Deadletter.WithLabelValues("malformed").Add(float64(len(bad)))
		}
	}
	return good, buf.Bytes()
}

func (s *Sender) exhausted(key string, items []queue.Item, cause error, log *zap.Logger) error {
	s.m.BatchesExhausted.Inc()
	if key == s.failedBatch {
		s.failedCycles++
	} else {
		s.failedBatch, s.failedCycles = key, 1
	}
	log.Error("push failed, batch retained",
		zap.Int("attempts", s.opts.Attempts),
		zap.Int("failed_cycles", s.failedCycles),
		zap.Error(cause))

	if s.opts.MaxFailedCycles > 0 && s.failedCycles >= s.opts.MaxFailedCycles && s.opts.DeadletterDir != "" {
		if err := s.q.Quarantine(items, s.opts.DeadletterDir); err != nil {
			log.Error("quarantine failed batch failed", zap.Error(err))
		} else {
			s.m.Deadletter.WithLabelValues("max_failed_cycles").Add(float64(len(items)))
			log.Error("batch moved to deadletter", zap.String("dir", s.opts.DeadletterDir), zap.Int("failed_cycles", s.failedCycles))
		}
		s.failedBatch, s.failedCycles = "", 0
		s.previous = ""
	}
	return fmt.Errorf("%w: %v", ErrExhausted, cause)
}

func batchKey(items []queue.Item) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	sort.Strings(names)
	return strings.Join(names, "\x00")
}
