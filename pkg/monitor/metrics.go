// Package monitor 按组件分组的指标集合。
package monitor

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourapi/plesk-sitekick/pkg/metrics"
)

// -------------------------- 采集器指标 --------------------------
type CollectorMetrics struct {
	Entities      *prometheus.CounterVec   // provider, result
	AttemptErrors *prometheus.CounterVec   // provider
	PassErrors    *prometheus.CounterVec   // provider
	PassDuration  *prometheus.HistogramVec // provider
	LastPass      prometheus.Gauge
}

// NewCollectorMetrics 通过工厂创建并注册采集器指标
func NewCollectorMetrics(f *metrics.MetricFactory) *CollectorMetrics {
	return &CollectorMetrics{
		Entities:      f.NewCollectEntitiesTotal(),
		AttemptErrors: f.NewCollectAttemptErrorsTotal(),
		PassErrors:    f.NewCollectPassErrorsTotal(),
		PassDuration:  f.NewCollectPassDurationSeconds(),
		LastPass:      f.NewCollectLastPassTimestamp(),
	}
}

// -------------------------- 上报指标 --------------------------
type UplinkMetrics struct {
	RecordsSent      prometheus.Counter
	Requests         *prometheus.CounterVec // result
	RequestDuration  prometheus.Histogram
	BatchesExhausted prometheus.Counter
	Deadletter       *prometheus.CounterVec // reason
	Offset           prometheus.Gauge
}

// NewUplinkMetrics 通过工厂创建并注册上报指标
func NewUplinkMetrics(f *metrics.MetricFactory) *UplinkMetrics {
	return &UplinkMetrics{
		RecordsSent:      f.NewUplinkRecordsSentTotal(),
		Requests:         f.NewUplinkRequestsTotal(),
		RequestDuration:  f.NewUplinkRequestDurationSeconds(),
		BatchesExhausted: f.NewUplinkBatchesExhaustedTotal(),
		Deadletter:       f.NewUplinkDeadletterTotal(),
		Offset:           f.NewUplinkOffsetSeconds(),
	}
}

// NewDiscardFactory 指标注册到一次性的 Registry（测试及不暴露 /metrics 的子命令）
func NewDiscardFactory() *metrics.MetricFactory {
	return metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry()))
}
