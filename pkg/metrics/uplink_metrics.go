package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewUplinkRecordsSentTotal 已确认送达的记录数
func (m *MetricFactory) NewUplinkRecordsSentTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "uplink_records_sent_total",
		Help:      "Records acknowledged by the collector endpoint",
	})
	m.reg.MustRegister(c)
	return c
}

// NewUplinkRequestsTotal 上报请求结果
// 标签 result：success / status / transport
func (m *MetricFactory) NewUplinkRequestsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "uplink_requests_total",
		Help:      "Uplink POST requests by result",
	}, []string{"result"})
	m.reg.MustRegister(c)
	return c
}

// NewUplinkRequestDurationSeconds 单次 POST 耗时
func (m *MetricFactory) NewUplinkRequestDurationSeconds() prometheus.Histogram {
	h := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "uplink_request_duration_seconds",
		Help:      "Duration of uplink POST requests",
		Buckets:   prometheus.DefBuckets,
	})
	m.reg.MustRegister(h)
	return h
}

// NewUplinkBatchesExhaustedTotal 用尽重试仍失败、保留在队列中的批次
func (m *MetricFactory) NewUplinkBatchesExhaustedTotal() prometheus.Counter {
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "uplink_batches_exhausted_total",
		Help:      "Batches retained after exhausting all attempts",
	})
	m.reg.MustRegister(c)
	return c
}

// NewUplinkDeadletterTotal 移入死信目录的文件数
// 标签 reason：malformed / max_failed_cycles
func (m *MetricFactory) NewUplinkDeadletterTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "uplink_deadletter_files_total",
		Help:      "Queue files moved to the dead-letter directory",
	}, []string{"reason"})
	m.reg.MustRegister(c)
	return c
}

// NewUplinkOffsetSeconds 调度偏移
func (m *MetricFactory) NewUplinkOffsetSeconds() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "uplink_interval_offset_seconds",
		Help:      "Offset of this agent inside the uplink interval",
	})
	m.reg.MustRegister(g)
	return g
}
