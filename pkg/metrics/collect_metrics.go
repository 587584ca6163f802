package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewCollectEntitiesTotal 创建「实体采集结果」指标
// 标签：provider 数据源名称；result 为 queued / skipped
func (m *MetricFactory) NewCollectEntitiesTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "collect_entities_total",
		Help:      "Entities processed by the collector, by outcome",
	}, []string{"provider", "result"})
	m.reg.MustRegister(c)
	return c
}

// NewCollectAttemptErrorsTotal 单次详情请求失败次数（含随后成功的重试）
func (m *MetricFactory) NewCollectAttemptErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "collect_attempt_errors_total",
		Help:      "Failed entity detail attempts",
	}, []string{"provider"})
	m.reg.MustRegister(c)
	return c
}

// NewCollectPassErrorsTotal 整轮失败（实体列表获取失败）
func (m *MetricFactory) NewCollectPassErrorsTotal() *prometheus.CounterVec {
	c := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "collect_pass_errors_total",
		Help:      "Collection passes aborted because the entity list could not be fetched",
	}, []string{"provider"})
	m.reg.MustRegister(c)
	return c
}

// NewCollectPassDurationSeconds 单个数据源一轮采集的耗时
// 分桶：1s ~ 4.5h，覆盖从少量域名到上万域名的服务器
func (m *MetricFactory) NewCollectPassDurationSeconds() *prometheus.HistogramVec {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "collect_pass_duration_seconds",
		Help:      "Duration of a collection pass per provider",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 15),
	}, []string{"provider"})
	m.reg.MustRegister(h)
	return h
}

// NewCollectLastPassTimestamp 最近一次完成采集的 Unix 时间
func (m *MetricFactory) NewCollectLastPassTimestamp() prometheus.Gauge {
	g := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "collect_last_pass_timestamp_seconds",
		Help:      "Unix time of the last completed collection pass",
	})
	m.reg.MustRegister(g)
	return g
}
