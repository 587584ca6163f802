package metrics

import "github.com/prometheus/client_golang/prometheus"

// NewQueueDepth 队列深度，抓取时调用 depth 实时计算
func (m *MetricFactory) NewQueueDepth(depth func() float64) prometheus.GaugeFunc {
	g := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "queue_depth",
		Help:      "Number of records waiting in the queue directory",
	}, depth)
	m.reg.MustRegister(g)
	return g
}
