package registers

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yourapi/plesk-sitekick/pkg/metrics"
	"github.com/yourapi/plesk-sitekick/pkg/monitor"
)

// Registry 指标注册结果：
// Prom     暴露给 /metrics 的注册器
// Factory  供组件创建指标
// Collect  采集器指标
// Uplink   上报指标
type Registry struct {
	Prom    *prometheus.Registry
	Factory *metrics.MetricFactory
	Collect *monitor.CollectorMetrics
	Uplink  *monitor.UplinkMetrics
}

// InitPromRegistry 初始化 Prometheus 注册器（可选进程指标，不注册 Go 指标）并创建组件指标。
// queueDepth 非空时注册队列深度 GaugeFunc。
func InitPromRegistry(enableProcess bool, queueDepth func() float64) *Registry {
	promReg := metrics.NewAgentRegistry(enableProcess)
	factory := metrics.NewMetricFactory(metrics.NewPromRegistry(promReg))
	r := &Registry{
		Prom:    promReg,
		Factory: factory,
		Collect: monitor.NewCollectorMetrics(factory),
		Uplink:  monitor.NewUplinkMetrics(factory),
	}
	if queueDepth != nil {
		factory.NewQueueDepth(queueDepth)
	}
	return r
}
