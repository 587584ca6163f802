package registers

import "context"

// Agent 顶层生命周期接口（采集循环 + 上报循环）
type Agent interface {
	Start(ctx context.Context) error    // 启动后台任务，立即返回
	Wait() error                        // 阻塞直到所有任务结束
	Shutdown(ctx context.Context) error // 协作式停止，ctx 控制等待上限
}
