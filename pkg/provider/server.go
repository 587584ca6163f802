package provider

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

// ServerName 数据源名称
const ServerName = "server"

// Server 把本机当作一个实体（以 IP 为 ID）上报基础运行状态
type Server struct {
	host entity.Host
	goos string
	root string
}

// NewServer host 为启动时探测到的主机身份
func NewServer(h entity.Host) *Server {
	return &Server{host: h, goos: runtime.GOOS, root: "/"}
}

func (s *Server) Name() string { return ServerName }

// Applicable 仅 Linux
func (s *Server) Applicable(context.Context) (bool, error) {
	return s.goos == "linux", nil
}

func (s *Server) ListEntities(context.Context) ([]string, error) {
	if s.host.IPAddress == "" {
		return nil, fmt.Errorf("server: host ip address unknown")
	}
	return []string{s.host.IPAddress}, nil
}

// EntityDetail 主机信息必须成功，负载/内存/磁盘/CPU 各自失败时省略对应段
func (s *Server) EntityDetail(ctx context.Context, id string) (entity.Record, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("server: host info: %w", err)
	}
	rec := entity.Record{
		entity.KeyDomain: id,
		"hostname":       s.host.Hostname,
		"ip":             s.host.IPAddress,
		"mac":            s.host.MACAddress,
		"uptime":         (time.Duration(info.Uptime) * time.Second).String(),
		"uptime_seconds": info.Uptime,
		"boot_time":      time.Unix(int64(info.BootTime), 0).UTC().Format(time.RFC3339),
		"os":             info.OS,
		"platform": map[string]any{
			"name":    info.Platform,
			"family":  info.PlatformFamily,
			"version": info.PlatformVersion,
			"kernel":  info.KernelVersion,
			"arch":    info.KernelArch,
		},
	}

	if avg, err := load.AvgWithContext(ctx); err == nil {
		rec["load"] = map[string]any{"load1": avg.Load1, "load5": avg.Load5, "load15": avg.Load15}
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		rec["memory"] = map[string]any{
			"total_bytes":     vm.Total,
			"available_bytes": vm.Available,
			"used_percent":    vm.UsedPercent,
		}
	}
	if du, err := disk.UsageWithContext(ctx, s.root); err == nil {
		rec["disk"] = map[string]any{
			"path":         du.Path,
			"total_bytes":  du.Total,
			"free_bytes":   du.Free,
			"used_percent": du.UsedPercent,
		}
	}
	logical, lerr := cpu.CountsWithContext(ctx, true)
	physical, perr := cpu.CountsWithContext(ctx, false)
	if lerr == nil && perr == nil {
		rec["cpu"] = map[string]any{"logical": logical, "physical": physical}
	}
	return rec, nil
}
