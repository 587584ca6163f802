// Package hostinfo 探测本机身份（主机名、IP、MAC），启动时执行一次。
package hostinfo

import (
	"context"
	"net"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/host"
	psnet "github.com/shirou/gopsutil/v3/net"

	"github.com/yourapi/plesk-sitekick/pkg/entity"
)

// Detect 主机名来自 gopsutil，IP 优先使用主机名解析结果，
// 解析失败时取第一个启用的非回环网卡地址；MAC 取该网卡（或第一个有 MAC 的网卡）
func Detect(ctx context.Context) (entity.Host, error) {
	var h entity.Host

	info, err := host.InfoWithContext(ctx)
	if err == nil && info.Hostname != "" {
		h.Hostname = info.Hostname
	} else if name, herr := os.Hostname(); herr == nil {
		h.Hostname = name
	} else {
		return h, herr
	}

	ifaces, ifErr := psnet.InterfacesWithContext(ctx)

	var resolver net.Resolver
	if addrs, err := resolver.LookupHost(ctx, h.Hostname); err == nil {
		h.IPAddress = firstIPv4(addrs)
	}
	if ifErr == nil {
		ip, mac := pickInterface(ifaces, h.IPAddress)
		if h.IPAddress == "" {
			h.IPAddress = ip
		}
		h.MACAddress = mac
	}
	if h.IPAddress == "" {
		h.IPAddress = "127.0.0.1"
	}
	return h, nil
}

func firstIPv4(addrs []string) string {
	for _, a := range addrs {
		if ip := net.ParseIP(a); ip != nil && ip.To4() != nil {
			return a
		}
	}
	if len(addrs) > 0 {
		return addrs[0]
	}
	return ""
}

// pickInterface 返回 (ip, mac)。want 非空时优先返回拥有该地址的网卡
func pickInterface(ifaces psnet.InterfaceStatList, want string) (string, string) {
	var fallbackIP, fallbackMAC string
	for _, iface := range ifaces {
		if hasFlag(iface.Flags, "loopback") || !hasFlag(iface.Flags, "up") {
			continue
		}
		for _, addr := range iface.Addrs {
			ip, _, err := net.ParseCIDR(addr.Addr)
			if err != nil || ip.To4() == nil {
				continue
			}
			if want != "" && ip.String() == want {
				return want, strings.ToUpper(iface.HardwareAddr)
			}
			if fallbackIP == "" {
				fallbackIP = ip.String()
				fallbackMAC = strings.ToUpper(iface.HardwareAddr)
			}
		}
		if fallbackMAC == "" && iface.HardwareAddr != "" {
			fallbackMAC = strings.ToUpper(iface.HardwareAddr)
		}
	}
	return fallbackIP, fallbackMAC
}

func hasFlag(flags []string, flag string) bool {
	for _, f := range flags {
		if f == flag {
			return true
		}
	}
	return false
}
