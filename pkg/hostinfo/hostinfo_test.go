package hostinfo

import (
	"context"
	"testing"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPickInterface(t *testing.T) {
	ifaces := psnet.InterfaceStatList{
		{Name: "lo", Flags: []string{"up", "loopback"}, Addrs: psnet.InterfaceAddrList{{Addr: "127.0.0.1/8"}}},
		{Name: "eth0", HardwareAddr: "aa:bb:cc:dd:ee:01", Flags: []string{"up", "broadcast"},
			Addrs: psnet.InterfaceAddrList{{Addr: "fe80::1/64"}, {Addr: "10.0.0.5/24"}}},
		{Name: "eth1", HardwareAddr: "aa:bb:cc:dd:ee:02", Flags: []string{"up"},
			Addrs: psnet.InterfaceAddrList{{Addr: "192.0.2.10/24"}}},
		{Name: "eth2", HardwareAddr: "aa:bb:cc:dd:ee:03", Flags: []string{"broadcast"},
			Addrs: psnet.InterfaceAddrList{{Addr: "198.51.100.1/24"}}},
	}

	ip, mac := pickInterface(ifaces, "")
	assert.Equal(t, "10.0.0.5", ip)
	assert.Equal(t, "AA:BB:CC:DD:EE:01", mac)

	ip, mac = pickInterface(ifaces, "192.0.2.10")
	assert.Equal(t, "192.0.2.10", ip)
	assert.Equal(t, "AA:BB:CC:DD:EE:02", mac)
}

func TestDetect(t *testing.T) {
	h, err := Detect(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, h.Hostname)
	assert.NotEmpty(t, h.IPAddress)
}
