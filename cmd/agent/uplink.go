package agent

import (
	"github.com/spf13/cobra"
)

func initUplinkFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "uplink."

	f.String(p+"url", defaultCfg.Uplink.URL, "-> Collector endpoint (上报地址)")
	f.String(p+"token", defaultCfg.Uplink.Token, "-> Bearer token, prefer PLESK_SITEKICK_UPLINK_TOKEN (上报令牌)")
	f.String(p+"credential-file", defaultCfg.Uplink.CredentialFile, "-> Token file keyed by hostname (令牌文件)")
	f.Int(p+"batch-size", defaultCfg.Uplink.BatchSize, "-> Records per POST (单批记录数)")
	f.Int(p+"attempts", defaultCfg.Uplink.Attempts, "-> Attempts per batch (单批最大尝试次数)")
	f.Duration(p+"interval", defaultCfg.Uplink.Interval, "-> Uplink interval (上报周期)")
	f.Duration(p+"offset", defaultCfg.Uplink.Offset, "-> Fixed offset inside the interval (固定偏移)")
	f.Bool(p+"offset-auto", defaultCfg.Uplink.OffsetAuto, "-> Derive the offset from the host IP (按IP生成偏移)")
	f.Duration(p+"timeout", defaultCfg.Uplink.Timeout, "-> POST timeout (请求超时)")
	f.Bool(p+"gzip", defaultCfg.Uplink.Gzip, "-> Gzip request bodies (压缩请求体)")
	f.Int(p+"max-failed-cycles", defaultCfg.Uplink.MaxFailedCycles, "-> Dead-letter a batch after N failed cycles, 0 = never (连续失败周期上限)")
	f.String(p+"user-agent", defaultCfg.Uplink.UserAgent, "-> User-Agent header")
}
