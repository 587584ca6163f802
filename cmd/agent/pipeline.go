package agent

import (
	"github.com/spf13/cobra"
)

func initPipelineFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("queue.dir", defaultCfg.Queue.Dir, "-> Queue directory, one file per record (队列目录)")
	f.String("queue.deadletter-dir", defaultCfg.Queue.DeadletterDir, "-> Dead-letter directory, default <queue.dir>.deadletter (死信目录)")

	f.Duration("collect.interval", defaultCfg.Collect.Interval, "-> Collection interval in daemon mode (采集周期)")
	f.Int("collect.attempts", defaultCfg.Collect.Attempts, "-> Detail attempts per entity (单个实体最大尝试次数)")
	f.Bool("collect.clear-queue", defaultCfg.Collect.ClearQueue, "-> Clear the queue before the first pass of the process (首轮采集前清空队列)")
	f.StringSlice("collect.hooks", defaultCfg.Collect.Hooks, "-> Record hooks [redact-secrets,drop-empty-sections] (记录处理钩子)")

	f.Bool("providers.plesk.enable", defaultCfg.Providers.Plesk.Enable, "-> Enable the Plesk provider (启用Plesk数据源)")
	f.String("providers.plesk.url", defaultCfg.Providers.Plesk.URL, "-> Plesk API base url, default https://<hostname>:8443/api/v2/")
	f.String("providers.plesk.credential-file", defaultCfg.Providers.Plesk.CredentialFile, "-> Plesk API key file (密钥文件)")
	f.Bool("providers.plesk.insecure-tls", defaultCfg.Providers.Plesk.InsecureTLS, "-> Skip TLS verification for the local panel (跳过证书校验)")
	f.Duration("providers.plesk.timeout", defaultCfg.Providers.Plesk.Timeout, "-> Plesk API request timeout (请求超时)")
	f.Bool("providers.server.enable", defaultCfg.Providers.Server.Enable, "-> Enable the server vitals provider (启用主机数据源)")
	f.Bool("providers.static.enable", defaultCfg.Providers.Static.Enable, "-> Enable the static entity list (启用静态列表)")
	f.StringSlice("providers.static.entities", defaultCfg.Providers.Static.Entities, "-> Static entity ids (静态实体列表)")
}
