package agent

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version 构建时通过 -ldflags "-X github.com/yourapi/plesk-sitekick/cmd/agent.Version=..." 注入
var Version = "dev"

var (
	cfgFile string
	envFile string
	once    bool
	clearQ  bool
)

var rootCmd = &cobra.Command{
	Use:           "plesk-sitekick",
	Short:         "Store-and-forward telemetry agent for Plesk hosts",
	Long:          "Collects per-domain and per-server records into a local queue and pushes them to a central collector.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, modeRun)
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run collection and uplink (default command) | 采集并上报",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, modeRun)
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one collection pass into the queue | 执行一轮采集",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, modeCollect)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Drain the queue to the collector and exit | 清空队列后退出",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAgent(cmd, modeSend)
	},
}

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "List providers applicable on this host | 列出可用数据源",
	RunE:  listProviders,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), Version)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// 统一输出错误到 stderr
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "configs/config.yaml", "-> Config file path (配置文件路径)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "-> Optional .env file loaded before the environment (环境变量文件)")

	rootCmd.Flags().BoolVar(&once, "once", false, "-> Collect once, drain the queue and exit (单次运行)")
	runCmd.Flags().BoolVar(&once, "once", false, "-> Collect once, drain the queue and exit (单次运行)")
	collectCmd.Flags().BoolVar(&clearQ, "clear", false, "-> Clear the queue before collecting (采集前清空队列)")

	// 注册分组 flag
	initServerFlags(rootCmd)
	initPipelineFlags(rootCmd)
	initUplinkFlags(rootCmd)
	initLogFlags(rootCmd)

	rootCmd.AddCommand(runCmd, collectCmd, sendCmd, providersCmd, versionCmd)
}
