package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var valid = validator.New()

// EnvPrefix 环境变量前缀（uplink.token -> PLESK_SITEKICK_UPLINK_TOKEN）
const EnvPrefix = "PLESK_SITEKICK"

// Config 全局配置结构体（聚合所有核心模块）
type Config struct {
	Server    ServerConfig    `yaml:"server" mapstructure:"server" comment:"HTTP服务配置（/metrics, /health）"`
	Queue     QueueConfig     `yaml:"queue" mapstructure:"queue" comment:"本地持久化队列"`
	Collect   CollectConfig   `yaml:"collect" mapstructure:"collect" comment:"采集配置"`
	Providers ProvidersConfig `yaml:"providers" mapstructure:"providers" comment:"数据源配置"`
	Uplink    UplinkConfig    `yaml:"uplink" mapstructure:"uplink" comment:"上报配置"`
	Log       ZapLogConfig    `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（超时统一为time.Duration，支持"30s"解析）
type ServerConfig struct {
	Enable       bool          `yaml:"enable" mapstructure:"enable" env:"SERVER_ENABLE" comment:"是否启用HTTP服务"`
	Addr         string        `yaml:"addr" mapstructure:"addr" env:"SERVER_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout  time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
}

// QueueConfig 队列目录配置
type QueueConfig struct {
	Dir           string `yaml:"dir" mapstructure:"dir" env:"QUEUE_DIR" validate:"required" comment:"队列目录（每条记录一个文件）"`
	DeadletterDir string `yaml:"deadletter_dir" mapstructure:"deadletter_dir" env:"QUEUE_DEADLETTER_DIR" comment:"死信目录，为空时使用 <dir>.deadletter"`
}

// CollectConfig 采集配置
type CollectConfig struct {
	Interval   time.Duration `yaml:"interval" mapstructure:"interval" env:"COLLECT_INTERVAL" validate:"required,gt=0" comment:"采集周期（如24h）"`
	Attempts   int           `yaml:"attempts" mapstructure:"attempts" env:"COLLECT_ATTEMPTS" validate:"required,gt=0,lte=100" comment:"单个实体的最大尝试次数"`
	ClearQueue bool          `yaml:"clear_queue" mapstructure:"clear_queue" env:"COLLECT_CLEAR_QUEUE" comment:"进程第一轮采集前清空队列"`
	Hooks      []string      `yaml:"hooks" mapstructure:"hooks" env:"COLLECT_HOOKS" comment:"记录处理钩子（静态注册的名称）"`
}

// ProvidersConfig 数据源配置
type ProvidersConfig struct {
	Plesk  PleskProviderConfig  `yaml:"plesk" mapstructure:"plesk"`
	Server ServerProviderConfig `yaml:"server" mapstructure:"server"`
	Static StaticProviderConfig `yaml:"static" mapstructure:"static"`
}

// PleskProviderConfig 本地 Plesk REST API
type PleskProviderConfig struct {
	Enable         bool          `yaml:"enable" mapstructure:"enable" comment:"是否启用Plesk数据源"`
	URL            string        `yaml:"url" mapstructure:"url" validate:"omitempty,url" comment:"API地址，为空时使用 https://<hostname>:8443/api/v2/"`
	CredentialFile string        `yaml:"credential_file" mapstructure:"credential_file" comment:"本地API密钥文件（hostname -> key）"`
	InsecureTLS    bool          `yaml:"insecure_tls" mapstructure:"insecure_tls" comment:"跳过TLS证书校验（本机自签名证书）"`
	Timeout        time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0" comment:"单次API请求超时"`
}

// ServerProviderConfig 主机状态数据源
type ServerProviderConfig struct {
	Enable bool `yaml:"enable" mapstructure:"enable" comment:"是否上报本机状态"`
}

// StaticProviderConfig 固定实体列表（测试/自定义环境）
type StaticProviderConfig struct {
	Enable   bool     `yaml:"enable" mapstructure:"enable"`
	Entities []string `yaml:"entities" mapstructure:"entities"`
}

// UplinkConfig 上报配置
type UplinkConfig struct {
	URL             string        `yaml:"url" mapstructure:"url" env:"UPLINK_URL" validate:"required,url" comment:"上报地址"`
	Token           string        `yaml:"token" mapstructure:"token" env:"UPLINK_TOKEN" comment:"Bearer token"`
	CredentialFile  string        `yaml:"credential_file" mapstructure:"credential_file" env:"UPLINK_CREDENTIAL_FILE" comment:"token文件（hostname -> token），token为空时使用"`
	BatchSize       int           `yaml:"batch_size" mapstructure:"batch_size" env:"UPLINK_BATCH_SIZE" validate:"required,gt=0,lte=10000" comment:"单次上报的最大记录数"`
	Attempts        int           `yaml:"attempts" mapstructure:"attempts" env:"UPLINK_ATTEMPTS" validate:"required,gt=0,lte=100" comment:"单批次最大尝试次数"`
	Interval        time.Duration `yaml:"interval" mapstructure:"interval" env:"UPLINK_INTERVAL" validate:"required,gt=0" comment:"上报周期"`
	Offset          time.Duration `yaml:"offset" mapstructure:"offset" env:"UPLINK_OFFSET" validate:"gte=0" comment:"固定偏移（offset_auto=false时生效）"`
	OffsetAuto      bool          `yaml:"offset_auto" mapstructure:"offset_auto" env:"UPLINK_OFFSET_AUTO" comment:"按IP地址生成稳定偏移"`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout" env:"UPLINK_TIMEOUT" validate:"required,gt=0" comment:"单次请求超时"`
	Gzip            bool          `yaml:"gzip" mapstructure:"gzip" env:"UPLINK_GZIP" comment:"gzip压缩请求体"`
	MaxFailedCycles int           `yaml:"max_failed_cycles" mapstructure:"max_failed_cycles" env:"UPLINK_MAX_FAILED_CYCLES" validate:"gte=0" comment:"连续失败周期数上限，0表示无限重试"`
	UserAgent       string        `yaml:"user_agent" mapstructure:"user_agent" comment:"User-Agent"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数，0表示按天数清理" default:"0"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// NewDefaultConfig 创建默认配置（所有字段兜底，避免空指针/非法值）
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Enable:       true,
			Addr:         "127.0.0.1:9091",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  15 * time.Second,
		},
		Queue: QueueConfig{
			Dir: "/var/lib/plesk-sitekick/queue",
		},
		Collect: CollectConfig{
			Interval: 24 * time.Hour,
			Attempts: 10,
			Hooks:    []string{},
		},
		Providers: ProvidersConfig{
			Plesk: PleskProviderConfig{
				Enable:         true,
				CredentialFile: "/etc/plesk/tokens.json",
				InsecureTLS:    true,
				Timeout:        60 * time.Second,
			},
			Server: ServerProviderConfig{Enable: true},
			Static: StaticProviderConfig{Entities: []string{}},
		},
		Uplink: UplinkConfig{
			BatchSize:  200,
			Attempts:   10,
			Interval:   100 * time.Second,
			OffsetAuto: true,
			Timeout:    60 * time.Second,
			UserAgent:  "plesk-sitekick",
		},
		Log: ZapLogConfig{
			Level:  "info",
			Format: "json",
			Path:   "./logs",
			// rotatelogs 不支持同时设置 max_age 和 rotation count
			MaxSize:   100,
			MaxBackup: 0,
			MaxAge:    7,
		},
	}
}

// LoadConfigWithCli 支持 time.Duration，(Flags + ENV + YAML + 默认值)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// 1. 可选 .env 文件（不覆盖已存在的环境变量）
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", envFile, err)
		}
	}

	// 2. 默认值 + Cobra Flags → Viper
	setDefaults(v, NewDefaultConfig())
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return nil, err
	}

	// 3. 解析配置文件 (--config)，默认路径不存在时忽略
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			if cmd.Flags().Changed("config") || fileExists(configFile) {
				return nil, fmt.Errorf("read config file %s: %w", configFile, err)
			}
		}
	}

	return decode(v)
}

// Load 仅从文件 + 环境变量加载（测试及非 cobra 场景）
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, NewDefaultConfig())
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configPath, err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	// 绑定环境变量 ENV -> Viper （PLESK_SITEKICK_UPLINK_URL -> uplink.url）
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := NewDefaultConfig()
	decoderConfig := &mapstructure.DecoderConfig{
		Metadata:         nil,
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}

	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Queue.DeadletterDir == "" {
		cfg.Queue.DeadletterDir = strings.TrimRight(cfg.Queue.Dir, string(os.PathSeparator)) + ".deadletter"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// bindFlags 将 flag 名（uplink.batch-size）映射为配置键（uplink.batch_size）
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var bindErr error
	flags.VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || !strings.Contains(f.Name, ".") {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if err := v.BindPFlag(key, f); err != nil {
			bindErr = fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	})
	return bindErr
}

// setDefaults 配置默认值（使 AutomaticEnv 能识别所有键）
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("server.enable", d.Server.Enable)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.idle_timeout", d.Server.IdleTimeout)

	v.SetDefault("queue.dir", d.Queue.Dir)
	v.SetDefault("queue.deadletter_dir", d.Queue.DeadletterDir)

	v.SetDefault("collect.interval", d.Collect.Interval)
	v.SetDefault("collect.attempts", d.Collect.Attempts)
	v.SetDefault("collect.clear_queue", d.Collect.ClearQueue)
	v.SetDefault("collect.hooks", d.Collect.Hooks)

	v.SetDefault("providers.plesk.enable", d.Providers.Plesk.Enable)
	v.SetDefault("providers.plesk.url", d.Providers.Plesk.URL)
	v.SetDefault("providers.plesk.credential_file", d.Providers.Plesk.CredentialFile)
	v.SetDefault("providers.plesk.insecure_tls", d.Providers.Plesk.InsecureTLS)
	v.SetDefault("providers.plesk.timeout", d.Providers.Plesk.Timeout)
	v.SetDefault("providers.server.enable", d.Providers.Server.Enable)
	v.SetDefault("providers.static.enable", d.Providers.Static.Enable)
	v.SetDefault("providers.static.entities", d.Providers.Static.Entities)

	v.SetDefault("uplink.url", d.Uplink.URL)
	v.SetDefault("uplink.token", d.Uplink.Token)
	v.SetDefault("uplink.credential_file", d.Uplink.CredentialFile)
	v.SetDefault("uplink.batch_size", d.Uplink.BatchSize)
	v.SetDefault("uplink.attempts", d.Uplink.Attempts)
	v.SetDefault("uplink.interval", d.Uplink.Interval)
	v.SetDefault("uplink.offset", d.Uplink.Offset)
	v.SetDefault("uplink.offset_auto", d.Uplink.OffsetAuto)
	v.SetDefault("uplink.timeout", d.Uplink.Timeout)
	v.SetDefault("uplink.gzip", d.Uplink.Gzip)
	v.SetDefault("uplink.max_failed_cycles", d.Uplink.MaxFailedCycles)
	v.SetDefault("uplink.user_agent", d.Uplink.UserAgent)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.path", d.Log.Path)
	v.SetDefault("log.max_size", d.Log.MaxSize)
	v.SetDefault("log.max_backup", d.Log.MaxBackup)
	v.SetDefault("log.max_age", d.Log.MaxAge)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	if err := valid.Struct(c); err != nil {
		return err
	}
	// 	1,校验Server服务配置
	if err := c.Server.Validate(); err != nil {
		return err
	}
	// 	2，校验队列/采集/数据源配置
	if err := c.Queue.Validate(); err != nil {
		return err
	}
	if err := c.Collect.Validate(); err != nil {
		return err
	}
	if err := c.Providers.Validate(); err != nil {
		return err
	}
	// 	3，校验上报配置
	if err := c.Uplink.Validate(); err != nil {
		return err
	}
	// 	4，校验日志配置
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return nil
}
