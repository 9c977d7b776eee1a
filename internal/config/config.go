package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"vault-rebalancer/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Chains    ChainsConfig    `mapstructure:"chains"`
	Rebalance RebalanceConfig `mapstructure:"rebalance"`
	LiFi      LiFiConfig      `mapstructure:"lifi"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Server    ServerConfig    `mapstructure:"server"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs analysis cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToInterval bool          `mapstructure:"align_to_interval"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// ChainConfig identifies one vault deployment.
type ChainConfig struct {
	Name           string        `mapstructure:"name"`
	ChainID        int64         `mapstructure:"chain_id"`
	RPCURL         string        `mapstructure:"rpc_url"`
	VaultAddress   string        `mapstructure:"vault_address"`
	USDCAddress    string        `mapstructure:"usdc_address"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ChainsConfig holds the two vault deployments the engine balances between.
type ChainsConfig struct {
	A ChainConfig `mapstructure:"a"`
	B ChainConfig `mapstructure:"b"`
}

// RebalanceConfig tunes the decision engine.
type RebalanceConfig struct {
	// BufferPct is the safety margin applied to projected demand,
	// as an integer percentage so all debt math stays integral.
	BufferPct          int64         `mapstructure:"buffer_pct"`
	ThresholdMicro     int64         `mapstructure:"threshold_micro"`
	DemandHorizon      time.Duration `mapstructure:"demand_horizon"`
	FallbackWindow     time.Duration `mapstructure:"fallback_window"`
	FreshnessThreshold time.Duration `mapstructure:"freshness_threshold"`
}

// LiFiConfig captures route-quoting connectivity.
type LiFiConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Integrator     string        `mapstructure:"integrator"`
	SlippagePct    float64       `mapstructure:"slippage_pct"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Channels []string       `mapstructure:"channels"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
}

// TelegramConfig describes the Telegram bot channel.
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// KafkaConfig describes the suggestion event topic.
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Broker  string `mapstructure:"broker"`
	Topic   string `mapstructure:"topic"`
}

// ServerConfig covers the HTTP trigger/read surface.
type ServerConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	ListenAddr      string        `mapstructure:"listen_addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// ExecutorConfig covers transfer submission.
type ExecutorConfig struct {
	GasLimit       uint64        `mapstructure:"gas_limit"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("REBALANCER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "vault-rebalancer")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "5m")
	v.SetDefault("scheduler.align_to_interval", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x72626c61))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("chains.a.request_timeout", "10s")
	v.SetDefault("chains.b.request_timeout", "10s")

	v.SetDefault("rebalance.buffer_pct", int64(10))
	v.SetDefault("rebalance.threshold_micro", int64(1_000_000))
	v.SetDefault("rebalance.demand_horizon", "24h")
	v.SetDefault("rebalance.fallback_window", "168h")
	v.SetDefault("rebalance.freshness_threshold", "5m")

	v.SetDefault("lifi.base_url", "https://li.quest/v1")
	v.SetDefault("lifi.integrator", "vault-rebalancer")
	v.SetDefault("lifi.slippage_pct", 3.0)
	v.SetDefault("lifi.request_timeout", "15s")
	v.SetDefault("lifi.user_agent", "vault-rebalancer/1.0")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.kafka.enabled", false)
	v.SetDefault("alerting.kafka.topic", "rebalance-suggestions")

	v.SetDefault("server.enabled", true)
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("executor.gas_limit", uint64(400_000))
	v.SetDefault("executor.request_timeout", "30s")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Rebalance.BufferPct < 0 || c.Rebalance.BufferPct > 100 {
		return fmt.Errorf("rebalance.buffer_pct must be between 0 and 100")
	}
	if c.Rebalance.ThresholdMicro < 0 {
		return fmt.Errorf("rebalance.threshold_micro cannot be negative")
	}
	if c.Rebalance.DemandHorizon <= 0 {
		return fmt.Errorf("rebalance.demand_horizon must be greater than zero")
	}
	if c.Rebalance.FallbackWindow <= 0 {
		return fmt.Errorf("rebalance.fallback_window must be greater than zero")
	}
	if c.Chains.A.ChainID != 0 && c.Chains.A.ChainID == c.Chains.B.ChainID {
		return fmt.Errorf("chains.a.chain_id and chains.b.chain_id must differ")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	if c.Alerting.Kafka.Enabled && c.Alerting.Kafka.Broker == "" {
		return fmt.Errorf("alerting.kafka.broker is required")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
