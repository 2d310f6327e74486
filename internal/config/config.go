package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App    AppConfig    `mapstructure:"app"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	DB     DBConfig     `mapstructure:"db"`
	Cron   CronConfig   `mapstructure:"cron"`

	Trading TradingConfig `mapstructure:"trading"`
	KIS     KISConfig     `mapstructure:"kis"`
	Paper   PaperConfig   `mapstructure:"paper"`
	Free    FreeConfig    `mapstructure:"free"`
	Quotes  QuotesConfig  `mapstructure:"quotes"`
	Stream  StreamConfig  `mapstructure:"stream"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	QuoteRefresh string `mapstructure:"quote_refresh"`
	StrategyTick string `mapstructure:"strategy_tick"`
	Snapshot     string `mapstructure:"snapshot"`
	TokenRefresh string `mapstructure:"token_refresh"`
}

type TradingConfig struct {
	// Startup fallback when no persisted mode exists.
	DefaultMode string `mapstructure:"default_mode"`
}

// KISConfig carries one credential set per trading mode. The paper set
// points at the broker's mock endpoint host.
type KISConfig struct {
	Real      KISCredentials `mapstructure:"real"`
	Paper     KISCredentials `mapstructure:"paper"`
	Timeout   time.Duration  `mapstructure:"timeout"`
	AccountNo string         `mapstructure:"account_no"`
}

type KISCredentials struct {
	BaseURL   string `mapstructure:"base_url"`
	AppKey    string `mapstructure:"app_key"`
	AppSecret string `mapstructure:"app_secret"`
}

func (c KISCredentials) Configured() bool {
	return c.AppKey != "" && c.AppSecret != ""
}

type PaperConfig struct {
	InitialBalance float64 `mapstructure:"initial_balance"`
	CommissionRate float64 `mapstructure:"commission_rate"`
	SlippageRate   float64 `mapstructure:"slippage_rate"`
}

// FreeConfig configures the keyless delayed-quote provider used when no
// brokerage credentials are present.
type FreeConfig struct {
	Endpoint string        `mapstructure:"endpoint"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type QuotesConfig struct {
	MemoryTTL time.Duration `mapstructure:"memory_ttl"`
}

type StreamConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	URL             string        `mapstructure:"url"`
	ReconnectDelay  time.Duration `mapstructure:"reconnect_delay"`
	MaxReconnectGap time.Duration `mapstructure:"max_reconnect_gap"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.quote_refresh", "@every 30s")
	v.SetDefault("cron.strategy_tick", "0 * 9-15 * * 1-5")
	v.SetDefault("cron.snapshot", "0 0 16 * * 1-5")
	v.SetDefault("cron.token_refresh", "@every 30m")
	v.SetDefault("trading.default_mode", "PAPER")
	v.SetDefault("kis.real.base_url", "https://openapi.koreainvestment.com:9443")
	v.SetDefault("kis.paper.base_url", "https://openapivts.koreainvestment.com:29443")
	v.SetDefault("kis.timeout", "10s")
	v.SetDefault("paper.initial_balance", 10000000)
	v.SetDefault("paper.commission_rate", 0.0005)
	v.SetDefault("paper.slippage_rate", 0.0001)
	v.SetDefault("free.endpoint", "")
	v.SetDefault("free.timeout", "10s")
	v.SetDefault("quotes.memory_ttl", "15s")
	v.SetDefault("stream.enabled", false)
	v.SetDefault("stream.url", "ws://ops.koreainvestment.com:21000")
	v.SetDefault("stream.reconnect_delay", "3s")
	v.SetDefault("stream.max_reconnect_gap", "1m")

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}
