// Package config defines all configuration for the trailing-stop engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via TRADESTOP_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"tradestop/pkg/types"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Exchange         ExchangeConfig             `mapstructure:"exchange"`
	Symbols          []string                   `mapstructure:"symbols"`
	AdjustmentTables map[int][]types.Adjustment `mapstructure:"adjustment_tables"`
	Journal          JournalConfig              `mapstructure:"journal"`
	Controller       ControllerConfig           `mapstructure:"controller"`
	Logging          LoggingConfig              `mapstructure:"logging"`
	Metrics          MetricsConfig              `mapstructure:"metrics"`
}

// ExchangeConfig holds the venue base URL, websocket host, REST timeout, and
// the engine's own trading credentials.
type ExchangeConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	WSHost    string        `mapstructure:"ws_host"`
	Timeout   time.Duration `mapstructure:"timeout"`
	AccountID string        `mapstructure:"account_id"`
	APIKey    string        `mapstructure:"api_key"`
	APISecret string        `mapstructure:"api_secret"`
}

// JournalConfig points at the MySQL DSN backing TradeJournal.
type JournalConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ControllerConfig sets the listen address for the TradeController's HTTP transport.
type ControllerConfig struct {
	Addr string `mapstructure:"addr"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig carries the metrics.enabled setting. Nothing reads Enabled:
// the controller transport mounts the Prometheus handler at /metrics
// whatever its value.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: TRADESTOP_API_KEY, TRADESTOP_API_SECRET.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("TRADESTOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("TRADESTOP_API_KEY"); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := os.Getenv("TRADESTOP_API_SECRET"); secret != "" {
		cfg.Exchange.APISecret = secret
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges before the Engine is constructed.
func (c *Config) Validate() error {
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if c.Exchange.WSHost == "" {
		return fmt.Errorf("exchange.ws_host is required")
	}
	if c.Exchange.Timeout <= 0 {
		return fmt.Errorf("exchange.timeout must be > 0")
	}
	if len(c.Symbols) == 0 {
		return fmt.Errorf("symbols must list at least one symbol")
	}
	if len(c.AdjustmentTables) == 0 {
		return fmt.Errorf("adjustment_tables must seed at least one table")
	}
	if c.Journal.DSN == "" {
		return fmt.Errorf("journal.dsn is required")
	}
	if c.Controller.Addr == "" {
		return fmt.Errorf("controller.addr is required")
	}
	return nil
}
